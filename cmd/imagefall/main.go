package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/imagefall"
	"github.com/gekko3d/imagefall/assets"
	"github.com/gekko3d/imagefall/board"
	"github.com/gekko3d/imagefall/config"
	"github.com/gekko3d/imagefall/gpu/wgpubackend"
	"github.com/gekko3d/imagefall/telemetry"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML config file (defaults are embedded)")
	imagePath := flag.String("image", "", "Image to drop, overrides image.path")
	debug := flag.Bool("debug", false, "Enable debug logging")
	tracePath := flag.String("trace", "", "Write a per-frame CSV trace to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *imagePath != "" {
		cfg.Image.Path = *imagePath
	}
	if *tracePath != "" {
		cfg.Trace.Path = *tracePath
	}
	log := imagefall.NewDefaultLogger(cfg.Logging.Prefix, cfg.Logging.Debug || *debug)

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to init glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}
	defer window.Destroy()

	dev, err := wgpubackend.New(window, nil)
	if err != nil {
		return err
	}
	defer dev.Release()
	dev.SetClearColor(cfg.ClearColor())

	loader := assets.NewLoader("")
	loader.MaxDimension = cfg.Image.MaxDimension

	effect := board.NewImageBoard(log)
	effect.FallSpeed = cfg.Effect.FallSpeed
	effect.FallTarget = cfg.Effect.FallTarget
	effect.FallDelay = cfg.Effect.FallDelay
	effect.TotalLoopTime = cfg.Effect.TotalLoopTime
	effect.ModelMatrix = cfg.ModelMatrix()
	defer effect.Release()

	trace, err := telemetry.CreateTrace(cfg.Trace.Path)
	if err != nil {
		return err
	}
	defer trace.Close()
	stats := telemetry.NewFrameStats(600)

	clock := imagefall.NewClock()
	clock.MaxDelta = time.Duration(cfg.Render.MaxDelta * float64(time.Second))

	driver := imagefall.NewDriver(dev, clock, log)
	driver.Camera = cfg.CameraMatrix()
	driver.Projection = cfg.Projection(dev.Aspect())
	if err := driver.UseModule(
		board.Module{Board: effect, Loader: loader, Resource: cfg.Image.Path, Trace: trace},
		telemetry.StatsModule{Stats: stats},
	); err != nil {
		return err
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if err := dev.Resize(width, height); err != nil {
			log.Warnf("resize to %dx%d: %v", width, height, err)
			return
		}
		driver.Projection = cfg.Projection(dev.Aspect())
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	log.Infof("running %s, %d particles", cfg.Image.Path, effect.ParticleCount())
	for !window.ShouldClose() {
		glfw.PollEvents()
		if width, height := window.GetFramebufferSize(); width == 0 || height == 0 {
			// Minimized.
			glfw.WaitEvents()
			continue
		}
		if err := driver.Frame(); err != nil {
			log.Warnf("%v", err)
		}
	}
	log.Infof("%s", stats.Summary())
	log.Infof("%s", driver.Profiler.Report())
	return nil
}
