// Command imagefall-snap runs the falling image effect on the CPU device and
// writes every n-th frame as a WebP file.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"

	"github.com/gekko3d/imagefall"
	"github.com/gekko3d/imagefall/assets"
	"github.com/gekko3d/imagefall/board"
	"github.com/gekko3d/imagefall/config"
	"github.com/gekko3d/imagefall/gpu/soft"
	"github.com/gekko3d/imagefall/telemetry"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are embedded)")
	imagePath := flag.String("image", "", "Image to drop, overrides image.path")
	outDir := flag.String("out", "", "Output directory, overrides snapshot.out_dir")
	frames := flag.Int("frames", -1, "Frames to run, overrides snapshot.frames")
	every := flag.Int("every", -1, "Write every n-th frame, overrides snapshot.every")
	tracePath := flag.String("trace", "", "Write a per-frame CSV trace to this file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *imagePath != "" {
		cfg.Image.Path = *imagePath
	}
	if *outDir != "" {
		cfg.Snapshot.OutDir = *outDir
	}
	if *frames >= 0 {
		cfg.Snapshot.Frames = *frames
	}
	if *every >= 0 {
		cfg.Snapshot.Every = *every
	}
	if *tracePath != "" {
		cfg.Trace.Path = *tracePath
	}
	log := imagefall.NewDefaultLogger(cfg.Logging.Prefix, cfg.Logging.Debug || *debug)

	written, err := run(cfg, log)
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
	log.Infof("wrote %d snapshots to %s", len(written), cfg.Snapshot.OutDir)
}

// run drives cfg.Snapshot.Frames frames at a fixed delta and returns the
// paths of the written snapshots.
func run(cfg *config.Config, log imagefall.Logger) ([]string, error) {
	snap := cfg.Snapshot
	fb := soft.NewFramebuffer(snap.Width, snap.Height)
	dev := soft.New(soft.WithFramebuffer(fb), soft.WithClearColor(cfg.ClearColor()))

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
		return nil, err
	}
	defer trace.Close()

	driver := imagefall.NewDriver(dev, imagefall.FixedClock{Step: snap.DT}, log)
	driver.Camera = cfg.CameraMatrix()
	driver.Projection = cfg.Projection(float32(snap.Width) / float32(snap.Height))
	driver.ProfileEvery = 0
	if err := driver.UseModule(board.Module{Board: effect, Loader: loader, Resource: cfg.Image.Path, Trace: trace}); err != nil {
		return nil, err
	}

	if snap.Every > 0 {
		if err := os.MkdirAll(snap.OutDir, 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	var written []string
	for i := 0; i < snap.Frames; i++ {
		if err := driver.Frame(); err != nil {
			return written, err
		}
		if snap.Every == 0 || i%snap.Every != 0 {
			continue
		}
		path := filepath.Join(snap.OutDir, fmt.Sprintf("frame_%05d.webp", i))
		if err := writeWebP(path, fb); err != nil {
			return written, err
		}
		log.Debugf("frame %d: %d pixels covered -> %s", i, fb.Covered(), path)
		written = append(written, path)
	}
	log.Debugf("%s", driver.Profiler.Report())
	return written, nil
}

func writeWebP(path string, fb *soft.Framebuffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := nativewebp.Encode(f, fb.Color, nil); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
