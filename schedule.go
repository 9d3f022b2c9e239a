package imagefall

import "fmt"

// Stage is one slot of the frame. Systems of a stage run in the order they
// were added.
type Stage struct {
	Name string
}

var (
	// Update runs before any GPU work of the frame is recorded.
	Update = Stage{Name: "Update"}
	// PreRender records compute work into FrameContext.Commands.
	PreRender = Stage{Name: "PreRender"}
	// Render records draws into FrameContext.Pass.
	Render = Stage{Name: "Render"}
	// PostRender runs once the frame was submitted.
	PostRender = Stage{Name: "PostRender"}
)

type systemFn func(fc *FrameContext)

type systemScheduleBuilder struct {
	inStage Stage
	system  systemFn
}

// System wraps fn for scheduling. It runs in Update unless moved with InStage.
func System(fn func(fc *FrameContext)) systemScheduleBuilder {
	return systemScheduleBuilder{inStage: Update, system: fn}
}

func (sched systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	return systemScheduleBuilder{inStage: s, system: sched.system}
}

// Module installs a feature on a driver: creates what it needs and schedules
// its systems.
type Module interface {
	Install(d *Driver) error
}

// UseModule installs modules in order and stops at the first failure.
func (d *Driver) UseModule(modules ...Module) error {
	for _, module := range modules {
		if err := module.Install(d); err != nil {
			return fmt.Errorf("failed to install %T: %w", module, err)
		}
	}
	return nil
}

// UseSystem appends sched to its stage.
func (d *Driver) UseSystem(sched systemScheduleBuilder) *Driver {
	if d.systems == nil {
		d.systems = make(map[Stage][]systemFn)
	}
	d.systems[sched.inStage] = append(d.systems[sched.inStage], sched.system)
	return d
}

func (d *Driver) runStage(s Stage, fc *FrameContext) {
	for _, system := range d.systems[s] {
		system(fc)
	}
}
