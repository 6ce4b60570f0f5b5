package compute

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/gocl/cl"
)

// Program is a kernel module compiled against one Device's context. It is
// immutable after a successful build and usable by any number of Kernels.
type Program struct {
	device  *Device
	program cl.Program
}

// BuildProgram compiles kernel source text on the device.
//
// A compilation failure is unrecoverable (a kernel that doesn't compile
// cannot be dispatched): the returned error wraps a *cl.BuildError carrying
// the driver's full diagnostic log, which is also logged here so it isn't
// lost when the caller only prints the error chain's message.
func BuildProgram(device *Device, source string) (*Program, error) {
	if device == nil || device.Context() == nil {
		return nil, errors.New("BuildProgram on nil or destroyed Device")
	}
	program, err := device.Context().BuildProgram(source)
	if err != nil {
		var buildErr *cl.BuildError
		if errors.As(err, &buildErr) {
			klog.Errorf("program build failed on %s, build log:\n%s", device, buildErr.Log)
		}
		return nil, errors.WithMessagef(err, "failed to build program on %s", device)
	}
	p := &Program{device: device, program: program}
	runtime.SetFinalizer(p, func(p *Program) {
		if err := p.Destroy(); err != nil {
			klog.Errorf("Program.Destroy failed: %v", err)
		}
	})
	return p, nil
}

// Device returns the Device the program was built on.
func (p *Program) Device() *Device { return p.device }

// String implements fmt.Stringer.
func (p *Program) String() string {
	if p.program == nil {
		return "Program[destroyed]"
	}
	return fmt.Sprintf("Program[on %s]", p.device)
}

// Destroy releases the compiled module. Kernels already created from it keep
// their own entry handles and stay usable.
func (p *Program) Destroy() error {
	if p.program == nil {
		return nil
	}
	err := p.program.Release()
	p.program = nil
	return err
}
