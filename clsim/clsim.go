// Package clsim is an in-memory cl driver.
//
// It simulates the platform/device/context/queue object model of an
// OpenCL-style runtime entirely on the host: device memory is byte slices,
// queues are in-order worker goroutines, and programs "compile" by matching
// the kernel entry points declared in the source against a library of Go
// implementations (see RegisterKernel).
//
// Its role is the same one the CPU PJRT plugin plays for gopjrt: a driver
// that is always available, so the resource-management layer above can be
// exercised hermetically — device selection, buffer lifecycle, argument
// binding, and completion semantics all behave as they do against real
// hardware, including genuinely asynchronous execution.
package clsim

import (
	"github.com/pkg/errors"

	"github.com/gomlx/gocl/cl"
)

// PlatformConfig describes one simulated platform.
type PlatformConfig struct {
	Name    string
	Vendor  string
	Version string
	Devices []DeviceConfig
}

// DeviceConfig describes one simulated device. Zero-valued fields get
// defaults: GPU type, 8 compute units, 1000 MHz, {1024, 1024, 64} work-item
// limits, and 48 KiB of local memory.
type DeviceConfig struct {
	Name          string
	Vendor        string
	Version       string
	DriverVersion string
	Type          cl.DeviceType

	ComputeUnits     int
	ClockMHz         int
	MaxWorkItemSizes [3]int
	LocalMemSize     int
}

func (c DeviceConfig) withDefaults() DeviceConfig {
	if c.Type == cl.DeviceTypeDefault {
		c.Type = cl.DeviceTypeGPU
	}
	if c.ComputeUnits == 0 {
		c.ComputeUnits = 8
	}
	if c.ClockMHz == 0 {
		c.ClockMHz = 1000
	}
	if c.MaxWorkItemSizes == ([3]int{}) {
		c.MaxWorkItemSizes = [3]int{1024, 1024, 64}
	}
	if c.LocalMemSize == 0 {
		c.LocalMemSize = 48 << 10
	}
	if c.Version == "" {
		c.Version = "OpenCL 1.2 clsim"
	}
	if c.DriverVersion == "" {
		c.DriverVersion = "clsim-0"
	}
	return c
}

// Sim implements cl.Runtime over a fixed set of simulated platforms.
type Sim struct {
	platforms []*platform

	// PlatformsErr, if set, makes Platforms fail. Used to test bootstrap
	// failure paths.
	PlatformsErr error
}

var _ cl.Runtime = (*Sim)(nil)

// New creates a simulated runtime with the given platforms.
func New(configs ...PlatformConfig) *Sim {
	s := &Sim{}
	for _, pc := range configs {
		p := &platform{config: pc}
		for _, dc := range pc.Devices {
			p.devices = append(p.devices, &device{config: dc.withDefaults(), platform: p})
		}
		s.platforms = append(s.platforms, p)
	}
	return s
}

// NewSingleGPU creates a runtime with one platform holding one GPU device,
// the common case for tests.
func NewSingleGPU(platformName, deviceName string) *Sim {
	return New(PlatformConfig{
		Name:    platformName,
		Vendor:  "clsim",
		Devices: []DeviceConfig{{Name: deviceName, Vendor: "clsim"}},
	})
}

// Platforms implements cl.Runtime.
func (s *Sim) Platforms() ([]cl.Platform, error) {
	if s.PlatformsErr != nil {
		return nil, s.PlatformsErr
	}
	platforms := make([]cl.Platform, len(s.platforms))
	for ii, p := range s.platforms {
		platforms[ii] = p
	}
	return platforms, nil
}

type platform struct {
	config  PlatformConfig
	devices []*device
}

var _ cl.Platform = (*platform)(nil)

func (p *platform) Name() string    { return p.config.Name }
func (p *platform) Vendor() string  { return p.config.Vendor }
func (p *platform) Version() string { return p.config.Version }

func (p *platform) Devices(kind cl.DeviceType) ([]cl.Device, error) {
	var devices []cl.Device
	for _, d := range p.devices {
		if kind == cl.DeviceTypeDefault || d.config.Type == kind {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

type device struct {
	config   DeviceConfig
	platform *platform
}

var _ cl.Device = (*device)(nil)

func (d *device) Name() string              { return d.config.Name }
func (d *device) Vendor() string            { return d.config.Vendor }
func (d *device) Version() string           { return d.config.Version }
func (d *device) DriverVersion() string     { return d.config.DriverVersion }
func (d *device) MaxComputeUnits() int      { return d.config.ComputeUnits }
func (d *device) MaxClockFrequencyMHz() int { return d.config.ClockMHz }
func (d *device) MaxWorkItemSizes() [3]int  { return d.config.MaxWorkItemSizes }
func (d *device) LocalMemSize() int         { return d.config.LocalMemSize }

func (d *device) NewContext(opts cl.ContextOptions) (cl.Context, error) {
	if d == nil {
		return nil, errors.New("clsim: NewContext on nil device")
	}
	return &context{device: d, opts: opts}, nil
}
