// Package cl defines the OpenCL-style compute API surface consumed by the
// compute package.
//
// It is the boundary to the external accelerator runtime: everything here is
// specified as an interface, and the actual driver (a cgo binding to a system
// OpenCL, or the in-memory clsim driver used for tests) plugs in behind it.
// The compute package never talks to hardware except through these types.
//
// Handles returned by a driver are owned by the caller and must be released
// with their Release method; drivers are expected to reference-count handles
// captured by enqueued operations, so releasing a handle with work in flight
// is safe.
package cl

// DeviceType selects the class of devices to enumerate on a platform.
type DeviceType int

//go:generate go tool enumer -type=DeviceType -trimprefix=DeviceType cl.go

const (
	DeviceTypeDefault DeviceType = iota
	DeviceTypeCPU
	DeviceTypeGPU
	DeviceTypeAccelerator
)

// Runtime is a driver's entry point: it enumerates the platforms visible to
// the process.
type Runtime interface {
	Platforms() ([]Platform, error)
}

// Platform is one vendor runtime installation, hosting zero or more devices.
type Platform interface {
	Name() string
	Vendor() string
	Version() string

	// Devices lists the platform's devices of the given class.
	Devices(kind DeviceType) ([]Device, error)
}

// ContextOptions configures context creation on a device.
type ContextOptions struct {
	// Surface is a native drawing-surface handle (HDC, EGL surface, ...)
	// enabling compute/graphics interop. Zero disables interop.
	Surface uintptr

	// Notify, if non-nil, receives asynchronous device-side error reports.
	// It may be called from any thread.
	Notify func(message string)
}

// Device is one physical accelerator on a platform.
type Device interface {
	Name() string
	Vendor() string
	Version() string
	DriverVersion() string

	MaxComputeUnits() int
	MaxClockFrequencyMHz() int

	// MaxWorkItemSizes returns the per-dimension limit on local work-group
	// shape.
	MaxWorkItemSizes() [3]int

	// LocalMemSize returns the device-local scratch memory size in bytes.
	LocalMemSize() int

	// NewContext creates an execution context scoped to this device.
	NewContext(opts ContextOptions) (Context, error)
}
