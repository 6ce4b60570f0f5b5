package compute

import (
	"fmt"
	"runtime"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/gocl/cl"
)

// Device is a logical binding to one physical accelerator: it owns one
// context and one in-order command queue on a device claimed from a
// DevicePool.
//
// A Device is exclusively owned by whoever created it: its methods are not
// internally synchronized (apart from the pool's selection lock), ordering
// across Devices is the caller's responsibility, and the accumulated
// completion tokens are only safe to touch from one goroutine at a time.
type Device struct {
	pool     *DevicePool
	platform cl.Platform
	physical cl.Device

	context cl.Context
	queue   cl.Queue

	// Completion tokens of the operations issued through this Device since
	// the last Wait.
	pending []cl.Event
}

// DeviceOption configures NewDevice.
type DeviceOption func(opts *deviceOptions)

type deviceOptions struct {
	surface uintptr
}

// WithSurface creates the Device's context with compute/graphics interop
// enabled against the given native drawing-surface handle.
func WithSurface(handle uintptr) DeviceOption {
	return func(opts *deviceOptions) { opts.surface = handle }
}

// NewDevice claims the next tied-best physical device from the pool and
// creates a context and an in-order command queue on it.
//
// Any failure here (selection, context, or queue creation) is a bootstrap
// failure: there is nothing to degrade to, the caller is expected to report
// and terminate.
func NewDevice(pool *DevicePool, opts ...DeviceOption) (*Device, error) {
	var options deviceOptions
	for _, opt := range opts {
		opt(&options)
	}

	platform, physical, err := pool.acquire()
	if err != nil {
		return nil, err
	}
	d := &Device{pool: pool, platform: platform, physical: physical}

	d.context, err = physical.NewContext(cl.ContextOptions{
		Surface: options.surface,
		Notify:  d.ErrorCallback,
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create context on device %q", physical.Name())
	}
	d.queue, err = d.context.NewQueue()
	if err != nil {
		if rErr := d.context.Release(); rErr != nil {
			klog.Errorf("Device: releasing context after queue-creation failure: %v", rErr)
		}
		return nil, errors.WithMessagef(err, "failed to create command queue on device %q", physical.Name())
	}

	runtime.SetFinalizer(d, func(d *Device) {
		if err := d.Destroy(); err != nil {
			klog.Errorf("Device garbage collected without Destroy: %v", err)
		}
	})
	return d, nil
}

// ErrorCallback receives asynchronous device-side error reports from the
// driver. The report is logged; the operation that triggered it surfaces its
// own error through its completion token.
func (d *Device) ErrorCallback(message string) {
	klog.Errorf("device %q reported: %s", d.physical.Name(), message)
}

// addEvent records a completion token for the next Wait.
func (d *Device) addEvent(ev cl.Event) {
	d.pending = append(d.pending, ev)
}

// Wait blocks until every operation issued through this Device so far has
// completed, then releases the accumulated tokens. It returns the first
// operation error encountered, after waiting for all of them.
func (d *Device) Wait() error {
	if d.queue == nil {
		return errors.New("Device already destroyed")
	}
	var firstErr error
	for _, ev := range d.pending {
		if err := ev.Await(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := ev.Release(); err != nil {
			klog.Errorf("Device.Wait: releasing completion token: %v", err)
		}
	}
	d.pending = d.pending[:0]
	return firstErr
}

// Context returns the Device's context. Used by Program and Buffer; callers
// must not release it.
func (d *Device) Context() cl.Context { return d.context }

// Queue returns the Device's in-order command queue. Callers must not
// release it.
func (d *Device) Queue() cl.Queue { return d.queue }

// Physical returns the underlying physical device identity.
func (d *Device) Physical() cl.Device { return d.physical }

// Platform returns the platform the Device's physical device lives on.
func (d *Device) Platform() cl.Platform { return d.platform }

// Name returns the physical device name.
func (d *Device) Name() string { return d.physical.Name() }

// Vendor returns the physical device vendor string.
func (d *Device) Vendor() string { return d.physical.Vendor() }

// MaxComputeUnits returns the physical device's compute unit count.
func (d *Device) MaxComputeUnits() int { return d.physical.MaxComputeUnits() }

// MaxClockFrequencyMHz returns the physical device's maximum clock.
func (d *Device) MaxClockFrequencyMHz() int { return d.physical.MaxClockFrequencyMHz() }

// MaxLocalWorkItems returns the per-dimension local work-group limits as a
// rank-3 Dim, for clamping local shapes with Dim.Min.
func (d *Device) MaxLocalWorkItems() Dim {
	sizes := d.physical.MaxWorkItemSizes()
	return MakeDim(sizes[0], sizes[1], sizes[2])
}

// LocalMemSize returns the device-local scratch memory size in bytes.
func (d *Device) LocalMemSize() int { return d.physical.LocalMemSize() }

// String implements fmt.Stringer.
func (d *Device) String() string {
	if d.queue == nil {
		return "Device[destroyed]"
	}
	return fmt.Sprintf("Device[%q on platform %q]", d.physical.Name(), d.platform.Name())
}

// Destroy releases the queue and context. In-flight operations belong to the
// driver and complete regardless. Destroy is also triggered by the garbage
// collector, but callers should not rely on that for timely release.
func (d *Device) Destroy() error {
	if d.queue == nil {
		return nil
	}
	var firstErr error
	for _, ev := range d.pending {
		if err := ev.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.pending = nil
	if err := d.queue.Release(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.context.Release(); err != nil && firstErr == nil {
		firstErr = err
	}
	d.queue = nil
	d.context = nil
	return firstErr
}
