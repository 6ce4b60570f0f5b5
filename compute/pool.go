package compute

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/gocl/cl"
)

// PlatformSelector decides which platform's devices are candidates for the
// pool. The eligibility rule is expected to evolve, so it is pluggable
// rather than hard-coded.
type PlatformSelector func(platforms []cl.Platform) (cl.Platform, error)

// FirstPlatform selects the first enumerated platform. This is the default.
func FirstPlatform(platforms []cl.Platform) (cl.Platform, error) {
	return platforms[0], nil
}

// VendorAllowList selects the first platform whose vendor string contains
// any of the given vendors (case-insensitive).
func VendorAllowList(vendors ...string) PlatformSelector {
	return func(platforms []cl.Platform) (cl.Platform, error) {
		for _, p := range platforms {
			vendor := strings.ToLower(p.Vendor())
			for _, want := range vendors {
				if strings.Contains(vendor, strings.ToLower(want)) {
					return p, nil
				}
			}
		}
		return nil, errors.WithMessagef(ErrNoEligibleDevice,
			"no platform vendor matches allow-list %v", vendors)
	}
}

// DevicePool selects and load-balances logical Devices across physical
// hardware. On first use it scores every eligible device (power score =
// max compute units × max clock frequency), keeps the subset tied at the
// maximum score, and then hands devices out round-robin across that
// tied-best set: multiple logical Devices spread over all equally capable
// hardware, and a weaker device is never picked while a stronger one exists.
//
// Create one pool per process (or per test). All methods are safe for
// concurrent use; the one-time selection and the cursor advance share the
// pool's single mutex.
type DevicePool struct {
	runtime  cl.Runtime
	selector PlatformSelector
	kind     cl.DeviceType

	mu       sync.Mutex
	selected bool
	platform cl.Platform
	best     []cl.Device
	next     int
}

// PoolOption configures NewDevicePool.
type PoolOption func(pool *DevicePool)

// WithPlatformSelector overrides the platform-eligibility policy. Default is
// FirstPlatform.
func WithPlatformSelector(selector PlatformSelector) PoolOption {
	return func(pool *DevicePool) { pool.selector = selector }
}

// WithDeviceType overrides the class of devices the pool considers. Default
// is cl.DeviceTypeGPU.
func WithDeviceType(kind cl.DeviceType) PoolOption {
	return func(pool *DevicePool) { pool.kind = kind }
}

// NewDevicePool creates a pool over the given driver runtime. Device scoring
// is lazy: it happens on the first Device construction (or Devices call) and
// its result is immutable for the pool's lifetime.
func NewDevicePool(runtime cl.Runtime, opts ...PoolOption) *DevicePool {
	pool := &DevicePool{
		runtime:  runtime,
		selector: FirstPlatform,
		kind:     cl.DeviceTypeGPU,
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// PowerScore ranks a device's capability.
func PowerScore(device cl.Device) int {
	return device.MaxComputeUnits() * device.MaxClockFrequencyMHz()
}

// selectBest computes the tied-best set. Caller must hold pool.mu.
func (pool *DevicePool) selectBest() error {
	platforms, err := pool.runtime.Platforms()
	if err != nil {
		return errors.WithMessage(err, "failed to enumerate compute platforms")
	}
	if len(platforms) == 0 {
		return ErrNoPlatforms
	}
	platform, err := pool.selector(platforms)
	if err != nil {
		return err
	}
	devices, err := platform.Devices(pool.kind)
	if err != nil {
		return errors.WithMessagef(err, "failed to enumerate %s devices on platform %q",
			pool.kind, platform.Name())
	}
	if len(devices) == 0 {
		return errors.WithMessagef(ErrNoEligibleDevice, "platform %q has no %s devices",
			platform.Name(), pool.kind)
	}

	bestScore := 0
	for _, device := range devices {
		score := PowerScore(device)
		klog.V(1).Infof("DevicePool: device %q (vendor %q): %d compute units × %d MHz = score %d",
			device.Name(), device.Vendor(), device.MaxComputeUnits(), device.MaxClockFrequencyMHz(), score)
		if score > bestScore {
			bestScore = score
		}
	}
	var best []cl.Device
	for _, device := range devices {
		if PowerScore(device) == bestScore {
			best = append(best, device)
		}
	}
	klog.V(1).Infof("DevicePool: %d of %d devices tied at best score %d on platform %q",
		len(best), len(devices), bestScore, platform.Name())

	pool.platform = platform
	pool.best = best
	pool.selected = true
	return nil
}

// acquire returns the platform and the next tied-best device, advancing the
// round-robin cursor.
func (pool *DevicePool) acquire() (cl.Platform, cl.Device, error) {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if !pool.selected {
		if err := pool.selectBest(); err != nil {
			return nil, nil, err
		}
	}
	device := pool.best[pool.next%len(pool.best)]
	pool.next++
	return pool.platform, device, nil
}

// Devices returns the tied-best set, forcing selection if it hasn't happened
// yet. The returned slice is a copy.
func (pool *DevicePool) Devices() ([]cl.Device, error) {
	pool.mu.Lock()
	defer pool.mu.Unlock()
	if !pool.selected {
		if err := pool.selectBest(); err != nil {
			return nil, err
		}
	}
	best := make([]cl.Device, len(pool.best))
	copy(best, pool.best)
	return best, nil
}
