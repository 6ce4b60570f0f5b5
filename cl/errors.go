package cl

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrReleased is returned by drivers when a handle is used after Release.
var ErrReleased = errors.New("cl: handle already released")

// BuildError reports a program compilation failure, with the driver's full
// diagnostic log.
type BuildError struct {
	// Device the build was targeting.
	Device string

	// Log is the complete build log, as reported by the driver.
	Log string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("cl: program build failed on device %q:\n%s", e.Device, e.Log)
}
