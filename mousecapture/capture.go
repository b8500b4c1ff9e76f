// Package mousecapture observes system-wide pointer events through a
// platform capture facility installed on a native event loop.
package mousecapture

import (
	"errors"
	"time"
)

// ErrUnsupported is returned when no native capture facility exists for the
// current platform or build.
var ErrUnsupported = errors.New("mousecapture: unsupported platform")

// ErrPermission is returned when the OS refuses to install the capture
// facility, e.g. missing Accessibility trust on macOS.
var ErrPermission = errors.New("mousecapture: permission denied")

// ErrInstall is returned when the capture facility could not be installed or
// did not report itself ready in time.
var ErrInstall = errors.New("mousecapture: install failed")

// ErrInUse is returned when a process-wide facility is already installed.
var ErrInUse = errors.New("mousecapture: capture already installed")

// Kind identifies a qualifying pointer interaction. The zero value is invalid.
type Kind uint8

const (
	LeftDown Kind = iota + 1
	LeftUp
	RightDown
	RightUp
	Move
	LeftDrag
	RightDrag
)

// Kinds lists every qualifying kind in declaration order.
var Kinds = []Kind{LeftDown, LeftUp, RightDown, RightUp, Move, LeftDrag, RightDrag}

// Valid reports whether k is one of the qualifying kinds.
func (k Kind) Valid() bool {
	return k >= LeftDown && k <= RightDrag
}

// Mask is a set of kinds a tap delivers.
type Mask uint16

// PointerMask selects all seven qualifying kinds.
var PointerMask = MaskOf(Kinds...)

// MaskOf builds a mask from kinds. Invalid kinds are ignored.
func MaskOf(kinds ...Kind) Mask {
	var m Mask
	for _, k := range kinds {
		if k.Valid() {
			m |= 1 << k
		}
	}
	return m
}

// Has reports whether k is in the mask.
func (m Mask) Has(k Kind) bool {
	return k.Valid() && m&(1<<k) != 0
}

// Handler receives one captured event on the capture thread.
// It must return promptly: the OS holds input delivery while it runs. Any
// lock it takes is contended with whatever else holds that lock, so keep
// those critical sections short on the other side too.
type Handler func(kind Kind, x, y float64)

// Mechanism installs a capture facility on the calling goroutine's OS thread.
// Callers lock the thread with runtime.LockOSThread before Install.
type Mechanism interface {
	// Name identifies the mechanism in logs.
	Name() string

	// Install creates the facility restricted to mask. Events outside the
	// mask never reach h.
	Install(mask Mask, h Handler) (Tap, error)
}

// Tap is an installed capture facility.
//
// Enable, Run, Disable and Remove must be called from the thread that ran
// Install. Stop may be called from any goroutine, any number of times, and
// is sticky: a Stop issued before Run makes Run return immediately.
type Tap interface {
	// Enable starts delivering events to the handler.
	Enable() error

	// Run blocks in the native event loop until Stop.
	Run()

	// Stop asks Run to return.
	Stop()

	// Disable stops delivering events.
	Disable()

	// Remove uninstalls the facility and releases its native resources.
	Remove()
}

// Options configures the native mechanism.
type Options struct {
	// InstallTimeout bounds how long Install waits for the facility to
	// report itself running. Zero uses DefaultInstallTimeout.
	InstallTimeout time.Duration
}

// DefaultInstallTimeout is used when Options.InstallTimeout is zero.
const DefaultInstallTimeout = 2 * time.Second

// DefaultOptions returns the default native capture options.
func DefaultOptions() Options {
	return Options{InstallTimeout: DefaultInstallTimeout}
}

func (o Options) installTimeout() time.Duration {
	if o.InstallTimeout <= 0 {
		return DefaultInstallTimeout
	}
	return o.InstallTimeout
}
