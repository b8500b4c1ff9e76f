//go:build !cgo || !(darwin || linux || windows)

package mousecapture

// Native returns ErrUnsupported on platforms without a native capture facility.
func Native(opts Options) (Mechanism, error) {
	return nil, ErrUnsupported
}
