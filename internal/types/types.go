// Package types provides shared type definitions for the application.
package types

// MouseEvent is one delivered pointer event as written by the CLI.
type MouseEvent struct {
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"` // Unix milliseconds at delivery
	Seq       int     `json:"seq"`
}

// CaptureStatus summarizes a capture session.
type CaptureStatus struct {
	Bridge      string `json:"bridge"`
	Mechanism   string `json:"mechanism"`
	State       string `json:"state"`
	Delivered   uint64 `json:"delivered"`
	Overwritten uint64 `json:"overwritten"`
	Unknown     uint64 `json:"unknown"`
	Pending     int    `json:"pending"`
	Capacity    int    `json:"capacity"`
	Written     int    `json:"written"`
}
