package types

import "errors"

var (
	ErrDecode        = errors.New("image could not be decoded")
	ErrTooLarge      = errors.New("image exceeds size limit")
	ErrNoImage       = errors.New("no image loaded")
	ErrNoPreset      = errors.New("no preset selected")
	ErrUnknownPreset = errors.New("unknown preset")
	ErrSessionLimit  = errors.New("too many active sessions")
	// ErrSuperseded is returned when a newer upload or preset selection
	// replaced the pairing a result was computed for.
	ErrSuperseded = errors.New("result superseded by newer input")
)
