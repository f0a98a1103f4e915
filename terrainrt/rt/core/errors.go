package core

import (
	"errors"
	"fmt"
)

var (
	// ErrReadbackFailure marks an asynchronous map-for-read that did not complete.
	ErrReadbackFailure = errors.New("readback failure")
	// ErrDeviceExhausted marks a buffer or pipeline that the device refused to create.
	ErrDeviceExhausted = errors.New("device exhausted")
	// ErrMalformedKey marks a chunk key that does not parse back into a coordinate.
	ErrMalformedKey = errors.New("malformed chunk key")
)

// ReadbackError describes a failed readback of a single staging buffer.
type ReadbackError struct {
	Label  string
	Status string
	Err    error
}

func (e *ReadbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("readback %s: %s: %v", e.Label, e.Status, e.Err)
	}
	return fmt.Sprintf("readback %s: %s", e.Label, e.Status)
}

func (e *ReadbackError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrReadbackFailure, e.Err}
	}
	return []error{ErrReadbackFailure}
}

// DeviceError wraps a resource creation failure reported by the device.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	return []error{ErrDeviceExhausted, e.Err}
}

// Exhausted wraps err as a DeviceError for op. A nil err stays nil.
func Exhausted(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Err: err}
}
