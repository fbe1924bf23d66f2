package adi

import "github.com/juju/errors"

const (
	// ErrConsumed is returned by an Uninitialized value after Initialize.
	ErrConsumed = errors.ConstError("uninitialized interface already consumed")

	// ErrClosed is returned by every operation after Interface.Close.
	ErrClosed = errors.ConstError("interface closed")

	// ErrInterfaceBorrowed is returned while a Memory handle is outstanding.
	ErrInterfaceBorrowed = errors.ConstError("interface borrowed by a memory handle")

	// ErrNotMemoryAP is returned when a memory handle is requested for an AP
	// that did not classify as a MEM-AP.
	ErrNotMemoryAP = errors.ConstError("not a memory AP")
)
