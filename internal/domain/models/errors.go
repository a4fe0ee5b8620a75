package models

import "errors"

// ErrDataUnavailable marks an indicator fetch that produced no usable data.
var ErrDataUnavailable = errors.New("data unavailable")

// ErrPositionClosed is returned when closing a position that is no longer open.
var ErrPositionClosed = errors.New("position already closed")
