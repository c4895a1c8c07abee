package trafficlight

import "errors"

var (
	ErrAlreadyStarted = errors.New("traffic light already started")
	ErrUnknownLight   = errors.New("unknown traffic light")
	ErrInvalidPhase   = errors.New("invalid phase")
)
