package models

import "errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnknownAchievement  = errors.New("unknown achievement")
	ErrNotNamedAchievement = errors.New("achievement cannot be unlocked by request")
	ErrUnknownMessage      = errors.New("unknown message type")
)
