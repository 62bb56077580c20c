package service

import (
	"github.com/pkg/errors"
)

var (
	ErrInvalidSubject = errors.New("subject id is required")
	ErrUnknownSubject = errors.New("unknown subject")
	// ErrNoCheckIn is returned for a check-out on a day without a check-in.
	ErrNoCheckIn = errors.New("no check-in recorded today")
)
