package notifications

import "errors"

var (
	ErrInvalidSettings = errors.New("invalid notification settings")
	ErrNoContacts      = errors.New("no digest contacts configured")
	ErrDisabled        = errors.New("digest notifications are disabled")
)
