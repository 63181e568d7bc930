package ai

import "errors"

var (
	ErrMissingAPIKey   = errors.New("ai provider api key is not configured")
	ErrUnknownProvider = errors.New("unknown ai provider")
)
