package config

import "errors"

var (
	// ErrMissingControllerURL is returned when CONTROLLER_URL is not set
	ErrMissingControllerURL = errors.New("CONTROLLER_URL is required")
)
