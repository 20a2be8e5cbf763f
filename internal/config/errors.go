package config

import "errors"

// Configuration errors. Callers match them with errors.Is; the returned
// errors wrap these with the offending context, key or value.
var (
	// ErrMissingTriggers is returned when a context has no triggers.
	ErrMissingTriggers = errors.New("missing action triggers")

	// ErrMissingActions is returned when a context has no actions.
	ErrMissingActions = errors.New("missing actions to execute")

	// ErrUnknownIdentifier is returned when a trigger or action name has no
	// registered implementation.
	ErrUnknownIdentifier = errors.New("unknown identifier")

	// ErrInvalidConfig is returned when a value has the wrong shape or content.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDuplicateContext is returned when two contexts share a name.
	ErrDuplicateContext = errors.New("duplicate context name")
)
