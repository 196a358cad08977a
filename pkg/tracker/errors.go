package tracker

import "errors"

// Construction errors
var (
	// ErrInvalidTarget indicates a wrap or child creation over a value that is
	// not an object or array.
	ErrInvalidTarget = errors.New("target is not an object or array")
)

// Scope errors
var (
	// ErrUnbalancedScope indicates a leave with no active scope, or through a
	// scope handle that is not the active one.
	ErrUnbalancedScope = errors.New("unbalanced scope")
)

// Access errors
var (
	// ErrRevokedAccess indicates an operation through a revoked wrapper.
	ErrRevokedAccess = errors.New("wrapper has been revoked")

	// ErrInvalidPath indicates a path whose intermediate segment does not
	// resolve to an object or array, or a key the target cannot hold.
	ErrInvalidPath = errors.New("invalid path")
)
