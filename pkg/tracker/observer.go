package tracker

import "github.com/tonimelisma/statetracker/pkg/value"

// Observer receives tracker lifecycle events. Implementations must be cheap:
// Recorded fires on every logged read.
type Observer interface {
	// Created fires when a wrapper and its tracker node are constructed.
	Created(path value.Path)
	// Recorded fires when a read is appended to the active scope.
	Recorded(path value.Path)
	// Rebased fires when a cached child wrapper is discarded because the live
	// value at its key was replaced.
	Rebased(path value.Path)
	// Relinked fires after a successful Relink.
	Relinked(path value.Path)
	// BackwardAccess fires when a read is attributed to a foreign scope.
	BackwardAccess(path value.Path)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Created(value.Path)        {}
func (NopObserver) Recorded(value.Path)       {}
func (NopObserver) Rebased(value.Path)        {}
func (NopObserver) Relinked(value.Path)       {}
func (NopObserver) BackwardAccess(value.Path) {}
