package entity

import "time"

// OpsLock is the persisted cooldown window for one named ops task.
type OpsLock struct {
	Name        string
	LockedUntil time.Time
}

// ActiveAt reports whether the window is still closed at now.
func (l OpsLock) ActiveAt(now time.Time) bool {
	return l.LockedUntil.After(now)
}
