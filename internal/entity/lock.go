package entity

import (
	"fmt"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// Lock positions reported by the cloud.
const (
	LockLocked    = "locked"
	LockUnlocked  = "unlocked"
	LockLocking   = "locking"
	LockUnlocking = "unlocking"
	LockJammed    = "jammed"
)

// DoorLock is a smart lock driven by the lock-control function.
type DoorLock struct {
	base
	instance string
	position string
}

// NewDoorLock builds a lock entity for a descriptor.
func NewDoorLock(d device.Device, logger Logger) *DoorLock {
	l := &DoorLock{
		base: newBase(KindLock, d.ID+"_lock", d.FriendlyName, d, logger),
	}
	if fns := d.FunctionsFor(device.FunctionLockControl); len(fns) > 0 {
		l.instance = fns[0].Instance
	}
	return l
}

// Apply implements Entity.
func (l *DoorLock) Apply(states []device.State) {
	for _, s := range states {
		if s.Class == device.FunctionLockControl {
			if s.Instance == l.instance {
				l.position = stringValue(s.Value)
			}
			continue
		}
		l.keepAttribute(s)
	}
}

// Translate implements Entity.
func (l *DoorLock) Translate(a Action) ([]device.State, error) {
	switch a.(type) {
	case Lock:
		return []device.State{tuple(device.FunctionLockControl, l.instance, LockLocking)}, nil
	case Unlock:
		return []device.State{tuple(device.FunctionLockControl, l.instance, LockUnlocking)}, nil
	default:
		return nil, fmt.Errorf("%w: %s on lock", ErrNotSupported, a.ActionName())
	}
}

// Snapshot implements Entity.
func (l *DoorLock) Snapshot() Snapshot {
	s := l.snapshot()
	s.Position = l.position
	return s
}
