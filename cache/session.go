package cache

import "github.com/google/uuid"

// SessionID identifies one evictor/reader session. Readers publish hazard
// references under their SessionID's row of the hazard table; an evictor
// session owns every Ref it transitions to LOCKED for the duration of its
// walk.
type SessionID uuid.UUID

// NewSessionID mints a fresh session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// Session is the per-session scratch state the eviction core needs: a row
// index into the hazard table and a reusable, address-sorted snapshot
// buffer. Reusing the buffer across retries avoids an allocation per
// acquire_exclusive retry under WAIT.
type Session struct {
	ID       SessionID
	row      int
	snapshot []*Page // scratch, sorted by address on each Snapshot() call
}

// NewSession binds a session to a row of the given hazard table. Row
// assignment is the caller's responsibility (e.g. a connection pool handing
// out row indices 0..SessionMax-1); out-of-range rows panic, matching the
// fixed-size hazard table's hard limit.
func NewSession(table *HazardTable, row int) *Session {
	if row < 0 || row >= table.sessionMax() {
		panic("cache: session row out of range")
	}
	return &Session{
		ID:       NewSessionID(),
		row:      row,
		snapshot: make([]*Page, 0, table.hazardPerSession()),
	}
}
