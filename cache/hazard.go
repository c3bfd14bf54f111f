package cache

import (
	"sort"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// HazardTable is the process-wide S x H array of (session, page) slots:
// one row per concurrent session, a fixed number of columns per session.
// Readers publish their slot before dereferencing a child pointer and
// clear it afterwards; the eviction core only reads it.
//
// Each slot is an atomic.Pointer so a reader's publish is visible to the
// acquirer without any separate fence.
type HazardTable struct {
	sessions   int
	perSession int
	slots      [][]atomic.Pointer[Page]
}

// NewHazardTable builds a table sized per cfg.
func NewHazardTable(cfg Config) *HazardTable {
	t := &HazardTable{
		sessions:   cfg.SessionMax,
		perSession: cfg.HazardPerSession,
		slots:      make([][]atomic.Pointer[Page], cfg.SessionMax),
	}
	for i := range t.slots {
		t.slots[i] = make([]atomic.Pointer[Page], cfg.HazardPerSession)
	}
	return t
}

func (h *HazardTable) sessionMax() int      { return h.sessions }
func (h *HazardTable) hazardPerSession() int { return h.perSession }

// Acquire publishes a hazard reference: "I am using this page, do not free
// it." Readers must call this before dereferencing a child pointer.
func (h *HazardTable) Acquire(s *Session, col int, page *Page) {
	h.slots[s.row][col].Store(page)
}

// Release clears a previously published hazard reference.
func (h *HazardTable) Release(s *Session, col int) {
	h.slots[s.row][col].Store(nil)
}

func pageAddr(p *Page) uintptr {
	return uintptr(unsafe.Pointer(p))
}

// Snapshot walks the global table, compacts out nulls, and sorts the result
// by page address into the session's private scratch array. Stale
// snapshots are fine: the acquirer always re-checks after flipping state,
// so a fresh snapshot is taken on every retry.
func (h *HazardTable) Snapshot(s *Session) []*Page {
	s.snapshot = s.snapshot[:0]
	for row := 0; row < h.sessions; row++ {
		for col := 0; col < h.perSession; col++ {
			if p := h.slots[row][col].Load(); p != nil {
				s.snapshot = append(s.snapshot, p)
			}
		}
	}
	sort.Slice(s.snapshot, func(i, j int) bool {
		return pageAddr(s.snapshot[i]) < pageAddr(s.snapshot[j])
	})
	return s.snapshot
}

// contains binary-searches a sorted snapshot for page.
func contains(snapshot []*Page, page *Page) bool {
	if page == nil {
		return false
	}
	target := pageAddr(page)
	idx := sort.Search(len(snapshot), func(i int) bool {
		return pageAddr(snapshot[i]) >= target
	})
	return idx < len(snapshot) && snapshot[idx] == page
}

// acquireExclusive flips ref to LOCKED iff no hazard reference holds its
// page.
//
// Contract: ref must currently be MEM or LOCKED (a parent locked earlier in
// the same recursive walk is not an error). On success ref ends LOCKED and
// no reader holds a hazard on ref.Page(). On ErrBusy, ref is restored to
// MEM.
func acquireExclusive(ref *Ref, force bool, table *HazardTable, session *Session, stats Stats, logger *Logger, maxSpins int) error {
	switch ref.State() {
	case RefMem, RefLocked:
		// ok
	default:
		return ErrInvariant
	}

	// Single word store; no explicit fence needed, state is the atomic
	// synchronization point.
	ref.setState(RefLocked)

	spins := 0
	for {
		snap := table.Snapshot(session)
		page := ref.Page()

		if !contains(snap, page) {
			return nil
		}

		stats.IncrRecHazard()

		if !force {
			logger.warn("hazard request failed", zap.Uintptr("page", pageAddr(page)))
			ref.setState(RefMem)
			return ErrBusy
		}

		spins++
		if maxSpins > 0 && spins == maxSpins+1 {
			logger.warn("forced hazard acquisition exceeded bound",
				zap.Int("spins", spins), zap.Uintptr("page", pageAddr(page)))
		}

		yield()
	}
}
