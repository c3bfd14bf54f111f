package cache

import "testing"

func newTestTable(t *testing.T) (*HazardTable, *Session) {
	t.Helper()
	table := NewHazardTable(Config{SessionMax: 4, HazardPerSession: 2, MaxForcedSpins: 0})
	session := NewSession(table, 0)
	return table, session
}

func TestHazardAcquireReleaseVisibility(t *testing.T) {
	table, session := newTestTable(t)
	p := NewPage(PageLeaf)

	table.Acquire(session, 0, p)
	if !contains(table.Snapshot(session), p) {
		t.Fatal("acquired page should appear in a fresh snapshot")
	}

	table.Release(session, 0)
	if contains(table.Snapshot(session), p) {
		t.Fatal("released page should no longer appear in a snapshot")
	}
}

func TestSnapshotSortedAndSearchable(t *testing.T) {
	table, session := newTestTable(t)
	other := NewSession(table, 1)

	pages := []*Page{NewPage(PageLeaf), NewPage(PageLeaf), NewPage(PageLeaf)}
	table.Acquire(session, 0, pages[0])
	table.Acquire(session, 1, pages[1])
	table.Acquire(other, 0, pages[2])

	snap := table.Snapshot(session)
	if len(snap) != 3 {
		t.Fatalf("want 3 live hazards across both sessions, got %d", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if pageAddr(snap[i-1]) > pageAddr(snap[i]) {
			t.Fatal("snapshot should be sorted by address")
		}
	}
	for _, p := range pages {
		if !contains(snap, p) {
			t.Fatalf("contains() should find every acquired page in the snapshot")
		}
	}
}

func TestContainsNilPage(t *testing.T) {
	if contains([]*Page{NewPage(PageLeaf)}, nil) {
		t.Fatal("contains(nil) must always be false")
	}
}

func TestAcquireExclusiveNoHazard(t *testing.T) {
	table, session := newTestTable(t)
	p := NewPage(PageLeaf)
	ref := NewMemRef(p)

	if err := acquireExclusive(ref, false, table, session, nopStats{}, NopLogger(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.State() != RefLocked {
		t.Fatalf("want LOCKED, got %s", ref.State())
	}
}

func TestAcquireExclusiveBusyNonWaitRestoresState(t *testing.T) {
	table, session := newTestTable(t)
	reader := NewSession(table, 1)

	p := NewPage(PageLeaf)
	ref := NewMemRef(p)
	table.Acquire(reader, 0, p)

	err := acquireExclusive(ref, false, table, session, nopStats{}, NopLogger(), 0)
	if err != ErrBusy {
		t.Fatalf("want ErrBusy, got %v", err)
	}
	if ref.State() != RefMem {
		t.Fatalf("a failed acquire must restore MEM, got %s", ref.State())
	}
}

func TestAcquireExclusiveForcedWaitsThenSucceeds(t *testing.T) {
	table, session := newTestTable(t)
	reader := NewSession(table, 1)

	p := NewPage(PageLeaf)
	ref := NewMemRef(p)
	table.Acquire(reader, 0, p)

	done := make(chan error, 1)
	go func() {
		done <- acquireExclusive(ref, true, table, session, nopStats{}, NopLogger(), 0)
	}()

	table.Release(reader, 0)

	if err := <-done; err != nil {
		t.Fatalf("forced acquire should eventually succeed once the hazard clears: %v", err)
	}
	if ref.State() != RefLocked {
		t.Fatalf("want LOCKED after forced acquire, got %s", ref.State())
	}
}

func TestAcquireExclusiveRejectsDiskOrReading(t *testing.T) {
	table, session := newTestTable(t)

	diskRef := NewDiskRef(1, 4096)
	if err := acquireExclusive(diskRef, false, table, session, nopStats{}, NopLogger(), 0); err != ErrInvariant {
		t.Fatalf("want ErrInvariant for a DISK ref, got %v", err)
	}

	readingRef := NewMemRef(NewPage(PageLeaf))
	readingRef.setState(RefReading)
	if err := acquireExclusive(readingRef, false, table, session, nopStats{}, NopLogger(), 0); err != ErrInvariant {
		t.Fatalf("want ErrInvariant for a READING ref, got %v", err)
	}
}
