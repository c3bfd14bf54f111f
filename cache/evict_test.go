package cache

import "testing"

// stubReconciler assigns a fixed outcome and Rec* flag every time
// WritePage is called, the shape a real reconciler call leaves behind.
type stubReconciler struct {
	outcome ReconcileOutcome
	flag    uint32
	err     error
	calls   int
}

func (s *stubReconciler) WritePage(p *Page) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	p.Modify.Outcome = s.outcome
	p.SetFlags(s.flag)
	p.ClearModified()
	return nil
}

func newTestTree(reconciler Reconciler, discarder Discarder) *Tree {
	return NewTree(nil, reconciler, discarder, WithConfig(Config{SessionMax: 4, HazardPerSession: 4}))
}

func TestEvictCleanPage(t *testing.T) {
	page := NewPage(PageLeaf)
	ref := NewMemRef(page)
	page.ParentRef = ref

	d := &fakeDiscarder{}
	tree := newTestTree(&stubReconciler{}, d)
	session := tree.NewSession(0)

	if err := tree.Evict(session, page, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.State() != RefDisk {
		t.Fatalf("a clean page publishes DISK, got %s", ref.State())
	}
	if len(d.discarded) != 1 {
		t.Fatal("want the page discarded")
	}
}

func TestEvictDirtyReplace(t *testing.T) {
	page := NewPage(PageLeaf)
	page.MarkModified()
	ref := NewMemRef(page)
	page.ParentRef = ref

	rec := &stubReconciler{outcome: OutcomeReplace{Addr: 3, Size: 4096}, flag: FlagRecReplace}
	d := &fakeDiscarder{}
	tree := newTestTree(rec, d)
	session := tree.NewSession(0)

	if err := tree.Evict(session, page, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("want write_page called once, got %d", rec.calls)
	}
	if ref.State() != RefDisk || ref.Addr != 3 {
		t.Fatalf("want DISK addr=3, got state=%s addr=%d", ref.State(), ref.Addr)
	}
}

func TestEvictRefusesSplitMergePage(t *testing.T) {
	page := NewPage(PageLeaf)
	page.SetFlags(FlagRecSplitMerge)
	ref := NewMemRef(page)
	ref.setState(RefLocked) // as if a parent's review already locked it
	page.ParentRef = ref

	rec := &stubReconciler{}
	d := &fakeDiscarder{}
	tree := newTestTree(rec, d)
	session := tree.NewSession(0)

	if err := tree.Evict(session, page, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.calls != 0 {
		t.Fatal("a merge-split page must never reach write_page directly")
	}
	if ref.State() != RefMem {
		t.Fatalf("want MEM after the quiet refusal, got %s", ref.State())
	}
	if len(d.discarded) != 0 {
		t.Fatal("a refused eviction must not discard anything")
	}
}

func TestEvictForceEvictClearsMarker(t *testing.T) {
	page := NewPage(PageLeaf)
	page.SetFlags(FlagForceEvict)
	ref := NewMemRef(page)
	page.ParentRef = ref

	d := &fakeDiscarder{}
	tree := newTestTree(&stubReconciler{}, d)
	session := tree.NewSession(0)

	if err := tree.Evict(session, page, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.HasAnyFlag(FlagForceEvict) {
		t.Fatal("ForceEvict marker should be cleared once consumed")
	}
}

func TestEvictWritePageFailureReleasesLocks(t *testing.T) {
	child := NewPage(PageLeaf)
	child.SetFlags(FlagRecEmpty)
	childRef := NewMemRef(child)
	child.ParentRef = childRef

	parent := NewPage(PageRowInternal)
	parent.MarkModified()
	parentRef := NewMemRef(parent)
	parent.ParentRef = parentRef
	parent.Children = []*Ref{childRef}

	rec := &stubReconciler{err: errWriteBoom}
	d := &fakeDiscarder{}
	tree := newTestTree(rec, d)
	session := tree.NewSession(0)

	err := tree.Evict(session, parent, 0)
	if err == nil {
		t.Fatal("want an error propagated from write_page")
	}
	if parentRef.State() != RefMem {
		t.Fatalf("write_page failure must release the parent ref, got %s", parentRef.State())
	}
	if childRef.State() != RefMem {
		t.Fatalf("write_page failure must release locked descendants too, got %s", childRef.State())
	}
	if len(d.discarded) != 0 {
		t.Fatal("a failed write_page must not discard anything")
	}
}

func TestEvictEmptyNonRootAbortBumpsReadGen(t *testing.T) {
	page := NewPage(PageLeaf)
	page.MarkModified()
	ref := NewMemRef(page)
	page.ParentRef = ref

	root := NewDiskRef(InvalidAddr, 0) // a distinct Ref: page.ParentRef != tree.Root, so non-root
	rec := &stubReconciler{outcome: OutcomeEmpty{}, flag: FlagRecEmpty}
	d := &fakeDiscarder{}

	tree := NewTree(root, rec, d, WithConfig(Config{SessionMax: 4, HazardPerSession: 4}),
		WithReadGen(func(SessionID) uint64 { return 55 }))
	session := tree.NewSession(0)

	if err := tree.Evict(session, page, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.State() != RefMem {
		t.Fatalf("an aborted Empty eviction must release the ref, got %s", ref.State())
	}
	if page.ReadGen() != 55 {
		t.Fatalf("the abort path should bump read_gen, got %d", page.ReadGen())
	}
	if len(d.discarded) != 0 {
		t.Fatal("an aborted eviction must not discard the page")
	}
}

var errWriteBoom = &writeBoomErr{}

type writeBoomErr struct{}

func (*writeBoomErr) Error() string { return "write_page failed" }
