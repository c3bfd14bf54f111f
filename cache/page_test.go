package cache

import "testing"

func TestRefStatePublish(t *testing.T) {
	ref := NewDiskRef(42, 4096)
	if ref.State() != RefDisk {
		t.Fatalf("new disk ref: want DISK, got %s", ref.State())
	}
	if ref.Page() != nil {
		t.Fatalf("new disk ref: want nil page, got %v", ref.Page())
	}

	p := NewPage(PageLeaf)
	ref.publish(RefMem, p, 0, 0)
	if ref.State() != RefMem {
		t.Fatalf("after publish: want MEM, got %s", ref.State())
	}
	if ref.Page() != p {
		t.Fatalf("after publish: page pointer mismatch")
	}
}

func TestRefCasState(t *testing.T) {
	ref := NewMemRef(NewPage(PageLeaf))
	if !ref.casState(RefMem, RefLocked) {
		t.Fatal("expected MEM->LOCKED CAS to succeed")
	}
	if ref.casState(RefMem, RefLocked) {
		t.Fatal("expected second MEM->LOCKED CAS to fail, state is already LOCKED")
	}
	if ref.State() != RefLocked {
		t.Fatalf("want LOCKED, got %s", ref.State())
	}
}

func TestPageFlags(t *testing.T) {
	p := NewPage(PageLeaf)
	if p.HasAnyFlag(RecMask) {
		t.Fatal("fresh page should have no Rec* flags")
	}

	p.SetFlags(FlagRecSplit)
	if !p.HasAnyFlag(FlagRecSplit) {
		t.Fatal("SetFlags(FlagRecSplit) should be visible via HasAnyFlag")
	}
	if !p.HasAnyFlag(RecMask) {
		t.Fatal("RecMask should match once any Rec* flag is set")
	}

	p.SetFlags(FlagForceEvict)
	p.ClearFlags(FlagRecSplit)
	if p.HasAnyFlag(FlagRecSplit) {
		t.Fatal("ClearFlags(FlagRecSplit) should clear only that bit")
	}
	if !p.HasAnyFlag(FlagForceEvict) {
		t.Fatal("ClearFlags should not disturb unrelated bits")
	}
}

func TestPageModifiedRoundTrip(t *testing.T) {
	p := NewPage(PageLeaf)
	if p.IsModified() {
		t.Fatal("fresh page should not be modified")
	}
	p.MarkModified()
	if !p.IsModified() {
		t.Fatal("MarkModified should set the dirty bit")
	}
	p.ClearModified()
	if p.IsModified() {
		t.Fatal("ClearModified should clear the dirty bit")
	}
}

func TestPageReadGen(t *testing.T) {
	p := NewPage(PageLeaf)
	if p.ReadGen() != 0 {
		t.Fatalf("fresh page read gen: want 0, got %d", p.ReadGen())
	}
	p.BumpReadGen(7)
	if p.ReadGen() != 7 {
		t.Fatalf("want 7, got %d", p.ReadGen())
	}
}

func TestDefaultModifiedFunc(t *testing.T) {
	p := NewPage(PageLeaf)
	if DefaultModifiedFunc(p) {
		t.Fatal("clean page should report unmodified")
	}
	p.MarkModified()
	if !DefaultModifiedFunc(p) {
		t.Fatal("dirty page should report modified")
	}
}
