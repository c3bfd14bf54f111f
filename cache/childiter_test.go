package cache

import "testing"

func TestChildIteratorWalksInOrder(t *testing.T) {
	parent := NewPage(PageRowInternal)
	parent.Children = []*Ref{
		NewDiskRef(1, 4096),
		NewDiskRef(2, 4096),
		NewDiskRef(3, 4096),
	}

	it := newChildIterator(parent)
	if it.len() != 3 {
		t.Fatalf("want 3 children, got %d", it.len())
	}

	var seen []uint64
	err := it.forEach(func(i int, ref *Ref) error {
		if it.at(i) != ref {
			t.Fatalf("at(%d) disagrees with forEach's ref", i)
		}
		seen = append(seen, ref.Addr)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{1, 2, 3}
	for i, addr := range want {
		if seen[i] != addr {
			t.Fatalf("child %d: want addr %d, got %d", i, addr, seen[i])
		}
	}
}

func TestChildIteratorStopsOnError(t *testing.T) {
	parent := NewPage(PageRowInternal)
	parent.Children = []*Ref{NewDiskRef(1, 4096), NewDiskRef(2, 4096), NewDiskRef(3, 4096)}

	visited := 0
	err := newChildIterator(parent).forEach(func(i int, ref *Ref) error {
		visited++
		if i == 1 {
			return ErrBusy
		}
		return nil
	})
	if err != ErrBusy {
		t.Fatalf("want ErrBusy, got %v", err)
	}
	if visited != 2 {
		t.Fatalf("want traversal to stop after 2 visits, got %d", visited)
	}
}
