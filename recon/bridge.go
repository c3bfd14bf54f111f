package recon

import (
	"sort"

	"github.com/intellect4all/pagecache/cache"
)

// Record is the unit of content an evicted leaf page carries in its
// cache.Page.Payload: a key/value pair staged for reconciliation. The
// eviction core never looks inside Payload (cache.Page's doc comment);
// Engine is the one piece of code that does.
type Record struct {
	Key   []byte
	Value []byte
}

// Engine adapts the on-disk Pager into the two collaborators the eviction
// core needs from the outside world: Reconciler (write_page) and Discarder
// (discard_page). Turning a dirty in-memory page into on-disk images is
// deliberately out of scope for the core itself; Engine is where that
// happens.
type Engine struct {
	pager *Pager
}

// NewEngine opens (or creates) a database file and returns the bridge that
// drives it from the eviction core.
func NewEngine(path string, cacheSize int) (*Engine, error) {
	pager, err := NewPager(path, cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{pager: pager}, nil
}

// Pager exposes the underlying pager, e.g. for Sync()/Close() at shutdown.
func (e *Engine) Pager() *Pager { return e.pager }

// WritePage implements cache.Reconciler. A leaf page with no staged records
// reconciles Empty. One that fits in a single on-disk leaf reconciles
// Replace. One that doesn't is split: records are partitioned in half and
// written to two fresh leaves, and the page's outcome becomes Split,
// wrapping a brand-new in-memory internal cache.Page that owns both as
// on-disk Refs. The split is always two-way: if either half still does not
// fit in one leaf, WritePage returns ErrPageFull and sets no outcome.
//
// Internal pages (already holding only Refs, no Payload) always reconcile
// Replace: their Children are serialized as separator/child-id cells, the
// shape InsertIntoInternal expects.
func (e *Engine) WritePage(page *cache.Page) error {
	records, _ := page.Payload.([]Record)

	if page.Type.IsInternal() {
		return e.writeInternal(page)
	}

	if len(records) == 0 {
		page.Modify.Outcome = cache.OutcomeEmpty{}
		page.SetFlags(cache.FlagRecEmpty)
		page.ClearModified()
		return nil
	}

	sort.Slice(records, func(i, j int) bool {
		return string(records[i].Key) < string(records[j].Key)
	})

	if leaf, err := e.tryFit(records); err == nil {
		addr, size := uint64(leaf.ID()), uint32(PageSize)
		page.Modify.Outcome = cache.OutcomeReplace{Addr: addr, Size: size}
		page.SetFlags(cache.FlagRecReplace)
		page.ClearModified()
		return nil
	}

	mid := len(records) / 2
	left, err := e.writeLeaf(records[:mid])
	if err != nil {
		return err
	}
	right, err := e.writeLeaf(records[mid:])
	if err != nil {
		return err
	}

	next := cache.NewPage(cache.PageRowInternal)
	next.Children = []*cache.Ref{
		cache.NewDiskRef(uint64(left.ID()), PageSize),
		cache.NewDiskRef(uint64(right.ID()), PageSize),
	}

	page.Modify.Outcome = cache.OutcomeSplit{NewPage: next}
	page.SetFlags(cache.FlagRecSplit)
	page.ClearModified()
	return nil
}

// tryFit attempts to pack every record into one fresh leaf page, returning
// ErrPageFull (unmodified, the caller falls back to splitting) if they
// don't fit.
func (e *Engine) tryFit(records []Record) (*Page, error) {
	leaf, err := e.pager.NewPage(PageTypeLeaf)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := InsertIntoLeaf(leaf, r.Key, r.Value); err != nil {
			e.pager.FreePage(leaf.ID())
			return nil, err
		}
	}
	e.pager.MarkDirty(leaf.ID())
	return leaf, nil
}

func (e *Engine) writeLeaf(records []Record) (*Page, error) {
	leaf, err := e.pager.NewPage(PageTypeLeaf)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if err := InsertIntoLeaf(leaf, r.Key, r.Value); err != nil {
			return nil, err
		}
	}
	e.pager.MarkDirty(leaf.ID())
	return leaf, nil
}

// writeInternal serializes a page's Children into a fresh on-disk internal
// page, one InsertIntoInternal cell per child Ref in state DISK. Children in
// any other state, including in-memory descendants that review() locked for
// merging, are skipped and get no cell.
func (e *Engine) writeInternal(page *cache.Page) error {
	internal, err := e.pager.NewPage(PageTypeInternal)
	if err != nil {
		return err
	}
	for i, ref := range page.Children {
		if ref.State() != cache.RefDisk {
			continue
		}
		key := separatorKey(i)
		if err := InsertIntoInternal(internal, key, uint32(ref.Addr)); err != nil {
			return err
		}
	}
	e.pager.MarkDirty(internal.ID())

	page.Modify.Outcome = cache.OutcomeReplace{Addr: uint64(internal.ID()), Size: PageSize}
	page.SetFlags(cache.FlagRecReplace)
	page.ClearModified()
	return nil
}

// separatorKey derives a stand-in separator key from a child's slot index.
// A real reconciler would carry forward the child subtree's minimum key;
// the eviction core doesn't track keys at all (cache.Page.Payload is opaque
// to it), so the bridge has nothing better to use.
func separatorKey(slot int) []byte {
	return []byte{byte(slot >> 24), byte(slot >> 16), byte(slot >> 8), byte(slot)}
}

// DiscardPage implements cache.Discarder. The in-memory cache.Page being
// discarded here is either one that just reconciled (its replacement is
// already live on disk, addressed by the parent Ref -- freeing that address
// would corrupt the tree) or a merged-in descendant that was never written
// under its own address at all. Either way there is nothing on disk for
// this engine to free; DiscardPage's job is purely to drop the in-memory
// structure, which in Go happens automatically once nothing references it.
func (e *Engine) DiscardPage(page *cache.Page) error {
	return nil
}
