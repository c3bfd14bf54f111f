package cache

import "sync/atomic"

// PageType distinguishes the two internal-page flavors from leaves. Both
// internal flavors share one walker, parameterized by childIterator (see
// childiter.go), instead of duplicating the traversal per flavor.
type PageType int

const (
	PageRowInternal PageType = iota
	PageColInternal
	PageLeaf
)

// IsInternal reports whether pages of this type own child Refs.
func (t PageType) IsInternal() bool {
	return t == PageRowInternal || t == PageColInternal
}

// Flag bits. ForceEvict is a request marker the cache daemon sets; the
// Rec* flags are written by the external reconciler (write_page) to report
// its outcome.
const (
	FlagForceEvict uint32 = 1 << iota
	FlagRecEmpty
	FlagRecReplace
	FlagRecSplit
	FlagRecSplitMerge
)

// RecMask covers every reconciliation-result flag. A page has no RecMask
// bit set iff its reconciliation outcome is Clean.
const RecMask = FlagRecEmpty | FlagRecReplace | FlagRecSplit | FlagRecSplitMerge

// RefState is the single synchronization word of a Ref -- never split
// across multiple fields.
type RefState uint32

const (
	RefDisk RefState = iota
	RefReading
	RefMem
	RefLocked
)

func (s RefState) String() string {
	switch s {
	case RefDisk:
		return "DISK"
	case RefReading:
		return "READING"
	case RefMem:
		return "MEM"
	case RefLocked:
		return "LOCKED"
	default:
		return "UNKNOWN"
	}
}

// Ref is the edge from a parent page to a child. Its state field is the
// sole synchronization point: transitions that publish new Addr/Size/page
// values to readers (-> DISK, -> MEM with a new page) must write those
// fields first, then store the new state. atomic.Uint32's Store already
// provides the release semantics that ordering needs.
type Ref struct {
	state atomic.Uint32
	Addr  uint64
	Size  uint32
	page  atomic.Pointer[Page]
}

// NewDiskRef creates a Ref pointing at an on-disk image, no in-memory page.
func NewDiskRef(addr uint64, size uint32) *Ref {
	r := &Ref{Addr: addr, Size: size}
	r.state.Store(uint32(RefDisk))
	return r
}

// NewMemRef creates a Ref already holding an in-memory page (used to seed
// trees in tests and demos without a disk round-trip).
func NewMemRef(page *Page) *Ref {
	r := &Ref{}
	r.page.Store(page)
	r.state.Store(uint32(RefMem))
	return r
}

// State reads the current state with a relaxed load, the reader fast path:
// callers that need to act on MEM must still publish a hazard reference and
// re-check.
func (r *Ref) State() RefState {
	return RefState(r.state.Load())
}

// Page returns the in-memory page pointer; valid only when State() is MEM
// or LOCKED.
func (r *Ref) Page() *Page {
	return r.page.Load()
}

// publish stores page/addr/size before the state transition that makes
// them visible to a hazard-checking reader.
func (r *Ref) publish(state RefState, page *Page, addr uint64, size uint32) {
	r.page.Store(page)
	r.Addr = addr
	r.Size = size
	r.state.Store(uint32(state))
}

// setState performs a bare state transition (used by the LOCKED<->MEM
// bookkeeping in hazard.go/review.go, which never changes Addr/Size/page).
func (r *Ref) setState(state RefState) {
	r.state.Store(uint32(state))
}

// casState attempts state oldS -> newS, returning whether it succeeded.
func (r *Ref) casState(oldS, newS RefState) bool {
	return r.state.CompareAndSwap(uint32(oldS), uint32(newS))
}

// ReconcileOutcome is the tagged variant stamped on Page.Modify once
// write_page succeeds. The Clean case is represented by its absence (no
// RecMask flag set).
type ReconcileOutcome interface {
	isReconcileOutcome()
}

// OutcomeReplace: the page was rewritten into a single on-disk image.
type OutcomeReplace struct {
	Addr uint64
	Size uint32
}

func (OutcomeReplace) isReconcileOutcome() {}

// OutcomeSplit: the page was rewritten into a new in-memory internal page
// enumerating one or more on-disk children.
type OutcomeSplit struct {
	NewPage *Page
}

func (OutcomeSplit) isReconcileOutcome() {}

// OutcomeEmpty: the page now contains nothing.
type OutcomeEmpty struct{}

func (OutcomeEmpty) isReconcileOutcome() {}

// Modify records a page's reconciliation outcome.
type Modify struct {
	Outcome ReconcileOutcome
}

// Page is an in-memory node of the tree. Ownership of Children runs
// parent -> child; ParentRef is a non-owning back-reference into the
// parent's slot array.
type Page struct {
	Type      PageType
	ParentRef *Ref // the Ref, in the parent, that points at this page
	Children  []*Ref
	Modify    *Modify

	readGen atomic.Uint64
	flags   atomic.Uint32
	dirty   atomic.Bool

	// Payload is opaque to the eviction core: the reconciler's own content
	// (e.g. staged key/value records) rides along here so write_page has
	// something concrete to turn into on-disk pages. The core never reads
	// it.
	Payload any
}

// NewPage allocates a page of the given type with no children yet. Modify
// is always present (not lazily allocated) since any page can be dirtied
// and every reconciler/driver path writes Modify.Outcome unconditionally
// once write_page succeeds.
func NewPage(t PageType) *Page {
	return &Page{Type: t, Modify: &Modify{}}
}

// Flags returns the current flag bitmask.
func (p *Page) Flags() uint32 { return p.flags.Load() }

// HasAnyFlag reports whether any bit in mask is set.
func (p *Page) HasAnyFlag(mask uint32) bool {
	return p.flags.Load()&mask != 0
}

// SetFlags atomically ORs bits into the flag word via a CAS retry loop
// rather than a plain read-modify-write.
func (p *Page) SetFlags(mask uint32) {
	for {
		old := p.flags.Load()
		if p.flags.CompareAndSwap(old, old|mask) {
			return
		}
	}
}

// ClearFlags atomically clears bits from the flag word.
func (p *Page) ClearFlags(mask uint32) {
	for {
		old := p.flags.Load()
		if p.flags.CompareAndSwap(old, old&^mask) {
			return
		}
	}
}

// ReadGen returns the page's read-generation counter.
func (p *Page) ReadGen() uint64 { return p.readGen.Load() }

// BumpReadGen installs a fresh read-generation value, used both when the
// cache daemon's selection is refused and on the Empty-non-root abort path.
func (p *Page) BumpReadGen(gen uint64) { p.readGen.Store(gen) }

// MarkModified sets the dirty bit backing the default page_is_modified
// predicate.
func (p *Page) MarkModified() { p.dirty.Store(true) }

// ClearModified clears it, called once a reconciliation outcome has been
// consumed.
func (p *Page) ClearModified() { p.dirty.Store(false) }

// IsModified is the default page_is_modified(page) implementation. Callers
// that need a different dirty predicate can ignore this and pass their own
// ModifiedFunc to the driver.
func (p *Page) IsModified() bool { return p.dirty.Load() }

// ModifiedFunc is the page_is_modified(page) -> bool collaborator,
// injectable so callers can back it with their own bookkeeping instead of
// Page.IsModified.
type ModifiedFunc func(*Page) bool

// DefaultModifiedFunc delegates to Page.IsModified.
func DefaultModifiedFunc(p *Page) bool { return p.IsModified() }
