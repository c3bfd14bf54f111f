package cache

import "go.uber.org/zap"

// Tree bundles everything the eviction driver needs: the hazard table, the
// external collaborators (Reconciler, Discarder, the dirty predicate,
// read-generation bookkeeping), and the config knobs. One Tree is shared by
// every evictor session targeting the same in-memory tree.
type Tree struct {
	Root *Ref // the tree's root Ref; isRoot is page.ParentRef == Root

	cfg    Config
	table  *HazardTable
	stats  Stats
	logger *Logger

	reconciler Reconciler
	discarder  Discarder
	modified   ModifiedFunc
	readGen    ReadGenFunc

	rs *rootSplitter
}

// Option configures a Tree at construction, so optional collaborators
// (logger, stats, custom dirty predicate) don't all need to go through one
// struct literal.
type Option func(*Tree)

func WithConfig(cfg Config) Option            { return func(t *Tree) { t.cfg = cfg } }
func WithLogger(l *Logger) Option             { return func(t *Tree) { t.logger = l } }
func WithStats(s Stats) Option                { return func(t *Tree) { t.stats = s } }
func WithModifiedFunc(f ModifiedFunc) Option  { return func(t *Tree) { t.modified = f } }
func WithReadGen(f ReadGenFunc) Option        { return func(t *Tree) { t.readGen = f } }

// NewTree wires a Reconciler and Discarder (the two mandatory external
// collaborators) into a fresh eviction-capable Tree.
func NewTree(root *Ref, reconciler Reconciler, discarder Discarder, opts ...Option) *Tree {
	t := &Tree{
		Root:       root,
		cfg:        DefaultConfig(),
		stats:      nopStats{},
		logger:     NopLogger(),
		reconciler: reconciler,
		discarder:  discarder,
		modified:   DefaultModifiedFunc,
		readGen:    func(SessionID) uint64 { return 0 },
	}
	for _, opt := range opts {
		opt(t)
	}
	t.table = NewHazardTable(t.cfg)
	t.rs = &rootSplitter{reconciler: reconciler, discarder: discarder, logger: t.logger}
	return t
}

// NewSession binds a fresh Session to this tree's hazard table at the given
// row.
func (t *Tree) NewSession(row int) *Session {
	return NewSession(t.table, row)
}

// Hazards exposes the hazard table so readers can publish/clear their
// references: write a slot before dereferencing a child pointer, clear it
// afterwards.
func (t *Tree) Hazards() *HazardTable { return t.table }

// Evict is the top-level entry point:
//
//	evict(page, flags):
//	  if page has REC_SPLIT_MERGE:
//	      bump read_gen; parent_ref.state := MEM; return Ok
//	  if page has FORCE_EVICT:
//	      flags |= WAIT; clear force-evict marker
//	  try review(page, flags)
//	  if dirty(page): write_page(page)
//	  if no REC_* flag: clean-update-parent; discard
//	  else:            dirty-update-parent; discard (incl. merged descendants)
//	  on any failure after review: release(page, last_page, flags)
//
// A discard_page failure that happens after the parent Ref has been
// published returns the error without a release: that Ref is no longer
// LOCKED, and the LOCKED descendants belong to the page being discarded.
func (t *Tree) Evict(session *Session, page *Page, flags EvictFlag) error {
	if page.HasAnyFlag(FlagRecSplitMerge) {
		// Refuse quietly: merge-split pages are only ever discarded
		// together with their parent.
		page.BumpReadGen(t.readGen(session.ID))
		page.ParentRef.setState(RefMem)
		t.logger.debug("refusing eviction of merge-split page")
		return nil
	}

	if page.HasAnyFlag(FlagForceEvict) {
		flags |= FlagWait
		page.ClearFlags(FlagForceEvict)
	}

	env := &reviewEnv{
		table:    t.table,
		session:  session,
		stats:    t.stats,
		logger:   t.logger,
		modified: t.modified,
		maxSpins: t.cfg.MaxForcedSpins,
	}

	t.logger.debug("evicting page", zap.Uintptr("page", pageAddr(page)))

	lastPage, err := review(page, flags, env)
	if err != nil {
		return err
	}

	if t.modified(page) {
		if err := t.reconciler.WritePage(page); err != nil {
			release(page, lastPage, flags)
			return &WriteError{Err: err}
		}
	}

	if !page.HasAnyFlag(RecMask) {
		t.stats.IncrEvictUnmodified()
		return cleanUpdateParent(page, t.discarder)
	}

	t.stats.IncrEvictModified()
	isRoot := page.ParentRef == t.Root
	result, err := dirtyUpdateParent(page, flags, isRoot, lastPage, t.rs, t.discarder)
	if err != nil {
		return err
	}
	if result.aborted {
		// Without this bump an Empty non-root abort leaves the page's read
		// generation untouched, so a re-selecting eviction walk lands right
		// back on the same page. Bumping it gives the page a fresh
		// least-recently-used position instead.
		page.BumpReadGen(t.readGen(session.ID))
	}
	return nil
}
