package cache

// EvictFlag carries the caller-recognized flags for review/evict: WAIT
// selects forced-mode hazard acquisition, SINGLE means the caller already
// holds the tree exclusively so all hazard/state manipulation is skipped.
type EvictFlag uint32

const (
	FlagWait EvictFlag = 1 << iota
	FlagSingle
)

func (f EvictFlag) has(bit EvictFlag) bool { return f&bit != 0 }

// reviewEnv bundles the collaborators review/reviewChild need so neither
// carries a long, repeated parameter list.
type reviewEnv struct {
	table    *HazardTable
	session  *Session
	stats    Stats
	logger   *Logger
	modified ModifiedFunc
	maxSpins int
}

// review gets exclusive access to page (unless SINGLE) and to every
// in-memory descendant that would be merged into it during reconciliation.
//
// On success it returns the last page it successfully locked (the
// watermark release needs if a later step, e.g. write_page, fails). On
// ErrBusy it has already released every lock it took (the returned page is
// meaningless).
func review(page *Page, flags EvictFlag, env *reviewEnv) (*Page, error) {
	var lastPage *Page

	if !flags.has(FlagSingle) {
		if err := acquireExclusive(page.ParentRef, flags.has(FlagWait), env.table, env.session, env.stats, env.logger, env.maxSpins); err != nil {
			return nil, err
		}
		lastPage = page
	}

	if page.Type.IsInternal() {
		visited, err := walkChildrenForReview(page, flags, env)
		if visited != nil {
			lastPage = visited
		}
		if err != nil {
			release(page, lastPage, flags)
			return nil, err
		}
	}

	return lastPage, nil
}

// walkChildrenForReview is the single generic recursion shared by both
// internal page flavors. It returns the last child it locked (possibly
// nested arbitrarily deep) so the caller can track the watermark.
func walkChildrenForReview(parent *Page, flags EvictFlag, env *reviewEnv) (*Page, error) {
	it := newChildIterator(parent)
	var lastLocked *Page

	err := it.forEach(func(_ int, ref *Ref) error {
		switch ref.State() {
		case RefDisk:
			return nil
		case RefLocked, RefReading:
			return ErrBusy
		case RefMem:
			// fall through below
		default:
			return ErrInvariant
		}

		child := ref.Page()
		if err := reviewChild(ref, child, flags, env); err != nil {
			return err
		}
		lastLocked = child

		if child.Type.IsInternal() {
			nested, err := walkChildrenForReview(child, flags, env)
			if nested != nil {
				lastLocked = nested
			}
			if err != nil {
				return err
			}
		}
		return nil
	})

	return lastLocked, err
}

// reviewChild runs the two-phase mergeability test: a cheap prefilter on
// the child's reconciliation flags, then (once locked) a careful check of
// whether it's actually clean or an always-mergeable split-merge marker.
func reviewChild(ref *Ref, page *Page, flags EvictFlag, env *reviewEnv) error {
	// Cheap prefilter: the child must at least have a chance of a merge.
	if !page.HasAnyFlag(FlagRecEmpty | FlagRecSplit | FlagRecSplitMerge) {
		return ErrBusy
	}

	if !flags.has(FlagSingle) {
		if err := acquireExclusive(ref, flags.has(FlagWait), env.table, env.session, env.stats, env.logger, env.maxSpins); err != nil {
			return err
		}
	}

	// Careful test.
	if page.HasAnyFlag(FlagRecSplitMerge) {
		return nil // always mergeable, clean or dirty
	}
	if page.HasAnyFlag(FlagRecSplit | FlagRecEmpty) {
		modified := DefaultModifiedFunc
		if env.modified != nil {
			modified = env.modified
		}
		if !modified(page) {
			return nil // clean split/empty page: mergeable
		}
	}

	// Not mergeable. We locked this ref ourselves just above (unless
	// SINGLE); self-unlock so the watermark the caller tracks never
	// includes a page left LOCKED by a failed careful test.
	if !flags.has(FlagSingle) {
		ref.setState(RefMem)
	}
	return ErrBusy
}

// release walks the subtree in the same order review did, restoring
// LOCKED -> MEM, stopping immediately after visiting lastPage. SINGLE mode
// is a no-op, mirroring review's own skip.
func release(page *Page, lastPage *Page, flags EvictFlag) {
	if flags.has(FlagSingle) {
		return
	}

	page.ParentRef.setState(RefMem)
	if page == lastPage {
		return
	}

	if page.Type.IsInternal() {
		releaseChildren(page, lastPage)
	}
}

// releaseChildren mirrors walkChildrenForReview's traversal (same child
// order, same recursion into internal children) so the watermark stays
// meaningful, and skips every child not in state LOCKED; it returns true
// once lastPage has been reached, signaling the caller to stop.
func releaseChildren(parent *Page, lastPage *Page) bool {
	it := newChildIterator(parent)
	for i := 0; i < it.len(); i++ {
		ref := it.at(i)
		if ref.State() != RefLocked {
			// Never locked during review (on-disk, or the failed-careful-
			// test child that already self-unlocked) -- nothing to do.
			continue
		}

		child := ref.Page()
		ref.setState(RefMem)

		if child == lastPage {
			return true
		}
		if child.Type.IsInternal() {
			if releaseChildren(child, lastPage) {
				return true
			}
		}
	}
	return false
}
