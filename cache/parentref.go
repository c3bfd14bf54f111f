package cache

// InvalidAddr marks a Ref.Addr that doesn't point anywhere -- an empty,
// rootless tree.
const InvalidAddr = ^uint64(0)

// Discarder is the discard_page(page) external collaborator: it
// deallocates a page and drains its tracked-object list. The eviction core
// never frees memory itself.
type Discarder interface {
	DiscardPage(page *Page) error
}

// discardSubtree recursively discards every merged-in descendant, skipping
// DISK children. A REC_SPLIT_MERGE page is only ever discarded here,
// alongside the parent it merged into.
func discardSubtree(page *Page, discarder Discarder) error {
	if !page.Type.IsInternal() {
		return nil
	}
	it := newChildIterator(page)
	return it.forEach(func(_ int, ref *Ref) error {
		if ref.State() == RefDisk {
			return nil
		}
		child := ref.Page()
		if child == nil {
			return nil
		}
		if err := discardSubtree(child, discarder); err != nil {
			return err
		}
		if err := discarder.DiscardPage(child); err != nil {
			return &DiscardError{Err: err}
		}
		return nil
	})
}

// cleanUpdateParent handles the Clean case: the page had no reconciliation
// outcome at all, so the parent Ref is simply pointed at DISK with no
// page, and the page itself is discarded.
func cleanUpdateParent(page *Page, discarder Discarder) error {
	page.ParentRef.publish(RefDisk, nil, page.ParentRef.Addr, page.ParentRef.Size)
	return discardAll(page, discarder)
}

func discardAll(page *Page, discarder Discarder) error {
	if err := discardSubtree(page, discarder); err != nil {
		return err
	}
	if err := discarder.DiscardPage(page); err != nil {
		return &DiscardError{Err: err}
	}
	return nil
}

// dirtyUpdateParentResult reports how the dirty-page parent-ref update
// ended: either the eviction completed or it was a non-error abort for the
// Empty/non-root case. A root split is collapsed inside dirtyUpdateParent
// itself, before it returns.
type dirtyUpdateParentResult struct {
	// aborted is true for the Empty/non-root refusal: locks were released
	// and the page must NOT be discarded (it stays live, to be merged by
	// its own parent's future eviction).
	aborted bool
}

// dirtyUpdateParent applies the parent-Ref update for the Empty, Replace
// and Split reconciliation outcomes. lastPage is the watermark review()
// returned, needed by the Empty/non-root abort path to release exactly the
// locks that were taken.
func dirtyUpdateParent(page *Page, flags EvictFlag, isRoot bool, lastPage *Page, rs *rootSplitter, discarder Discarder) (dirtyUpdateParentResult, error) {
	outcome := page.Modify.Outcome

	switch o := outcome.(type) {
	case OutcomeEmpty:
		if isRoot {
			page.ParentRef.publish(RefDisk, nil, InvalidAddr, 0)
			break
		}
		release(page, lastPage, flags)
		return dirtyUpdateParentResult{aborted: true}, nil

	case OutcomeReplace:
		page.ParentRef.publish(RefDisk, nil, o.Addr, o.Size)

	case OutcomeSplit:
		if isRoot {
			addr, size, err := rs.collapse(o.NewPage)
			if err != nil {
				release(page, lastPage, flags)
				return dirtyUpdateParentResult{}, err
			}
			page.ParentRef.publish(RefDisk, nil, addr, size)
		} else {
			page.ParentRef.publish(RefMem, o.NewPage, 0, 0)
		}

	default:
		release(page, lastPage, flags)
		return dirtyUpdateParentResult{}, ErrInvariant
	}

	if err := discardAll(page, discarder); err != nil {
		return dirtyUpdateParentResult{}, err
	}
	return dirtyUpdateParentResult{}, nil
}
