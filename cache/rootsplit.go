package cache

import "go.uber.org/zap"

// rootSplitter handles the one case a non-root eviction never sees: a
// freshly-split root has no parent Ref to merge its split into, so it must
// be written immediately -- whatever triggered eviction needs to observe a
// complete tree before it returns.
type rootSplitter struct {
	reconciler Reconciler
	discarder  Discarder
	logger     *Logger
}

// collapse repeatedly reconciles page (and whatever it splits into) until a
// single Replace outcome is reached, returning that outcome's on-disk
// address/size. Each iteration writes one level's worth of children to
// disk, so the loop terminates once the last split settles into a page
// small enough to replace outright.
func (rs *rootSplitter) collapse(page *Page) (uint64, uint32, error) {
	for {
		page.MarkModified()
		page.ClearFlags(RecMask)

		if err := rs.reconciler.WritePage(page); err != nil {
			return 0, 0, &WriteError{Err: err}
		}

		switch o := page.Modify.Outcome.(type) {
		case OutcomeReplace:
			if err := rs.discarder.DiscardPage(page); err != nil {
				return 0, 0, &DiscardError{Err: err}
			}
			return o.Addr, o.Size, nil

		case OutcomeSplit:
			rs.logger.debug("root page split", zap.Uintptr("next_page", pageAddr(o.NewPage)))
			next := o.NewPage
			if err := rs.discarder.DiscardPage(page); err != nil {
				return 0, 0, &DiscardError{Err: err}
			}
			page = next

		default:
			return 0, 0, ErrInvariant
		}
	}
}
