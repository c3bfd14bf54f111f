package cache

// Reconciler is the write_page(page) external collaborator: turning a
// dirty in-memory page into on-disk images and/or a replacement subtree is
// entirely out of scope for this core. Postcondition on success:
// page.Modify.Outcome is set and the page carries the corresponding Rec*
// flag (or none, for Clean).
type Reconciler interface {
	WritePage(page *Page) error
}

// ReadGenFunc is the cache_read_gen(session) collaborator.
type ReadGenFunc func(SessionID) uint64
