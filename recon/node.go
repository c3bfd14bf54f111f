package recon

// InsertIntoLeaf inserts a reconciled key/value record into a leaf page at
// its key-sorted position; an existing cell with the same key is replaced.
// The pager's own fsync/WAL-free write path is the only durability this
// repo offers; callers needing crash recovery bring their own log.
func InsertIntoLeaf(page *Page, key, value []byte) error {
	if !page.IsLeaf() {
		return ErrCellNotFound
	}

	cell := &Cell{
		Key:   key,
		Value: value,
	}

	return page.InsertCell(cell)
}

// InsertIntoInternal writes one separator/child-address cell into an
// internal page being built from a reconciled page's on-disk children.
func InsertIntoInternal(page *Page, key []byte, childPageID uint32) error {
	if page.IsLeaf() {
		return ErrCellNotFound
	}

	cell := &Cell{
		Key:   key,
		Child: childPageID,
	}

	return page.InsertCell(cell)
}
