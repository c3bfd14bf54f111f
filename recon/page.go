package recon

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	PageSize = 4096 // matches the OS page size

	// Page types
	PageTypeInternal = 1
	PageTypeLeaf     = 2

	// Header layout: [type(1)][numCells(2)][freePtr(2)] = 5 bytes total
	HeaderSize           = 5
	HeaderOffsetType     = 0
	HeaderOffsetNumCells = 1
	HeaderOffsetFreePtr  = 3

	// Cell directory: 2 bytes per cell (offset from page start)
	CellDirEntrySize = 2

	// Cell header sizes are minimums; actual size depends on the varint
	// encoding of the key/value lengths.
	LeafCellHeaderSizeMin     = 2 // key_size(varint) + value_size(varint)
	InternalCellHeaderSizeMin = 5 // key_size(varint) + child_page_id(4)
)

var (
	ErrPageFull     = errors.New("page is full")
	ErrCellNotFound = errors.New("cell not found")
)

// Page is a fixed 4KB block holding the records an evicted leaf reconciled,
// or the separator/child cells of an internal page built from on-disk
// children (Engine.writeInternal). Layout:
//
//	[Header: 5 bytes]
//	[Cell directory: 2 bytes x num_cells]
//	[Free space]
//	[Cells: growing backward from the end of the page]
type Page struct {
	id       uint32
	data     [PageSize]byte
	pageType byte
	dirty    bool
}

// NewPage creates a new, empty page of the given type.
func NewPage(id uint32, pageType byte) *Page {
	p := &Page{
		id:       id,
		pageType: pageType,
		dirty:    true,
	}
	p.data[HeaderOffsetType] = pageType
	binary.BigEndian.PutUint16(p.data[HeaderOffsetNumCells:], 0)
	binary.BigEndian.PutUint16(p.data[HeaderOffsetFreePtr:], PageSize)
	return p
}

// LoadPage reconstructs a page from its raw on-disk bytes.
func LoadPage(id uint32, data []byte) (*Page, error) {
	if len(data) != PageSize {
		return nil, errors.New("invalid page size")
	}
	p := &Page{
		id:    id,
		dirty: false,
	}
	copy(p.data[:], data)
	p.pageType = p.data[HeaderOffsetType]
	return p, nil
}

func (p *Page) ID() uint32 {
	return p.id
}

func (p *Page) Type() byte {
	return p.pageType
}

func (p *Page) IsLeaf() bool {
	return p.pageType == PageTypeLeaf
}

func (p *Page) IsDirty() bool {
	return p.dirty
}

func (p *Page) SetDirty(dirty bool) {
	p.dirty = dirty
}

// NumCells returns the number of cells in the page.
func (p *Page) NumCells() uint16 {
	return binary.BigEndian.Uint16(p.data[HeaderOffsetNumCells:])
}

func (p *Page) setNumCells(n uint16) {
	binary.BigEndian.PutUint16(p.data[HeaderOffsetNumCells:], n)
}

// freePtr returns the offset where the next cell should be written.
func (p *Page) freePtr() uint16 {
	return binary.BigEndian.Uint16(p.data[HeaderOffsetFreePtr:])
}

func (p *Page) setFreePtr(ptr uint16) {
	binary.BigEndian.PutUint16(p.data[HeaderOffsetFreePtr:], ptr)
}

// Cell is a reconciled record (leaf: Key/Value) or a separator entry
// pointing at an on-disk child (internal: Key/Child).
type Cell struct {
	Key   []byte
	Value []byte // leaf cells only
	Child uint32 // internal cells only: child page ID
}

func (p *Page) cellDirOffset(n uint16) int {
	return HeaderSize + int(n)*CellDirEntrySize
}

func (p *Page) getCellOffset(n uint16) uint16 {
	offset := p.cellDirOffset(n)
	return binary.BigEndian.Uint16(p.data[offset:])
}

func (p *Page) setCellOffset(n uint16, offset uint16) {
	dirOffset := p.cellDirOffset(n)
	binary.BigEndian.PutUint16(p.data[dirOffset:], offset)
}

// CellAt returns the cell at the specified index.
func (p *Page) CellAt(index uint16) (*Cell, error) {
	if index >= p.NumCells() {
		return nil, ErrCellNotFound
	}

	offset := p.getCellOffset(index)
	if p.IsLeaf() {
		return p.parseLeafCell(int(offset))
	}
	return p.parseInternalCell(int(offset))
}

func (p *Page) parseLeafCell(offset int) (*Cell, error) {
	if offset+LeafCellHeaderSizeMin > PageSize {
		return nil, errors.New("invalid cell offset")
	}

	keySize, n1 := uvarint16(p.data[offset:])
	if n1 <= 0 {
		return nil, errors.New("invalid key size varint")
	}
	valueSize, n2 := uvarint16(p.data[offset+n1:])
	if n2 <= 0 {
		return nil, errors.New("invalid value size varint")
	}

	headerSize := n1 + n2
	if offset+headerSize+int(keySize)+int(valueSize) > PageSize {
		return nil, errors.New("invalid cell size")
	}

	cell := &Cell{
		Key:   make([]byte, keySize),
		Value: make([]byte, valueSize),
	}

	keyStart := offset + headerSize
	copy(cell.Key, p.data[keyStart:keyStart+int(keySize)])
	copy(cell.Value, p.data[keyStart+int(keySize):keyStart+int(keySize)+int(valueSize)])

	return cell, nil
}

func (p *Page) parseInternalCell(offset int) (*Cell, error) {
	if offset+InternalCellHeaderSizeMin > PageSize {
		return nil, errors.New("invalid cell offset")
	}

	keySize, n := uvarint16(p.data[offset:])
	if n <= 0 {
		return nil, errors.New("invalid key size varint")
	}
	child := binary.BigEndian.Uint32(p.data[offset+n:])

	headerSize := n + 4
	if offset+headerSize+int(keySize) > PageSize {
		return nil, errors.New("invalid cell size")
	}

	cell := &Cell{
		Key:   make([]byte, keySize),
		Child: child,
	}

	keyStart := offset + headerSize
	copy(cell.Key, p.data[keyStart:keyStart+int(keySize)])

	return cell, nil
}

// cellSize returns the on-disk size of a cell (header + key + value).
func (p *Page) cellSize(keySize, valueSize int) int {
	if p.IsLeaf() {
		keySizeVarint := varintSize16(uint16(keySize))
		valueSizeVarint := varintSize16(uint16(valueSize))
		return keySizeVarint + valueSizeVarint + keySize + valueSize
	}

	keySizeVarint := varintSize16(uint16(keySize))
	return keySizeVarint + 4 + keySize
}

// IsFull reports whether the page has no room left for a cell of the given
// key/value size.
func (p *Page) IsFull(keySize, valueSize int) bool {
	numCells := p.NumCells()
	cellDirectoryEnd := p.cellDirOffset(numCells + 1)
	cellSize := p.cellSize(keySize, valueSize)
	freeSpace := int(p.freePtr()) - cellDirectoryEnd

	return freeSpace < cellSize
}

// InsertCell inserts a cell at the position that keeps the directory sorted
// by key, or returns ErrPageFull if it doesn't fit.
func (p *Page) InsertCell(cell *Cell) error {
	keySize := len(cell.Key)
	valueSize := 0
	if p.IsLeaf() {
		valueSize = len(cell.Value)
	}

	if p.IsFull(keySize, valueSize) {
		return ErrPageFull
	}

	numCells := p.NumCells()
	insertPos := p.searchCell(cell.Key)
	if insertPos < 0 {
		insertPos = -insertPos - 1
		return p.updateCell(uint16(insertPos), cell)
	}

	cellSize := p.cellSize(keySize, valueSize)
	newFreePtr := p.freePtr() - uint16(cellSize)

	if p.IsLeaf() {
		p.writeLeafCell(int(newFreePtr), cell)
	} else {
		p.writeInternalCell(int(newFreePtr), cell)
	}

	for i := numCells; i > uint16(insertPos); i-- {
		offset := p.getCellOffset(i - 1)
		p.setCellOffset(i, offset)
	}

	p.setCellOffset(uint16(insertPos), newFreePtr)
	p.setNumCells(numCells + 1)
	p.setFreePtr(newFreePtr)
	p.dirty = true

	return nil
}

func (p *Page) updateCell(index uint16, cell *Cell) error {
	if err := p.DeleteCell(index); err != nil {
		return err
	}
	return p.InsertCell(cell)
}

func (p *Page) writeLeafCell(offset int, cell *Cell) {
	n1 := putUvarint16(p.data[offset:], uint16(len(cell.Key)))
	n2 := putUvarint16(p.data[offset+n1:], uint16(len(cell.Value)))
	headerSize := n1 + n2
	copy(p.data[offset+headerSize:], cell.Key)
	copy(p.data[offset+headerSize+len(cell.Key):], cell.Value)
}

func (p *Page) writeInternalCell(offset int, cell *Cell) {
	n := putUvarint16(p.data[offset:], uint16(len(cell.Key)))
	binary.BigEndian.PutUint32(p.data[offset+n:], cell.Child)
	headerSize := n + 4
	copy(p.data[offset+headerSize:], cell.Key)
}

// searchCell performs a binary search for a key. A positive return is the
// insertion index if the key is absent; a negative return -(index+1)
// signals an exact match at index.
func (p *Page) searchCell(key []byte) int {
	numCells := int(p.NumCells())
	left, right := 0, numCells

	for left < right {
		mid := (left + right) / 2
		cell, err := p.CellAt(uint16(mid))
		if err != nil {
			return left
		}

		cmp := bytes.Compare(key, cell.Key)
		if cmp == 0 {
			return -(mid + 1)
		} else if cmp < 0 {
			right = mid
		} else {
			left = mid + 1
		}
	}

	return left
}

// DeleteCell removes the cell at the specified index. Its space is not
// reclaimed; a reconciled page is written once and never updated in place.
func (p *Page) DeleteCell(index uint16) error {
	numCells := p.NumCells()
	if index >= numCells {
		return ErrCellNotFound
	}

	for i := index; i < numCells-1; i++ {
		offset := p.getCellOffset(i + 1)
		p.setCellOffset(i, offset)
	}

	p.setNumCells(numCells - 1)
	p.dirty = true

	return nil
}

// Data returns the page's raw bytes, as written to disk by the pager.
func (p *Page) Data() []byte {
	return p.data[:]
}
