package recon

import (
	"container/list"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
)

const (
	// Metadata page (page 0) layout
	MetadataPageID         = 0
	MetadataOffsetMagic    = 0 // 4 bytes
	MetadataOffsetNumPage  = 4 // 4 bytes
	MetadataOffsetFreeList = 8 // 4 bytes

	MetadataMagic = 0x42545245 // "BTRE" in hex
)

var (
	ErrInvalidDatabase = errors.New("invalid database file")
	ErrDatabaseClosed  = errors.New("database is closed")
)

// Metadata is the database's page-0 bookkeeping: how many pages exist and
// where the free list starts. There is no root page ID here -- the
// eviction core tracks page addresses itself, in cache.Ref, not the pager.
type Metadata struct {
	Magic       uint32
	NumPages    uint32
	FreeListPtr uint32
}

// Pager owns a single on-disk file of fixed-size pages plus an in-memory
// LRU cache over them. It is the reconciler's one piece of durable state:
// Engine.WritePage calls NewPage/InsertIntoLeaf/InsertIntoInternal against
// it and hands the resulting page ID back as a cache.OutcomeReplace/Split
// address.
type Pager struct {
	file      *os.File
	mu        sync.RWMutex
	cache     map[uint32]*Page
	lru       *list.List
	lruMap    map[uint32]*list.Element
	cacheSize int
	dirty     map[uint32]bool
	metadata  *Metadata
	closed    bool

	stats struct {
		pageWrites   int64
		pageReads    int64
		cacheHits    int64
		bytesWritten int64
	}
}

type lruEntry struct {
	pageID uint32
}

// NewPager opens filename, creating a fresh database if it doesn't exist.
func NewPager(filename string, cacheSize int) (*Pager, error) {
	file, err := os.OpenFile(filename, os.O_RDWR, 0644)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		return createPager(filename, cacheSize)
	}
	return loadPager(file, cacheSize)
}

func createPager(filename string, cacheSize int) (*Pager, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	pager := &Pager{
		file:      file,
		cache:     make(map[uint32]*Page),
		lru:       list.New(),
		lruMap:    make(map[uint32]*list.Element),
		cacheSize: cacheSize,
		dirty:     make(map[uint32]bool),
		metadata: &Metadata{
			Magic:       MetadataMagic,
			NumPages:    1, // page 0 (metadata) only; no implicit root
			FreeListPtr: 0,
		},
	}

	if err := pager.writeMetadata(); err != nil {
		file.Close()
		os.Remove(filename)
		return nil, err
	}

	return pager, nil
}

func loadPager(file *os.File, cacheSize int) (*Pager, error) {
	pager := &Pager{
		file:      file,
		cache:     make(map[uint32]*Page),
		lru:       list.New(),
		lruMap:    make(map[uint32]*list.Element),
		cacheSize: cacheSize,
		dirty:     make(map[uint32]bool),
	}

	metadata, err := pager.readMetadata()
	if err != nil {
		file.Close()
		return nil, err
	}

	pager.metadata = metadata
	return pager, nil
}

func (p *Pager) readMetadata() (*Metadata, error) {
	data := make([]byte, PageSize)
	n, err := p.file.ReadAt(data, 0)
	if err != nil {
		return nil, err
	}
	if n != PageSize {
		return nil, ErrInvalidDatabase
	}

	meta := &Metadata{
		Magic:       binary.BigEndian.Uint32(data[MetadataOffsetMagic:]),
		NumPages:    binary.BigEndian.Uint32(data[MetadataOffsetNumPage:]),
		FreeListPtr: binary.BigEndian.Uint32(data[MetadataOffsetFreeList:]),
	}

	if meta.Magic != MetadataMagic {
		return nil, ErrInvalidDatabase
	}

	return meta, nil
}

func (p *Pager) writeMetadata() error {
	data := make([]byte, PageSize)
	binary.BigEndian.PutUint32(data[MetadataOffsetMagic:], p.metadata.Magic)
	binary.BigEndian.PutUint32(data[MetadataOffsetNumPage:], p.metadata.NumPages)
	binary.BigEndian.PutUint32(data[MetadataOffsetFreeList:], p.metadata.FreeListPtr)

	_, err := p.file.WriteAt(data, 0)
	if err == nil {
		p.stats.pageWrites++
		p.stats.bytesWritten += int64(PageSize)
	}

	return err
}

// GetPage loads a page from cache or disk.
func (p *Pager) GetPage(pageID uint32) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrDatabaseClosed
	}

	if page, ok := p.cache[pageID]; ok {
		if elem, ok := p.lruMap[pageID]; ok {
			p.lru.MoveToFront(elem)
		}
		p.stats.cacheHits++
		return page, nil
	}

	page, err := p.readPage(pageID)
	if err != nil {
		return nil, err
	}

	p.addToCache(pageID, page)
	return page, nil
}

func (p *Pager) readPage(pageID uint32) (*Page, error) {
	if pageID >= p.metadata.NumPages {
		return nil, errors.New("page ID out of bounds")
	}

	offset := int64(pageID) * PageSize
	data := make([]byte, PageSize)

	n, err := p.file.ReadAt(data, offset)
	if err == nil {
		p.stats.pageReads++
	}
	if err != nil {
		return nil, err
	}
	if n != PageSize {
		return nil, errors.New("incomplete page read")
	}

	return LoadPage(pageID, data)
}

func (p *Pager) writePage(page *Page) error {
	offset := int64(page.ID()) * PageSize
	_, err := p.file.WriteAt(page.Data(), offset)

	if err == nil {
		p.stats.pageWrites++
		p.stats.bytesWritten += int64(PageSize)
	}

	return err
}

func (p *Pager) addToCache(pageID uint32, page *Page) {
	if p.lru.Len() >= p.cacheSize {
		p.evictLRU()
	}

	p.cache[pageID] = page
	elem := p.lru.PushFront(&lruEntry{pageID: pageID})
	p.lruMap[pageID] = elem
}

func (p *Pager) evictLRU() {
	elem := p.lru.Back()
	if elem == nil {
		return
	}

	entry := elem.Value.(*lruEntry)
	pageID := entry.pageID

	if p.dirty[pageID] {
		if page, ok := p.cache[pageID]; ok {
			if err := p.writePage(page); err != nil {
				fmt.Printf("error flushing page %d: %v\n", pageID, err)
			}
			page.SetDirty(false)
			delete(p.dirty, pageID)
		}
	}

	delete(p.cache, pageID)
	delete(p.lruMap, pageID)
	p.lru.Remove(elem)
}

// NewPage allocates and caches a fresh page of the given type.
func (p *Pager) NewPage(pageType byte) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrDatabaseClosed
	}

	// TODO: allocate from metadata.FreeListPtr once FreePage maintains one.
	pageID := p.metadata.NumPages
	p.metadata.NumPages++

	page := NewPage(pageID, pageType)

	p.addToCache(pageID, page)
	p.dirty[pageID] = true

	// Metadata.NumPages is flushed on Sync()/Close(), not on every
	// allocation -- a write on every reconciled leaf would dominate I/O.

	return page, nil
}

// MarkDirty flags a cached page for the next Flush/Sync/Close.
func (p *Pager) MarkDirty(pageID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if page, ok := p.cache[pageID]; ok {
		page.SetDirty(true)
		p.dirty[pageID] = true
	}
}

// FreePage drops a page from the cache. The freed address is not yet
// recycled by NewPage (see its TODO); discard_page has no on-disk address
// to free in the first place (recon.Engine.DiscardPage), so this currently
// only serves pages that failed to reconcile partway through a write.
func (p *Pager) FreePage(pageID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.cache[pageID]; ok {
		delete(p.cache, pageID)
		if elem, ok := p.lruMap[pageID]; ok {
			p.lru.Remove(elem)
			delete(p.lruMap, pageID)
		}
	}
	delete(p.dirty, pageID)
}

// Flush writes all dirty pages to disk.
func (p *Pager) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrDatabaseClosed
	}

	for pageID := range p.dirty {
		if page, ok := p.cache[pageID]; ok {
			if err := p.writePage(page); err != nil {
				return fmt.Errorf("error flushing page %d: %w", pageID, err)
			}
			page.SetDirty(false)
		}
	}

	p.dirty = make(map[uint32]bool)
	return nil
}

// Sync flushes dirty pages, persists metadata and fsyncs the file.
func (p *Pager) Sync() error {
	if err := p.Flush(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrDatabaseClosed
	}

	if err := p.writeMetadata(); err != nil {
		return err
	}

	return p.file.Sync()
}

// NumPages returns the total number of pages the pager has allocated.
func (p *Pager) NumPages() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metadata.NumPages
}

// Close flushes all dirty pages, persists metadata and closes the file.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	for pageID := range p.dirty {
		if page, ok := p.cache[pageID]; ok {
			if err := p.writePage(page); err != nil {
				return fmt.Errorf("error flushing page %d on close: %w", pageID, err)
			}
		}
	}

	if err := p.writeMetadata(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	if err := p.file.Close(); err != nil {
		return err
	}

	p.closed = true
	return nil
}
