// Package recon is the on-disk half of the page store: fixed-size pages
// (Page), a varint cell layout for leaf records and internal separator
// entries (varint.go, node.go), and a Pager that maps page IDs onto an
// LRU-cached, file-backed heap.
//
// Engine (bridge.go) is the seam: it implements cache.Reconciler and
// cache.Discarder over the Pager, turning a cache.Page's staged records
// into on-disk leaves and internal pages, and handing the resulting
// addresses back as eviction outcomes. The package carries no general
// lookup, latching, or write-ahead log of its own -- the eviction core is
// its only caller, and Engine.WritePage is the only path that ever touches
// a page's cells.
package recon
