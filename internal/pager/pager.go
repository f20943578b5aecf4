// Package pager implements the paged, LRU-cached row store: fixed-size
// slotted pages backed by a table file, with vacuum-based compaction.
package pager

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lindeneg/yarrd/internal/xerr"
)

// DefaultCacheCapacity bounds how many pages a Pager keeps resident when the
// caller does not override it (e.g. no config file present).
const DefaultCacheCapacity = 10

// Pager is a file-backed, LRU-cached store of fixed-row-size pages.
type Pager struct {
	file     *os.File
	rowSize  int
	rowCount int
	cache    *Lru[int64, *Page]
	log      *slog.Logger
}

// Open opens (or creates) the table file at path for rows of rowSize bytes.
// cacheCapacity bounds how many pages stay resident; a value <= 0 falls back
// to DefaultCacheCapacity.
func Open(path string, rowSize, cacheCapacity int, log *slog.Logger) (*Pager, error) {
	if rowSize > PageSize-1 {
		return nil, fmt.Errorf("pager: row size %d exceeds page capacity: %w", rowSize, xerr.Page)
	}
	if cacheCapacity <= 0 {
		cacheCapacity = DefaultCacheCapacity
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pager: open %s: %w", path, xerr.IO)
	}
	cache, err := NewLru[int64, *Page](cacheCapacity)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pager{file: f, rowSize: rowSize, rowCount: RowCount(rowSize), cache: cache, log: log}, nil
}

// RowSize reports the fixed row width this pager was opened with.
func (p *Pager) RowSize() int { return p.rowSize }

func (p *Pager) pageCount() (int64, error) {
	info, err := p.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("pager: stat: %w", xerr.IO)
	}
	return info.Size() / PageSize, nil
}

// MaxRows returns (lastPageID+1)*N, or 0 if the file is empty. Row ids in
// [0, MaxRows()) are the only ones a sequential scan needs to visit.
func (p *Pager) MaxRows() (int64, error) {
	pages, err := p.pageCount()
	if err != nil {
		return 0, err
	}
	if pages == 0 {
		return 0, nil
	}
	return pages * int64(p.rowCount), nil
}

func (p *Pager) pageID(rowID int64) int64   { return rowID / int64(p.rowCount) }
func (p *Pager) slotNumber(rowID int64) int { return int(rowID % int64(p.rowCount)) }

// getPage returns the resident page for id, loading it from disk (and
// writing back any evicted dirty page) if it was not cached.
func (p *Pager) getPage(id int64) (*Page, error) {
	if page, ok := p.cache.Get(id); ok {
		return page, nil
	}
	pages, err := p.pageCount()
	if err != nil {
		return nil, err
	}
	var page *Page
	if id < pages {
		raw := make([]byte, PageSize)
		if _, err := p.file.ReadAt(raw, id*PageSize); err != nil {
			return nil, fmt.Errorf("pager: read page %d: %w", id, xerr.IO)
		}
		page, err = PageFromBytes(p.rowSize, raw)
		if err != nil {
			return nil, fmt.Errorf("pager: decode page %d: %w", id, xerr.IO)
		}
	} else if id == pages {
		page = NewPage(p.rowSize)
		if err := p.writePage(id, page); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("pager: page %d beyond end of file: %w", id, xerr.Page)
	}
	evictedID, evictedPage, evicted := p.cache.Set(id, page)
	if evicted && evictedPage.Modified {
		if err := p.writePage(evictedID, evictedPage); err != nil {
			return nil, err
		}
	}
	return page, nil
}

func (p *Pager) writePage(id int64, page *Page) error {
	if _, err := p.file.WriteAt(page.Bytes(), id*PageSize); err != nil {
		return fmt.Errorf("pager: write page %d: %w", id, xerr.IO)
	}
	page.Modified = false
	return nil
}

// GetRow returns the row bytes at rowID, or ok=false if absent.
func (p *Pager) GetRow(rowID int64) (row []byte, ok bool, err error) {
	page, err := p.getPage(p.pageID(rowID))
	if err != nil {
		return nil, false, err
	}
	row, present := page.GetRow(p.slotNumber(rowID))
	if !present {
		return nil, false, nil
	}
	out := make([]byte, len(row))
	copy(out, row)
	return out, true, nil
}

// InsertRow appends row to the last page, allocating a new page if the last
// one is full, and returns the newly assigned row id.
func (p *Pager) InsertRow(row []byte) (int64, error) {
	if len(row) != p.rowSize {
		return 0, fmt.Errorf("pager: row of %d bytes does not match row size %d: %w", len(row), p.rowSize, xerr.Page)
	}
	pages, err := p.pageCount()
	if err != nil {
		return 0, err
	}
	lastID := int64(0)
	if pages > 0 {
		lastID = pages - 1
	} else {
		lastID = 0
	}
	page, err := p.getPage(lastID)
	if err != nil {
		return 0, err
	}
	slot, ok := page.InsertRow(row)
	if !ok {
		lastID++
		page, err = p.getPage(lastID)
		if err != nil {
			return 0, err
		}
		slot, ok = page.InsertRow(row)
		if !ok {
			return 0, fmt.Errorf("pager: row too big for a fresh page: %w", xerr.Page)
		}
	}
	return lastID*int64(p.rowCount) + int64(slot), nil
}

// UpdateRow overwrites rowID's bytes in place.
func (p *Pager) UpdateRow(rowID int64, row []byte) error {
	if len(row) != p.rowSize {
		return fmt.Errorf("pager: row of %d bytes does not match row size %d: %w", len(row), p.rowSize, xerr.Page)
	}
	page, err := p.getPage(p.pageID(rowID))
	if err != nil {
		return err
	}
	page.UpdateRow(p.slotNumber(rowID), row)
	return nil
}

// DeleteRow clears rowID's presence bit.
func (p *Pager) DeleteRow(rowID int64) error {
	page, err := p.getPage(p.pageID(rowID))
	if err != nil {
		return err
	}
	page.DeleteRow(p.slotNumber(rowID))
	return nil
}

// Vacuum compacts the table file: it truncates trailing blank pages, then
// repeatedly moves the first present row off the last page into the lowest
// page with free space, until no further compaction is possible.
func (p *Pager) Vacuum() error {
	p.log.Debug("pager vacuum starting")
	if err := p.FlushAll(); err != nil {
		return err
	}
	for {
		pages, err := p.pageCount()
		if err != nil {
			return err
		}
		if pages == 0 {
			return nil
		}
		trimmed, err := p.trimTrailingBlankPages(pages)
		if err != nil {
			return err
		}
		pages = trimmed
		if pages <= 1 {
			return nil
		}
		semiFreeID, found, err := p.lowestPageWithFreeSlot(pages - 1)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		lastID := pages - 1
		lastPage, err := p.getPage(lastID)
		if err != nil {
			return err
		}
		slot, row, ok := lastPage.DrainFirstRow()
		if !ok {
			// last page was already blank; the next loop's trim handles it
			continue
		}
		_ = slot
		freePage, err := p.getPage(semiFreeID)
		if err != nil {
			return err
		}
		if _, ok := freePage.InsertRow(row); !ok {
			return fmt.Errorf("pager: vacuum: target page unexpectedly full: %w", xerr.Page)
		}
		if err := p.writePage(lastID, lastPage); err != nil {
			return err
		}
		if err := p.writePage(semiFreeID, freePage); err != nil {
			return err
		}
	}
}

func (p *Pager) trimTrailingBlankPages(pages int64) (int64, error) {
	for pages > 0 {
		page, err := p.getPage(pages - 1)
		if err != nil {
			return 0, err
		}
		if !page.IsBlank() {
			break
		}
		pages--
		if err := p.file.Truncate(pages * PageSize); err != nil {
			return 0, fmt.Errorf("pager: truncate: %w", xerr.IO)
		}
	}
	return pages, nil
}

func (p *Pager) lowestPageWithFreeSlot(limit int64) (int64, bool, error) {
	for id := int64(0); id < limit; id++ {
		page, err := p.getPage(id)
		if err != nil {
			return 0, false, err
		}
		if page.HasFreeRows() {
			return id, true, nil
		}
	}
	return 0, false, nil
}

// FlushAll writes back every modified cached page.
func (p *Pager) FlushAll() error {
	var flushErr error
	p.cache.Each(func(id int64, page *Page) {
		if flushErr != nil || page == nil {
			return
		}
		if page.Modified {
			if err := p.writePage(id, page); err != nil {
				flushErr = err
			}
		}
	})
	return flushErr
}

// Close flushes every modified page and closes the underlying file. Per the
// resource-release model, a flush failure here is treated as fatal by
// callers, not silently swallowed.
func (p *Pager) Close() error {
	if err := p.FlushAll(); err != nil {
		p.log.Error("pager flush on close failed", "error", err)
		return err
	}
	if err := p.file.Close(); err != nil {
		return fmt.Errorf("pager: close: %w", xerr.IO)
	}
	return nil
}
