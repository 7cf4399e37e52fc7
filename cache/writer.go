package cache

import (
	"printerfirm/ferr"
	"printerfirm/ports"
	"printerfirm/record"
)

// noPage marks the absence of a locked page.
const noPage = -1

// Writer is the compile-time double-buffered page writer of spec.md
// §4.4. Exactly two 512 B pages exist; one is "current" and receives
// newly compiled records, the other is free or mid-flush. A page may
// be "locked" while it holds the base record of an in-progress
// continuous region (§4.3) — a locked page is never flushed, since the
// region annotator still mutates its base record's sequence_time in
// place.
type Writer struct {
	store ports.BlockStore

	pages  [2][RecordsPerSector]record.Record
	filled [2]int
	finished [2]bool
	sector [2]uint32

	current int
	locked  int
	lockedSlot int

	nextSector  uint32
	firstSector uint32
}

// NewWriter creates a Writer whose first page begins at startSector.
func NewWriter(store ports.BlockStore, startSector uint32) *Writer {
	w := &Writer{
		store:      store,
		current:    0,
		locked:     noPage,
		nextSector: startSector,
	}
	w.sector[0] = startSector
	w.firstSector = startSector
	w.nextSector++
	return w
}

// Append writes rec into the current page and returns the (page, slot)
// coordinate it landed at, so the caller can later lock it as a
// region's base. When the page fills, it is rotated per spec.md §4.4.
func (w *Writer) Append(rec record.Record) (page, slot int, err error) {
	p := w.current
	slot = w.filled[p]
	w.pages[p][slot] = rec
	w.filled[p]++

	if w.filled[p] == RecordsPerSector {
		w.finished[p] = true
		if err := w.rotate(); err != nil {
			return p, slot, err
		}
	}
	return p, slot, nil
}

// LockBase marks (page, slot) as the current region's base: that page
// will not be flushed until Unlock is called.
func (w *Writer) LockBase(page, slot int) {
	w.locked = page
	w.lockedSlot = slot
}

// AppendBase appends rec to the current page and locks the (page, slot)
// it lands in as a new region's base in the same step, before any
// rotation runs. A plain Append followed by a separate LockBase call
// leaves a window — between the append and the lock — during which
// the just-written record is unprotected: if it happens to fill the
// page (landing in the last slot), Append's own rotate would flush
// that page immediately, since nothing has locked it yet. The same
// window lets a *previous* base's Unlock, sequenced between the two
// calls, flush that very page out from under the new record if both
// bases happen to share it. AppendBase closes the window by moving the
// lock onto the new (page, slot) first, then flushing the previous
// base's page only if it is a different, already-finished page.
func (w *Writer) AppendBase(rec record.Record) (page, slot int, err error) {
	prevLocked := w.locked

	p := w.current
	slot = w.filled[p]
	w.pages[p][slot] = rec
	w.filled[p]++

	w.locked = p
	w.lockedSlot = slot

	if prevLocked != noPage && prevLocked != p && w.finished[prevLocked] {
		if err := w.flush(prevLocked); err != nil {
			return p, slot, err
		}
	}

	if w.filled[p] == RecordsPerSector {
		w.finished[p] = true
		if err := w.rotate(); err != nil {
			return p, slot, err
		}
	}
	return p, slot, nil
}

// Unlock releases the locked page, allowing it to flush on the next
// rotation (or immediately, if it is already finished).
func (w *Writer) Unlock() error {
	prev := w.locked
	w.locked = noPage
	if prev != noPage && w.finished[prev] {
		return w.flush(prev)
	}
	return nil
}

// BaseRecord returns a pointer to the locked base record so the region
// annotator can accumulate sequence_time onto it in place. It panics if
// no base is locked, since callers must check lock state first.
func (w *Writer) BaseRecord() *record.Record {
	if w.locked == noPage {
		panic("cache: BaseRecord called with no locked page")
	}
	return &w.pages[w.locked][w.lockedSlot]
}

// HasLockedBase reports whether a region base is currently locked.
func (w *Writer) HasLockedBase() bool {
	return w.locked != noPage
}

// Close flushes both pages unconditionally, clearing any lock first
// (spec.md §4.4: "closing a file flushes both pages unconditionally by
// clearing locked_page first").
func (w *Writer) Close() error {
	w.locked = noPage
	for i := 0; i < 2; i++ {
		if w.filled[i] > 0 {
			if err := w.flush(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// FirstSector reports the stream's starting sector, for writing
// the sector-10 ControlBlock once compilation finishes.
func (w *Writer) FirstSector() uint32 {
	return w.firstSector
}

func (w *Writer) flush(page int) error {
	buf := encodePage(w.pages[page])
	if err := w.store.WriteSector(w.sector[page], &buf); err != nil {
		return ferr.Wrap(ferr.KindSdcardFailure, "flush compile page", err)
	}
	w.finished[page] = false
	w.filled[page] = 0
	return nil
}

// rotate flushes any finished, unlocked page, then selects a
// non-finished, non-locked page to become current, trying the other
// page before the current one. A failed flush returns its
// SdcardFailure. RamFailure is returned only if no page is left to
// select (spec.md §4.4: "a region longer than 32 records"); with a
// single locked page the other page is always flushed first, so that
// return is not reached.
func (w *Writer) rotate() error {
	for i := 0; i < 2; i++ {
		if w.finished[i] && i != w.locked {
			if err := w.flush(i); err != nil {
				return err
			}
		}
	}
	for k := 1; k <= 2; k++ {
		i := (w.current + k) % 2
		if !w.finished[i] && i != w.locked {
			w.current = i
			if w.filled[i] == 0 {
				w.sector[i] = w.nextSector
				w.nextSector++
			}
			return nil
		}
	}
	return ferr.New(ferr.KindRamFailure, "both compile pages finished and locked")
}
