package cache

import (
	"printerfirm/ferr"
	"printerfirm/ports"
	"printerfirm/record"
)

// MaxReadRetries bounds consecutive preload failures before the
// executor must surface RamFailure (spec.md §7; the constant itself
// comes from the original's SDCARD_READ_FAIL_ATTEMPTS).
const MaxReadRetries = 10

// Reader is the executor-side symmetric main/preload page reader
// (spec.md §4.4). The main page feeds dispatch; the preload page is
// filled opportunistically from the main loop ahead of need, then the
// two swap once the main page is exhausted.
type Reader struct {
	store ports.BlockStore

	pages  [2][RecordsPerSector]record.Record
	count  [2]int
	sector [2]uint32

	mainIdx int

	preloadPending bool
	preloadReady   bool
	preloadSector  uint32
}

// NewReader loads the first compiled-record sector as the main page.
func NewReader(store ports.BlockStore, firstSector uint32) (*Reader, error) {
	r := &Reader{store: store, mainIdx: 0}
	if err := r.loadSector(0, firstSector); err != nil {
		return nil, err
	}
	return r, nil
}

// MainRecord returns the record at slot (0..15) of the main page.
func (r *Reader) MainRecord(slot int) record.Record {
	return r.pages[r.mainIdx][slot]
}

// RequestPreload arms a pending read of sector into the idle page. It
// is a no-op if a preload is already pending.
func (r *Reader) RequestPreload(sector uint32) {
	if r.preloadPending {
		return
	}
	r.preloadSector = sector
	r.preloadPending = true
	r.preloadReady = false
}

// PreloadPending reports whether a preload has been requested but has
// not yet landed — the condition next_command reports as
// PreloadRequired (spec.md §4.5).
func (r *Reader) PreloadPending() bool {
	return r.preloadPending && !r.preloadReady
}

// LoadData performs the preload's single-block read, retrying up to
// MaxReadRetries times before surfacing RamFailure (spec.md §7's
// SDCARD_READ_FAIL_ATTEMPTS). Called opportunistically from the main
// loop (spec.md §4.5); a no-op when no preload is pending or it has
// already landed.
func (r *Reader) LoadData() error {
	if !r.preloadPending || r.preloadReady {
		return nil
	}
	idle := 1 - r.mainIdx
	var lastErr error
	for attempt := 0; attempt < MaxReadRetries; attempt++ {
		if err := r.loadSector(idle, r.preloadSector); err == nil {
			r.preloadReady = true
			return nil
		} else {
			lastErr = err
		}
	}
	return ferr.Wrap(ferr.KindRamFailure, "preload exhausted retries", lastErr)
}

// Swap promotes the (now loaded) preload page to main, once the
// previous main page is exhausted. It reports false if the preload has
// not yet landed.
func (r *Reader) Swap() bool {
	if !r.preloadReady {
		return false
	}
	r.mainIdx = 1 - r.mainIdx
	r.preloadPending = false
	r.preloadReady = false
	return true
}

// MainCount returns how many valid records the main page holds.
func (r *Reader) MainCount() int {
	return r.count[r.mainIdx]
}

func (r *Reader) loadSector(pageIdx int, sector uint32) error {
	var buf [ports.SectorSize]byte
	if err := r.store.ReadSector(sector, &buf); err != nil {
		return ferr.Wrap(ferr.KindSdcardFailure, "read compiled page", err)
	}
	page, err := decodePage(buf)
	if err != nil {
		return err
	}
	r.pages[pageIdx] = page
	r.count[pageIdx] = RecordsPerSector
	r.sector[pageIdx] = sector
	return nil
}
