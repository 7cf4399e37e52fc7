package printer

import (
	"bufio"

	"printerfirm/cache"
	"printerfirm/ferr"
	"printerfirm/gcode"
	"printerfirm/ports"
	"printerfirm/record"
	"printerfirm/region"
)

// Compile reads filename off fs line by line, compiles it with scale
// and maxFetch, and writes the resulting record stream to store
// starting at startSector, finishing with the sector-10 ControlBlock
// (spec.md §4, §3). It is the compile-time half of the
// compiler/region/cache pipeline; the executor package is the
// execute-time half.
func Compile(fs ports.Filesystem, store ports.BlockStore, filename string, scale gcode.AxisScale, maxFetch uint32, startSector uint32) (cache.ControlBlock, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return cache.ControlBlock{}, ferr.Wrap(ferr.KindFileNotFound, filename, err)
	}
	defer f.Close()

	compiler := gcode.NewCompiler(scale)
	compiler.MaxFetch = maxFetch
	annotator := region.NewAnnotator(scale)
	writer := cache.NewWriter(store, startSector)

	hasLock := false
	var count uint32

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		cmd, class := gcode.ParseLine(scanner.Text())
		switch class {
		case gcode.NoCommand:
			continue
		case gcode.UnknownCommand, gcode.UnknownParameter:
			return cache.ControlBlock{}, ferr.New(ferr.KindInvalidParameter, scanner.Text())
		}

		rec, emit, err := compiler.Compile(cmd)
		if err != nil {
			return cache.ControlBlock{}, err
		}
		if !emit {
			continue
		}

		if rec.Opcode == record.OpMove || rec.Opcode == record.OpHome {
			startsNew := annotator.Observe(&rec)
			if startsNew {
				// AppendBase locks the landing (page, slot) as part of
				// the same call, before any page rotation can run, so
				// the new base is never briefly unprotected the way a
				// separate Append + Unlock + LockBase sequence would
				// leave it (see cache.Writer.AppendBase).
				if _, _, err := writer.AppendBase(rec); err != nil {
					return cache.ControlBlock{}, err
				}
				hasLock = true
			} else {
				if _, _, err := writer.Append(rec); err != nil {
					return cache.ControlBlock{}, err
				}
				base := writer.BaseRecord()
				base.Motion.SequenceTime += rec.Motion.SegmentTime
			}
		} else {
			if hasLock {
				if err := writer.Unlock(); err != nil {
					return cache.ControlBlock{}, err
				}
				hasLock = false
			}
			annotator.Terminate()
			if _, _, err := writer.Append(rec); err != nil {
				return cache.ControlBlock{}, err
			}
		}
		count++
	}

	if hasLock {
		if err := writer.Unlock(); err != nil {
			return cache.ControlBlock{}, err
		}
	}
	if err := writer.Close(); err != nil {
		return cache.ControlBlock{}, err
	}

	cb := cache.ControlBlock{StartSector: writer.FirstSector(), CommandCount: count}
	copy(cb.Filename[:], filename)

	buf := cache.EncodeControlBlock(cb)
	if err := store.WriteSector(cache.ControlSector, &buf); err != nil {
		return cache.ControlBlock{}, ferr.Wrap(ferr.KindSdcardFailure, "write control block", err)
	}
	return cb, nil
}
