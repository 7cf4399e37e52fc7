//go:build rp2040 || rp2350

package rp2040

import (
	"machine"

	"tinygo.org/x/drivers/sdcard"

	"printerfirm/ferr"
	"printerfirm/ports"
)

// spiBus names the two hardware SPI controllers an SD card can sit
// on, the same SPI0/SPI1 split spi.go's rp2040SPIBuses table
// enumerates across its five/four pin-mux variants; the cache only
// ever needs one card on one bus, so the variants collapse to a
// single (sck, sdo, sdi, cs) configuration chosen by the caller.
type spiBus = machine.SPI

// BlockStore backs ports.BlockStore with an SD card over SPI.
type BlockStore struct {
	card *sdcard.Device
}

// NewBlockStore configures spi at the given pins and wraps the SD card
// sitting on it. cs is driven by the caller's Gpio-independent chip
// select, matching sdcard.New's own ownership of the pin.
func NewBlockStore(spi *spiBus, sck, sdo, sdi, cs machine.Pin) (*BlockStore, error) {
	if err := spi.Configure(machine.SPIConfig{
		Frequency: 4000000,
		SCK:       sck,
		SDO:       sdo,
		SDI:       sdi,
		Mode:      0,
	}); err != nil {
		return nil, ferr.New(ferr.KindSdcardFailure, err.Error())
	}

	card := sdcard.New(spi, cs)
	if err := card.Configure(); err != nil {
		return nil, ferr.New(ferr.KindSdcardFailure, err.Error())
	}
	return &BlockStore{card: &card}, nil
}

func (b *BlockStore) ReadSector(sector uint32, buf *[ports.SectorSize]byte) error {
	n, err := b.card.ReadAt(buf[:], int64(sector)*ports.SectorSize)
	if err != nil {
		return ferr.New(ferr.KindSdcardFailure, err.Error())
	}
	if n != ports.SectorSize {
		return ferr.New(ferr.KindSdcardFailure, "short sector read")
	}
	return nil
}

func (b *BlockStore) WriteSector(sector uint32, buf *[ports.SectorSize]byte) error {
	n, err := b.card.WriteAt(buf[:], int64(sector)*ports.SectorSize)
	if err != nil {
		return ferr.New(ferr.KindSdcardFailure, err.Error())
	}
	if n != ports.SectorSize {
		return ferr.New(ferr.KindSdcardFailure, "short sector write")
	}
	return nil
}
