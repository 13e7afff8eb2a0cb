package bloom

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/xufeisofly/bff/internal/bfferr"
)

// Magic and FormatVersion identify the on-disk filter format.
//
// This implementation commits to little-endian end-to-end: both the header
// and the bit-word payload are little-endian on disk, regardless of host
// byte order, so a filter file is portable across platforms. This resolves
// the open question left by the source implementation, which wrote the
// header little-endian but the bit payload in native endianness.
const (
	Magic         uint32 = 0x81F0_F117
	FormatVersion uint32 = 1
)

// WriteTo serializes the filter to w in the on-disk format: magic, version,
// K, K seed four-tuples, W, then W little-endian 32-bit words.
func (f *Filter) WriteTo(w io.Writer) error {
	header := make([]byte, 4+4+4)
	binary.LittleEndian.PutUint32(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(f.seeds)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write filter header: %w: %w", bfferr.ErrIO, err)
	}

	seedBuf := make([]byte, 8*4*len(f.seeds))
	for i, seed := range f.seeds {
		for j, v := range seed {
			binary.LittleEndian.PutUint64(seedBuf[(i*4+j)*8:], v)
		}
	}
	if _, err := w.Write(seedBuf); err != nil {
		return fmt.Errorf("write filter seeds: %w: %w", bfferr.ErrIO, err)
	}

	wCountBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(wCountBuf, uint64(len(f.words)))
	if _, err := w.Write(wCountBuf); err != nil {
		return fmt.Errorf("write filter word count: %w: %w", bfferr.ErrIO, err)
	}

	wordsBuf := make([]byte, 4*len(f.words))
	for i, word := range f.words {
		binary.LittleEndian.PutUint32(wordsBuf[i*4:], word)
	}
	if _, err := w.Write(wordsBuf); err != nil {
		return fmt.Errorf("write filter words: %w: %w", bfferr.ErrIO, err)
	}
	return nil
}

// ReadFrom deserializes a filter from r, validating magic and version.
// A mismatch on either is a fatal ErrInvalidFile.
func ReadFrom(r io.Reader) (*Filter, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read filter header: %w: %w", bfferr.ErrIO, err)
	}
	magic := binary.LittleEndian.Uint32(header[0:4])
	version := binary.LittleEndian.Uint32(header[4:8])
	k := binary.LittleEndian.Uint32(header[8:12])

	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %#x", bfferr.ErrInvalidFile, magic)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", bfferr.ErrInvalidFile, version)
	}

	seedBuf := make([]byte, 8*4*int(k))
	if _, err := io.ReadFull(r, seedBuf); err != nil {
		return nil, fmt.Errorf("read filter seeds: %w: %w", bfferr.ErrIO, err)
	}
	seeds := make([]Seed, k)
	for i := range seeds {
		for j := 0; j < 4; j++ {
			seeds[i][j] = binary.LittleEndian.Uint64(seedBuf[(i*4+j)*8:])
		}
	}

	wCountBuf := make([]byte, 8)
	if _, err := io.ReadFull(r, wCountBuf); err != nil {
		return nil, fmt.Errorf("read filter word count: %w: %w", bfferr.ErrIO, err)
	}
	wordCount := binary.LittleEndian.Uint64(wCountBuf)

	wordsBuf := make([]byte, 4*wordCount)
	if _, err := io.ReadFull(r, wordsBuf); err != nil {
		return nil, fmt.Errorf("read filter words: %w: %w", bfferr.ErrIO, err)
	}
	words := make([]uint32, wordCount)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(wordsBuf[i*4:])
	}

	return NewWithSeeds(words, seeds), nil
}
