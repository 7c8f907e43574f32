package sqlite

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrInvalidWALHeader is returned when the WAL file does not start
	// with a recognized magic number.
	ErrInvalidWALHeader = errors.New("sqlite: invalid wal header")
)

// WALSuffix is the suffix appended to SQLite WAL path names.
const WALSuffix = "-wal"

// WALHeaderSize is the size of the WAL file header, in bytes.
const WALHeaderSize = 32

// WALFrameHeaderSize is the size of a single WAL frame header, in bytes.
const WALFrameHeaderSize = 24

// Magic numbers specified at the beginning of WAL files.
const (
	MagicLittleEndian = 0x377f0682
	MagicBigEndian    = 0x377f0683
)

// WALPath returns the path of the WAL file for a database path.
func WALPath(dbPath string) string { return dbPath + WALSuffix }

// WALHeader holds the fixed 32-byte header at the start of a WAL file.
type WALHeader struct {
	Magic             uint32
	FileFormatVersion uint32
	PageSize          uint32
	CheckpointSeqNo   uint32
	Salt              uint64
	Checksum          uint64
}

// IsZero returns true if hdr is the zero value.
func (hdr WALHeader) IsZero() bool { return hdr == (WALHeader{}) }

// FrameSize returns the on-disk size of one frame: the frame header plus
// one page of content.
func (hdr WALHeader) FrameSize() int64 {
	return WALFrameHeaderSize + int64(hdr.PageSize)
}

// FrameCount returns the number of complete frames physically present
// in a WAL file of walSize bytes. A trailing partial frame is not
// counted. This is an upper bound only; frames past the last commit
// record belong to open or abandoned transactions.
func (hdr WALHeader) FrameCount(walSize int64) uint32 {
	if walSize <= WALHeaderSize || hdr.PageSize == 0 {
		return 0
	}
	return uint32((walSize - WALHeaderSize) / hdr.FrameSize())
}

// Unmarshal decodes the header from b.
// Returns io.ErrUnexpectedEOF if len(b) is less than WALHeaderSize.
func (hdr *WALHeader) Unmarshal(b []byte) error {
	if len(b) < WALHeaderSize {
		return io.ErrUnexpectedEOF
	}
	hdr.Magic = binary.BigEndian.Uint32(b[0:])
	hdr.FileFormatVersion = binary.BigEndian.Uint32(b[4:])
	hdr.PageSize = binary.BigEndian.Uint32(b[8:])
	hdr.CheckpointSeqNo = binary.BigEndian.Uint32(b[12:])
	hdr.Salt = binary.BigEndian.Uint64(b[16:])
	hdr.Checksum = binary.BigEndian.Uint64(b[24:])
	if hdr.Magic != MagicLittleEndian && hdr.Magic != MagicBigEndian {
		return ErrInvalidWALHeader
	}
	return nil
}

// WALFile reads WAL frames for the push path. It is a read-only view of
// the file; the engine owns the format and all locking.
type WALFile struct {
	Path string
}

// Header reads the WAL header from disk. If the WAL file does not exist
// or is shorter than a header, a zero header is returned with no error.
func (w *WALFile) Header() (WALHeader, error) {
	f, err := os.Open(w.Path)
	if os.IsNotExist(err) {
		return WALHeader{}, nil
	} else if err != nil {
		return WALHeader{}, err
	}
	defer f.Close()

	return readHeader(f)
}

func readHeader(r io.Reader) (WALHeader, error) {
	b := make([]byte, WALHeaderSize)
	if _, err := io.ReadFull(r, b); err == io.EOF || err == io.ErrUnexpectedEOF {
		return WALHeader{}, nil
	} else if err != nil {
		return WALHeader{}, err
	}

	var hdr WALHeader
	if err := hdr.Unmarshal(b); err != nil {
		return WALHeader{}, err
	}
	return hdr, nil
}

// Info returns the committed frame count and salt currently on disk.
// Frames written past the last commit record belong to a transaction
// that is still open, or that spilled and rolled back; they are not
// counted.
func (w *WALFile) Info() (frameCount uint32, salt uint64, err error) {
	f, err := os.Open(w.Path)
	if os.IsNotExist(err) {
		return 0, 0, nil
	} else if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return 0, 0, err
	} else if hdr.IsZero() {
		return 0, 0, nil
	}

	fi, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}

	n, err := committedFrameCount(f, hdr, fi.Size())
	if err != nil {
		return 0, 0, err
	}
	return n, hdr.Salt, nil
}

// committedFrameCount walks the frame headers and returns the index of
// the last commit frame. A commit frame records the database size in
// pages at bytes 4..8 of its header; the field stays zero for frames of
// an open transaction. Frames left over from a prior generation carry a
// different salt and end the walk. This follows the same rule the
// engine applies when it recovers a WAL.
func committedFrameCount(f io.ReaderAt, hdr WALHeader, walSize int64) (uint32, error) {
	frameSize := hdr.FrameSize()
	fh := make([]byte, WALFrameHeaderSize)

	var n, lastCommit uint32
	for off := int64(WALHeaderSize); off+frameSize <= walSize; off += frameSize {
		if _, err := f.ReadAt(fh, off); err != nil {
			return 0, err
		}
		if binary.BigEndian.Uint64(fh[8:16]) != hdr.Salt {
			break
		}
		n++
		if binary.BigEndian.Uint32(fh[4:8]) != 0 {
			lastCommit = n
		}
	}
	return lastCommit, nil
}

// ReadFrames returns the raw bytes of frames start+1 through end,
// inclusive, with frame headers intact. Frame numbers are 1-based.
// end must not exceed the committed frame count.
func (w *WALFile) ReadFrames(start, end uint32) ([]byte, error) {
	if end <= start {
		return nil, nil
	}

	f, err := os.Open(w.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hdr, err := readHeader(f)
	if err != nil {
		return nil, err
	} else if hdr.IsZero() {
		return nil, io.ErrUnexpectedEOF
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	committed, err := committedFrameCount(f, hdr, fi.Size())
	if err != nil {
		return nil, err
	}
	if end > committed {
		return nil, fmt.Errorf("sqlite: frame %d is beyond last commit frame %d", end, committed)
	}

	frameSize := hdr.FrameSize()
	off := WALHeaderSize + int64(start)*frameSize
	n := int64(end-start) * frameSize

	buf := make([]byte, n)
	if _, err := io.ReadFull(io.NewSectionReader(f, off, n), buf); err != nil {
		return nil, err
	}
	return buf, nil
}
