// Package disk implements the file/volume layer of the storage engine:
// page-granular I/O against a single OS file, plus creation, destruction
// and throttled backup of database files.
package disk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
)

const (
	// Magic identifies a heap database file.
	Magic uint32 = 0x48454150 // "HEAP"

	// Version is the on-disk format version written into new files.
	Version uint32 = 1

	// headerPageNo is the disk-level file header's page number. Allocatable
	// pages start right after it.
	headerPageNo = 0

	// DefaultPageSize is used when a caller passes a non-positive page size.
	DefaultPageSize = 4096

	fileHeaderSize = 24
)

// PageNo addresses one fixed-size page within a database file.
// Page 0 holds the file header; data pages start at 1.
type PageNo int32

// InvalidPageNo marks "no page". It terminates page chains on disk.
const InvalidPageNo PageNo = -1

// FileHeader is the fixed-width header stored in page 0 of every database
// file. All fields are serialized little-endian so files are portable
// across platforms.
type FileHeader struct {
	Magic    uint32
	Version  uint32
	PageSize uint32
	NumPages uint64
	_        [fileHeaderSize - 20]byte
}

// DiskManager owns the OS file handle for one database file and performs
// all physical page I/O against it. It is safe for concurrent use, though
// the heap-file layer above it is single-cursor by design.
type DiskManager struct {
	path     string
	file     *os.File
	pageSize int
	numPages uint64 // pages in the file, header page included
	mu       sync.Mutex
	log      *zap.Logger
}

// CreateFile creates a new, empty database file at path and writes its
// initial header. It fails with ErrFileExists if the file is already
// present. The file is closed before returning; use OpenFile to work
// with it.
func CreateFile(path string, pageSize int) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return fmt.Errorf("%w: creating file %s: %v", ErrIO, path, err)
	}

	hdr := FileHeader{
		Magic:    Magic,
		Version:  Version,
		PageSize: uint32(pageSize),
		NumPages: 1,
	}
	if err := writeHeaderTo(f, &hdr, pageSize); err != nil {
		f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: closing file %s: %v", ErrIO, path, err)
	}
	return nil
}

// OpenFile opens an existing database file and validates its header.
// It fails with ErrFileNotFound if the file does not exist.
func OpenFile(path string, pageSize int, log *zap.Logger) (*DiskManager, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o666)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: opening file %s: %v", ErrIO, path, err)
	}

	var hdr FileHeader
	if err := readHeaderFrom(f, &hdr, pageSize); err != nil {
		f.Close()
		return nil, err
	}
	if hdr.Magic != Magic {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic 0x%x in %s", ErrBadFileHeader, hdr.Magic, path)
	}
	if hdr.PageSize != uint32(pageSize) {
		f.Close()
		return nil, fmt.Errorf("%w: file has %d, configured %d", ErrPageSizeMismatch, hdr.PageSize, pageSize)
	}

	dm := &DiskManager{
		path:     path,
		file:     f,
		pageSize: pageSize,
		numPages: hdr.NumPages,
		log:      log,
	}
	// Trust the file size over a stale header count; AllocatePage keeps both
	// in sync from here on.
	if fi, err := f.Stat(); err == nil {
		if byPages := uint64(fi.Size()) / uint64(pageSize); byPages > dm.numPages {
			dm.numPages = byPages
		}
	}
	return dm, nil
}

// DestroyFile removes the database file at path.
func DestroyFile(path string) error {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: removing file %s: %v", ErrIO, path, err)
	}
	return nil
}

// Path returns the file path this manager was opened on.
func (dm *DiskManager) Path() string { return dm.path }

// PageSize returns the fixed page size of this file.
func (dm *DiskManager) PageSize() int { return dm.pageSize }

// NumPages returns the number of pages in the file, header page included.
func (dm *DiskManager) NumPages() uint64 {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.numPages
}

// ReadPage reads page pageNo into buf. buf must be exactly one page long.
func (dm *DiskManager) ReadPage(pageNo PageNo, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrFileNotOpen
	}
	if len(buf) != dm.pageSize {
		return fmt.Errorf("page buffer size (%d) != page size (%d)", len(buf), dm.pageSize)
	}
	if pageNo < 0 || uint64(pageNo) >= dm.numPages {
		return fmt.Errorf("%w: page %d of %d", ErrPageOutOfBounds, pageNo, dm.numPages)
	}
	off := int64(pageNo) * int64(dm.pageSize)
	n, err := dm.file.ReadAt(buf, off)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: EOF reading page %d at offset %d", ErrIO, pageNo, off)
		}
		return fmt.Errorf("%w: reading page %d: %v", ErrIO, pageNo, err)
	}
	if n != dm.pageSize {
		return fmt.Errorf("%w: short read for page %d, expected %d, got %d", ErrIO, pageNo, dm.pageSize, n)
	}
	return nil
}

// WritePage writes buf to page pageNo. buf must be exactly one page long.
// Durability is handled at unpin time by the buffer pool above.
func (dm *DiskManager) WritePage(pageNo PageNo, buf []byte) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrFileNotOpen
	}
	if len(buf) != dm.pageSize {
		return fmt.Errorf("page buffer size (%d) != page size (%d)", len(buf), dm.pageSize)
	}
	if pageNo < 0 || uint64(pageNo) >= dm.numPages {
		return fmt.Errorf("%w: page %d of %d", ErrPageOutOfBounds, pageNo, dm.numPages)
	}
	off := int64(pageNo) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("%w: writing page %d at offset %d: %v", ErrIO, pageNo, off, err)
	}
	return nil
}

// AllocatePage extends the file by one zeroed page and returns its number.
func (dm *DiskManager) AllocatePage() (PageNo, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return InvalidPageNo, ErrFileNotOpen
	}
	pageNo := PageNo(dm.numPages)
	empty := make([]byte, dm.pageSize)
	off := int64(pageNo) * int64(dm.pageSize)
	if _, err := dm.file.WriteAt(empty, off); err != nil {
		return InvalidPageNo, fmt.Errorf("%w: extending file for page %d: %v", ErrIO, pageNo, err)
	}
	dm.numPages++
	if err := dm.writeHeaderLocked(); err != nil {
		dm.numPages--
		return InvalidPageNo, err
	}
	dm.log.Debug("allocated page", zap.String("file", dm.path), zap.Int32("page", int32(pageNo)))
	return pageNo, nil
}

// Sync flushes everything written so far to stable storage.
func (dm *DiskManager) Sync() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return ErrFileNotOpen
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %v", ErrIO, dm.path, err)
	}
	return nil
}

// Close syncs and closes the underlying file. It is safe to call twice.
func (dm *DiskManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.file == nil {
		return nil
	}
	if err := dm.file.Sync(); err != nil {
		dm.log.Warn("sync on close failed", zap.String("file", dm.path), zap.Error(err))
	}
	err := dm.file.Close()
	dm.file = nil
	if err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrIO, dm.path, err)
	}
	return nil
}

func (dm *DiskManager) writeHeaderLocked() error {
	hdr := FileHeader{
		Magic:    Magic,
		Version:  Version,
		PageSize: uint32(dm.pageSize),
		NumPages: dm.numPages,
	}
	return writeHeaderTo(dm.file, &hdr, dm.pageSize)
}

func writeHeaderTo(f *os.File, hdr *FileHeader, pageSize int) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("serializing file header: %w", err)
	}
	// Pad the header out to a full page so data pages stay aligned.
	buf.Write(make([]byte, pageSize-buf.Len()))
	if _, err := f.WriteAt(buf.Bytes(), int64(headerPageNo)*int64(pageSize)); err != nil {
		return fmt.Errorf("%w: writing file header: %v", ErrIO, err)
	}
	return nil
}

func readHeaderFrom(f *os.File, hdr *FileHeader, pageSize int) error {
	data := make([]byte, fileHeaderSize)
	n, err := f.ReadAt(data, int64(headerPageNo)*int64(pageSize))
	if err != nil && !(errors.Is(err, io.EOF) && n == fileHeaderSize) {
		return fmt.Errorf("%w: file header too short or unreadable: %v", ErrBadFileHeader, err)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("%w: deserializing file header: %v", ErrBadFileHeader, err)
	}
	return nil
}
