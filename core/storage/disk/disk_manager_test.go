package disk

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPageSize = 256

func createAndOpen(t *testing.T, path string) *DiskManager {
	t.Helper()
	require.NoError(t, CreateFile(path, testPageSize))
	dm, err := OpenFile(path, testPageSize, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return dm
}

func TestFileHeader_EncodedSize(t *testing.T) {
	// The serialized header must match the byte count readHeaderFrom
	// pulls off disk, or every open fails on a short read.
	require.Equal(t, fileHeaderSize, binary.Size(FileHeader{}))
}

func TestCreateFile_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, CreateFile(path, testPageSize))

	err := CreateFile(path, testPageSize)
	require.ErrorIs(t, err, ErrFileExists)
}

func TestOpenFile_NotFound(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.db"), testPageSize, zap.NewNop())
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestOpenFile_RejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, make([]byte, testPageSize), 0o666))

	_, err := OpenFile(path, testPageSize, zap.NewNop())
	require.ErrorIs(t, err, ErrBadFileHeader)
}

func TestOpenFile_RejectsPageSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, CreateFile(path, testPageSize))

	_, err := OpenFile(path, testPageSize*2, zap.NewNop())
	require.ErrorIs(t, err, ErrPageSizeMismatch)
}

func TestDiskManager_AllocateReadWrite(t *testing.T) {
	dm := createAndOpen(t, filepath.Join(t.TempDir(), "test.db"))
	require.Equal(t, uint64(1), dm.NumPages())

	pageNo, err := dm.AllocatePage()
	require.NoError(t, err)
	require.Equal(t, PageNo(1), pageNo)
	require.Equal(t, uint64(2), dm.NumPages())

	out := make([]byte, testPageSize)
	for i := range out {
		out[i] = byte(i)
	}
	require.NoError(t, dm.WritePage(pageNo, out))

	in := make([]byte, testPageSize)
	require.NoError(t, dm.ReadPage(pageNo, in))
	require.Equal(t, out, in)
}

func TestDiskManager_PageBounds(t *testing.T) {
	dm := createAndOpen(t, filepath.Join(t.TempDir(), "test.db"))

	buf := make([]byte, testPageSize)
	require.ErrorIs(t, dm.ReadPage(5, buf), ErrPageOutOfBounds)
	require.ErrorIs(t, dm.WritePage(-1, buf), ErrPageOutOfBounds)
	require.Error(t, dm.ReadPage(0, make([]byte, testPageSize-1)))
}

func TestDiskManager_PageCountSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	dm := createAndOpen(t, path)
	for i := 0; i < 3; i++ {
		_, err := dm.AllocatePage()
		require.NoError(t, err)
	}
	require.NoError(t, dm.Close())

	dm2, err := OpenFile(path, testPageSize, zap.NewNop())
	require.NoError(t, err)
	defer dm2.Close()
	require.Equal(t, uint64(4), dm2.NumPages())
}

func TestDiskManager_CloseIdempotent(t *testing.T) {
	dm := createAndOpen(t, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, dm.Close())
	require.NoError(t, dm.Close())

	buf := make([]byte, testPageSize)
	require.ErrorIs(t, dm.ReadPage(0, buf), ErrFileNotOpen)
}

func TestDestroyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, CreateFile(path, testPageSize))
	require.NoError(t, DestroyFile(path))
	require.ErrorIs(t, DestroyFile(path), ErrFileNotFound)
}
