package disk

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/time/rate"
)

// backupChunkSize is the unit of throttled copy I/O.
const backupChunkSize = 1 << 20 // 1 MiB

var backupBufPool = sync.Pool{
	New: func() any { return make([]byte, backupChunkSize) },
}

// Backup copies the database file at srcPath to dstPath in fixed-size
// chunks, verifying the copy with a sha256 checksum of both sides.
// bytesPerSec > 0 throttles the copy with a token-bucket limiter so a
// background backup does not starve foreground page I/O; 0 means
// unthrottled. The source should be quiesced (no open InsertFileScan)
// for the checksum to be meaningful.
func Backup(ctx context.Context, srcPath, dstPath string, bytesPerSec int64) error {
	src, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, srcPath)
		}
		return fmt.Errorf("%w: opening backup source: %v", ErrIO, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening backup destination: %v", ErrIO, err)
	}
	defer func() {
		_ = dst.Sync()
		_ = dst.Close()
	}()

	var limiter *rate.Limiter
	if bytesPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(bytesPerSec), backupChunkSize)
	}

	srcSum := sha256.New()
	var off int64
	for {
		buf := backupBufPool.Get().([]byte)
		n, rerr := src.ReadAt(buf[:backupChunkSize], off)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					backupBufPool.Put(buf)
					return fmt.Errorf("backup rate limiter: %w", err)
				}
			}
			w := 0
			for w < n {
				m, werr := dst.Write(buf[w:n])
				if werr != nil {
					backupBufPool.Put(buf)
					return fmt.Errorf("%w: writing backup chunk: %v", ErrIO, werr)
				}
				w += m
			}
			srcSum.Write(buf[:n])
			off += int64(n)
		}
		backupBufPool.Put(buf)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return fmt.Errorf("%w: reading backup source: %v", ErrIO, rerr)
		}
	}

	if err := dst.Sync(); err != nil {
		return fmt.Errorf("%w: syncing backup: %v", ErrIO, err)
	}
	return verifyChecksum(dstPath, srcSum.Sum(nil))
}

func verifyChecksum(path string, want []byte) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: reopening backup for verify: %v", ErrIO, err)
	}
	defer f.Close()
	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return fmt.Errorf("%w: verifying backup: %v", ErrIO, err)
	}
	got := sum.Sum(nil)
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("backup checksum mismatch for %s", path)
		}
	}
	return nil
}
