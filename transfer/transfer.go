package transfer

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultRetries is the number of direct copy attempts before
	// falling back to a streamed copy.
	DefaultRetries = 5

	// DefaultRetryDelay is the fixed delay between copy attempts.
	DefaultRetryDelay = 200 * time.Millisecond

	// DefaultChunkSize is the buffer size used by the streamed fallback.
	DefaultChunkSize = 1 << 20 // 1 MiB
)

// CopyError is the only failure a Copier surfaces. It carries the path
// that could not be copied and the underlying cause.
type CopyError struct {
	Path string
	Err  error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s: %v", e.Path, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Copier copies single files with bounded retries and a streamed fallback.
// The zero value is not usable; construct with NewCopier.
type Copier struct {
	Retries    uint64
	RetryDelay time.Duration
	ChunkSize  int
}

// NewCopier returns a Copier with the default retry and chunking tunables.
func NewCopier() *Copier {
	return &Copier{
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		ChunkSize:  DefaultChunkSize,
	}
}

// CopyFile copies src to dst. A read-only destination is made writable
// first. Transient I/O failures (locked file, share violation) are retried
// with a fixed delay; if every attempt fails the copy is re-done as an
// explicit chunked stream. Only when that also fails does CopyFile return,
// always as a *CopyError.
func (c *Copier) CopyFile(src, dst string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return &CopyError{Path: dst, Err: os.ErrExist}
		}
	}

	clearReadOnly(dst)

	op := func() error {
		err := copyOnce(src, dst)
		if os.IsNotExist(err) {
			// Missing source never heals itself, don't burn retries on it.
			return backoff.Permanent(err)
		}
		return err
	}

	attempts := c.Retries
	if attempts == 0 {
		// Retries-1 below must not underflow into unbounded retrying.
		attempts = 1
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.RetryDelay), attempts-1)
	err := backoff.Retry(op, policy)
	if err == nil {
		return nil
	}

	log.Printf("[transfer] Direct copy of %s failed (%v), falling back to streamed copy", src, err)

	if err := c.streamCopy(src, dst); err != nil {
		return &CopyError{Path: src, Err: err}
	}

	return nil
}

// copyOnce is a single direct copy attempt, preserving the source mode.
func copyOnce(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// streamCopy is the fallback path: the source is opened for shared read,
// the destination for exclusive write, and the contents are moved in
// fixed-size chunks.
func (c *Copier) streamCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source for streaming: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open destination for streaming: %w", err)
	}

	buf := make([]byte, c.ChunkSize)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		out.Close()
		return fmt.Errorf("streamed copy: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync destination: %w", err)
	}

	return out.Close()
}

// clearReadOnly makes an existing destination writable so the copy does
// not fail on the open. Missing destinations are fine.
func clearReadOnly(dst string) {
	info, err := os.Stat(dst)
	if err != nil {
		return
	}

	if info.Mode().Perm()&0200 == 0 {
		if err := os.Chmod(dst, info.Mode().Perm()|0200); err != nil {
			log.Printf("[transfer] Failed to clear read-only attribute on %s: %v", dst, err)
		}
	}
}
