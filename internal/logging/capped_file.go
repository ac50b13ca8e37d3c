package logging

import (
	"os"
	"sync"
)

const defaultLogCapMB = 10

// cappedFile appends to a single log file and starts the file over whenever
// the next write would push it past its cap. No rotation; one file, bounded
// size.
type cappedFile struct {
	path  string
	limit int64

	mu   sync.Mutex
	f    *os.File
	used int64
}

func newCappedFile(path string, capMB int) (*cappedFile, error) {
	if capMB <= 0 {
		capMB = defaultLogCapMB
	}
	c := &cappedFile{path: path, limit: int64(capMB) << 20}
	if err := c.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cappedFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		if err := c.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if c.used+int64(len(p)) > c.limit {
		if err := c.open(os.O_TRUNC); err != nil {
			return 0, err
		}
	}
	n, err := c.f.Write(p)
	c.used += int64(n)
	return n, err
}

func (c *cappedFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}

// open (re)opens the backing file with the given disposition flag and
// refreshes the used-byte count. Caller holds c.mu except from the
// constructor.
func (c *cappedFile) open(mode int) error {
	if c.f != nil {
		_ = c.f.Close()
		c.f = nil
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	c.f = f
	c.used = info.Size()
	return nil
}
