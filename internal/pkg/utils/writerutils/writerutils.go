package writerutils

import (
	"errors"
	"os"
)

// SafeFile is a file writer which flushes the file to the disk when it is closed.
type SafeFile struct {
	f *os.File
}

// NewSafeFileWriter wraps f so Close calls Sync before closing the file.
func NewSafeFileWriter(f *os.File) *SafeFile {
	return &SafeFile{f: f}
}

func (s *SafeFile) Write(p []byte) (n int, err error) {
	return s.f.Write(p)
}

// Close syncs and closes the file, reporting both errors.
func (s *SafeFile) Close() error {
	return errors.Join(
		s.f.Sync(),
		s.f.Close(),
	)
}
