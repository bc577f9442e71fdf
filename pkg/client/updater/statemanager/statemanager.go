package statemanager

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"github.com/unbasical/update-agent/internal/pkg/utils/fileutils"
)

// Manager keeps a state object T in a JSON file.
// Access is serialized with a lock file next to the state file, so several processes can share it.
type Manager[T any] struct {
	mu    sync.Mutex
	state T
	path  string
}

// NewFromDisk creates a Manager for path which starts with the stored state.
// defaultState is used when nothing usable is stored.
func NewFromDisk[T any](defaultState T, path string) (*Manager[T], error) {
	m := &Manager[T]{
		state: defaultState,
		path:  path,
	}
	if _, err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// State returns a copy of the in-memory state.
func (m *Manager[T]) State() T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Commit writes the in-memory state to the file.
func (m *Manager[T]) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withFileLock(false, m.write)
}

// Load replaces the in-memory state with the stored one and returns it.
// A missing, empty or malformed file keeps the in-memory state.
func (m *Manager[T]) Load() (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.withFileLock(true, m.read)
	return m.state, err
}

// ModifyState loads the stored state, passes it to cb and writes the result back.
// Nothing is written if cb fails.
func (m *Manager[T]) ModifyState(cb func(*T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.withFileLock(false, func() error {
		if err := m.read(); err != nil {
			return err
		}
		previous := m.state
		if err := cb(&m.state); err != nil {
			m.state = previous
			return err
		}
		return m.write()
	})
}

func (m *Manager[T]) withFileLock(shared bool, f func() error) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	fileLock := flock.New(m.path + ".lock")
	lockFn := fileLock.Lock
	if shared {
		lockFn = fileLock.RLock
	}
	if err := lockFn(); err != nil {
		return err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()
	return f()
}

func (m *Manager[T]) read() error {
	fp, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() {
		_ = fp.Close()
	}()
	decoded := m.state
	err = json.NewDecoder(fp).Decode(&decoded)
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case err == nil:
		m.state = decoded
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &syntaxError), errors.As(err, &typeError):
		log.WithError(err).Debugf("ignoring unusable state in %q", m.path)
	default:
		return err
	}
	return nil
}

func (m *Manager[T]) write() error {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return err
	}
	return fileutils.SafeWriteFile(m.path, append(data, '\n'), 0600)
}
