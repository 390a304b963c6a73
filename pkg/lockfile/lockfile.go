// Package lockfile keeps two docsync runs from working on the same project
// root at the same time. The lock is a small JSON file created with O_EXCL.
// A run is short, so there is no heartbeat: a lock older than the stale
// timeout is assumed to belong to a crashed run and is taken over.
package lockfile

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/util"
)

// LockFileName is the name of the lock file created in the project root.
// The '~' prefix marks it as temporary.
const LockFileName = ".~docsync.lock"

// LockContent is the JSON document stored in the lock file.
type LockContent struct {
	PID       int64     `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"startedAt"`
	Nonce     string    `json:"nonce"`
	AppID     string    `json:"appID"`
}

// ErrLockActive is returned when another run holds a lock that is not stale.
type ErrLockActive struct {
	PID      int64
	Hostname string
	AppID    string
	Age      time.Duration
}

func (e *ErrLockActive) Error() string {
	return fmt.Sprintf("lock is active, held by PID %d on host '%s' (App: %s), acquired %s ago", e.PID, e.Hostname, e.AppID, e.Age.Truncate(time.Second))
}

// ErrLostRace is returned when a stale lock was taken over by someone else first.
var ErrLostRace = errors.New("lost race during stale lock takeover")

// ErrCorruptLockFile indicates that the lock file is empty or not valid JSON.
var ErrCorruptLockFile = errors.New("lock file is corrupt or empty")

// staleTimeout is a var to allow modification during testing.
var staleTimeout = 15 * time.Minute

// Lock is a held lock. Release removes the file.
type Lock struct {
	path    string
	content LockContent
	mu      sync.Mutex
	held    bool
}

// Path returns the absolute path of the lock file.
func (l *Lock) Path() string { return l.path }

// Acquire creates the lock file in dirPath.
// It returns (nil, *ErrLockActive) if another run holds a fresh lock.
func Acquire(ctx context.Context, dirPath string, appID string) (*Lock, error) {
	absLockFilePath := filepath.Join(dirPath, LockFileName)
	maxAttempts := 3

	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lock, err := tryAcquire(absLockFilePath, appID)
		if err == nil {
			return lock, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		content, readErr := readLockContent(absLockFilePath)
		switch {
		case errors.Is(readErr, os.ErrNotExist):
			// Released between our create and read; try again.
			continue
		case errors.Is(readErr, ErrCorruptLockFile):
			plog.Warn("Found corrupt lock file, treating as stale", "path", absLockFilePath, "error", readErr)
		case readErr != nil:
			return nil, fmt.Errorf("failed to read lock file: %w", readErr)
		default:
			age := time.Since(content.StartedAt)
			if age < staleTimeout {
				return nil, &ErrLockActive{
					PID:      content.PID,
					Hostname: content.Hostname,
					AppID:    content.AppID,
					Age:      age,
				}
			}
			plog.Warn("Found stale lock, attempting takeover", "pid", content.PID, "age", age.Truncate(time.Second))
		}

		lock, err = takeover(absLockFilePath, appID)
		if err == nil {
			return lock, nil
		}
		if errors.Is(err, ErrLostRace) {
			plog.Debug("Lock takeover race lost, retrying acquisition")
		} else {
			plog.Warn("Failed to take over lock, retrying", "error", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	return nil, fmt.Errorf("failed to acquire lock after %d attempts (contention)", maxAttempts)
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return
	}
	l.held = false

	if err := os.Remove(l.path); err != nil {
		if !os.IsNotExist(err) {
			plog.Warn("Failed to remove lock file", "path", l.path, "error", err)
		}
		return
	}
	plog.Debug("Lock released", "path", l.path)
}

func newContent(appID string) (LockContent, error) {
	nonce, err := generateNonce()
	if err != nil {
		return LockContent{}, err
	}
	hostname, err := os.Hostname()
	if err != nil {
		return LockContent{}, err
	}
	return LockContent{
		PID:       int64(os.Getpid()),
		Hostname:  hostname,
		StartedAt: time.Now().UTC(),
		Nonce:     nonce,
		AppID:     appID,
	}, nil
}

// tryAcquire relies on O_EXCL so exactly one creator wins.
func tryAcquire(absLockFilePath string, appID string) (*Lock, error) {
	f, err := os.OpenFile(absLockFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, util.UserWritableFilePerms)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content, err := newContent(appID)
	if err == nil {
		err = writeLockContent(f, content)
	}
	if err != nil {
		// Do not leave an empty lock behind.
		os.Remove(absLockFilePath)
		return nil, err
	}
	return &Lock{path: absLockFilePath, content: content, held: true}, nil
}

// takeover replaces a stale or corrupt lock through a temp file and rename,
// then reads the file back to confirm no other run replaced it in between.
func takeover(absLockFilePath, appID string) (*Lock, error) {
	content, err := newContent(appID)
	if err != nil {
		return nil, err
	}

	tmpF, err := os.CreateTemp(filepath.Dir(absLockFilePath), filepath.Base(absLockFilePath)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp lock file: %w", err)
	}
	defer os.Remove(tmpF.Name())

	if err := writeLockContent(tmpF, content); err != nil {
		tmpF.Close()
		return nil, err
	}
	if err := tmpF.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp lock file: %w", err)
	}
	if err := os.Rename(tmpF.Name(), absLockFilePath); err != nil {
		return nil, fmt.Errorf("failed to rename temp file to lock file: %w", err)
	}

	readback, err := readLockContent(absLockFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read back lock file after takeover: %w", err)
	}
	if readback.PID != content.PID || readback.Nonce != content.Nonce {
		return nil, ErrLostRace
	}
	plog.Debug("Took over stale lock", "path", absLockFilePath)
	return &Lock{path: absLockFilePath, content: content, held: true}, nil
}

// generateNonce creates a new random 16-byte token and returns it as a hex string.
func generateNonce() (string, error) {
	nonceBytes := make([]byte, 16)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return fmt.Sprintf("%x", nonceBytes), nil
}

func writeLockContent(w io.Writer, content LockContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lock content: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write lock content: %w", err)
	}
	return nil
}

// readLockContent retries briefly, since a file created with O_EXCL is empty
// until its creator has written the content.
func readLockContent(absLockFilePath string) (LockContent, error) {
	var lastErr error
	for i := 0; i < 3; i++ {
		data, err := os.ReadFile(absLockFilePath)
		if err != nil {
			return LockContent{}, err
		}
		if len(data) == 0 {
			lastErr = errors.New("lock file is empty")
			time.Sleep(50 * time.Millisecond)
			continue
		}
		var content LockContent
		if lastErr = json.Unmarshal(data, &content); lastErr != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		return content, nil
	}
	return LockContent{}, fmt.Errorf("%w: %v", ErrCorruptLockFile, lastErr)
}
