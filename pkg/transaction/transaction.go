// Package transaction implements journaled, all-or-nothing filesystem
// mutation over an install prefix (spec.md §4.3). A Transaction owns all
// pending changes and scoped backup files; if it is never committed, a
// caller-deferred Done() rolls it back, giving Go's lack of destructors the
// same "guaranteed-release on every exit path" discipline spec.md asks for.
package transaction

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rustup-go/rustup-go/pkg/rustuperr"
)

type opKind int

const (
	logFileAdded opKind = iota
	logFileRemoved
	logFileModified
	logDirAdded
)

// logRecord is one reversal record in the transaction's in-memory log
// (spec.md §3 "Transaction log"). There is no crash-recovery replay across
// process restarts, consistent with spec.md §4.3.
type logRecord struct {
	kind       opKind
	relpath    string
	backupPath string // for logFileModified / logFileRemoved
}

// Transaction is a journaled set of filesystem mutations against one
// install prefix, with commit-or-rollback semantics.
type Transaction struct {
	root       string // prefix root directory
	backupDir  string // scratch area inside the prefix's metadata area
	mu         sync.Mutex
	log        []logRecord
	leased     map[string]bool
	committed  bool
	rolledBack bool
	backupSeq  int
}

// New opens a Transaction rooted at root, using backupDir (typically
// <root>/lib/rustlib/.backup) to stash originals for modify/remove.
func New(root, backupDir string) (*Transaction, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup area %s: %w", backupDir, err)
	}
	return &Transaction{
		root:      root,
		backupDir: backupDir,
		leased:    map[string]bool{},
	}, nil
}

// lease obtains the exclusive lease on relpath required before any
// operation touches it (spec.md §4.3 "each operation obtains an exclusive
// lease on the target path"). Returns file-already-scheduled if another
// live operation already holds it.
func (t *Transaction) lease(relpath string) error {
	if t.leased[relpath] {
		return rustuperr.New(rustuperr.KindFileAlreadyScheduled,
			fmt.Sprintf("path %q already has a pending transaction operation", relpath))
	}
	t.leased[relpath] = true
	return nil
}

func (t *Transaction) abs(relpath string) string {
	return filepath.Join(t.root, relpath)
}

// AddFile creates relpath and returns a writer for its contents; on
// rollback the file is deleted.
func (t *Transaction) AddFile(relpath string) (io.WriteCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lease(relpath); err != nil {
		return nil, err
	}
	abspath := t.abs(relpath)
	if err := os.MkdirAll(filepath.Dir(abspath), 0o755); err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotCreate, abspath, err)
	}
	f, err := os.OpenFile(abspath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotCreate, abspath, err)
	}
	t.log = append(t.log, logRecord{kind: logFileAdded, relpath: relpath})
	return f, nil
}

// LeaseFile reserves relpath for a file the caller will itself write (e.g.
// through pkg/diskio's executor) without Transaction opening the handle.
// It performs the same lease, directory creation, and rollback journaling
// as AddFile, returning only the absolute path; on rollback the file is
// deleted exactly as an AddFile-created one would be.
func (t *Transaction) LeaseFile(relpath string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lease(relpath); err != nil {
		return "", err
	}
	abspath := t.abs(relpath)
	if err := os.MkdirAll(filepath.Dir(abspath), 0o755); err != nil {
		return "", rustuperr.WrapOSError(rustuperr.KindCannotCreate, abspath, err)
	}
	t.log = append(t.log, logRecord{kind: logFileAdded, relpath: relpath})
	return abspath, nil
}

// AddDir creates relpath as a directory; on rollback it is removed.
func (t *Transaction) AddDir(relpath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lease(relpath); err != nil {
		return err
	}
	abspath := t.abs(relpath)
	if err := os.MkdirAll(abspath, 0o755); err != nil {
		return rustuperr.WrapOSError(rustuperr.KindCannotCreate, abspath, err)
	}
	t.log = append(t.log, logRecord{kind: logDirAdded, relpath: relpath})
	return nil
}

// CopyFile copies an external file src into relpath inside the prefix.
func (t *Transaction) CopyFile(src, relpath string) error {
	w, err := t.AddFile(relpath)
	if err != nil {
		return err
	}
	defer w.Close()
	in, err := os.Open(src)
	if err != nil {
		return rustuperr.WrapOSError(rustuperr.KindCannotRead, src, err)
	}
	defer in.Close()
	if _, err := io.Copy(w, in); err != nil {
		return rustuperr.WrapOSError(rustuperr.KindCannotWrite, t.abs(relpath), err)
	}
	return nil
}

// MoveFile moves an external file src into relpath inside the prefix.
func (t *Transaction) MoveFile(src, relpath string) error {
	if err := t.CopyFile(src, relpath); err != nil {
		return err
	}
	_ = os.Remove(src)
	return nil
}

// ModifyFile prepares relpath for an in-place overwrite: the current
// contents (if any) are backed up first so rollback can restore them, then
// a writer over the new contents is returned.
func (t *Transaction) ModifyFile(relpath string) (io.WriteCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lease(relpath); err != nil {
		return nil, err
	}
	abspath := t.abs(relpath)
	backupPath := ""
	if _, err := os.Stat(abspath); err == nil {
		backupPath = t.nextBackupPath(relpath)
		if err := copyFileRaw(abspath, backupPath); err != nil {
			return nil, rustuperr.WrapOSError(rustuperr.KindCannotWrite, backupPath, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(abspath), 0o755); err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotCreate, abspath, err)
	}
	f, err := os.OpenFile(abspath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, rustuperr.WrapOSError(rustuperr.KindCannotWrite, abspath, err)
	}
	t.log = append(t.log, logRecord{kind: logFileModified, relpath: relpath, backupPath: backupPath})
	return f, nil
}

// RemoveFile moves relpath into the backup area; on rollback it is moved
// back. Missing files are reported to the caller as os.ErrNotExist so
// higher layers (ComponentInstance.uninstall) can demote them to warnings
// per spec.md §4.2/§7.
func (t *Transaction) RemoveFile(relpath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lease(relpath); err != nil {
		return err
	}
	abspath := t.abs(relpath)
	if _, err := os.Stat(abspath); err != nil {
		return err // os.ErrNotExist or other stat error, left unwrapped for os.IsNotExist checks
	}
	backupPath := t.nextBackupPath(relpath)
	if err := os.Rename(abspath, backupPath); err != nil {
		return rustuperr.WrapOSError(rustuperr.KindCannotRemove, abspath, err)
	}
	t.log = append(t.log, logRecord{kind: logFileRemoved, relpath: relpath, backupPath: backupPath})
	return nil
}

// RemoveDir removes relpath, which must be empty or fully owned. Owned
// trees are backed up as a renamed directory so rollback can restore them;
// empty directories are simply rmdir'd.
func (t *Transaction) RemoveDir(relpath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.lease(relpath); err != nil {
		return err
	}
	abspath := t.abs(relpath)
	entries, err := os.ReadDir(abspath)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		if err := os.Remove(abspath); err != nil {
			return rustuperr.WrapOSError(rustuperr.KindCannotRemove, abspath, err)
		}
		t.log = append(t.log, logRecord{kind: logFileRemoved, relpath: relpath})
		return nil
	}
	backupPath := t.nextBackupPath(relpath)
	if err := os.Rename(abspath, backupPath); err != nil {
		return rustuperr.WrapOSError(rustuperr.KindCannotRemove, abspath, err)
	}
	t.log = append(t.log, logRecord{kind: logFileRemoved, relpath: relpath, backupPath: backupPath})
	return nil
}

// RemoveDirIfEmpty removes relpath only if it has no entries; unlike
// RemoveDir it is not an error for the directory to be missing or
// non-empty — it is a best-effort cleanup used when uninstalling "move:"
// entries that may still be co-owned by another component.
func (t *Transaction) RemoveDirIfEmpty(relpath string) error {
	abspath := t.abs(relpath)
	entries, err := os.ReadDir(abspath)
	if err != nil {
		return nil
	}
	if len(entries) > 0 {
		return nil
	}
	return t.RemoveDir(relpath)
}

func (t *Transaction) nextBackupPath(relpath string) string {
	t.backupSeq++
	return filepath.Join(t.backupDir, fmt.Sprintf("%d-%s", t.backupSeq, filepath.Base(relpath)))
}

// Commit discards backups and marks the transaction complete. No further
// operations may be issued after Commit.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.rolledBack {
		return fmt.Errorf("transaction already finalized")
	}
	_ = os.RemoveAll(t.backupDir)
	t.committed = true
	return nil
}

// Done rolls back the transaction if it was not committed. It is safe to
// call unconditionally via defer immediately after New, mirroring the
// reference implementation's "drop without commit rolls back" discipline.
func (t *Transaction) Done() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.rolledBack {
		return nil
	}
	return t.rollbackLocked()
}

func (t *Transaction) rollbackLocked() error {
	t.rolledBack = true
	var firstErr error
	for i := len(t.log) - 1; i >= 0; i-- {
		rec := t.log[i]
		var err error
		switch rec.kind {
		case logFileAdded:
			err = os.Remove(t.abs(rec.relpath))
			if os.IsNotExist(err) {
				err = nil
			}
		case logDirAdded:
			err = os.Remove(t.abs(rec.relpath))
			if os.IsNotExist(err) {
				err = nil
			}
		case logFileModified:
			if rec.backupPath != "" {
				err = restoreRaw(rec.backupPath, t.abs(rec.relpath))
			} else {
				err = os.Remove(t.abs(rec.relpath))
			}
		case logFileRemoved:
			if rec.backupPath != "" {
				err = restoreRaw(rec.backupPath, t.abs(rec.relpath))
			}
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	_ = os.RemoveAll(t.backupDir)
	return firstErr
}

func copyFileRaw(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func restoreRaw(backupPath, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(backupPath, dst)
}
