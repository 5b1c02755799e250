package transaction

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTx(t *testing.T) (*Transaction, string) {
	root := t.TempDir()
	backup := filepath.Join(root, ".backup")
	tx, err := New(root, backup)
	require.NoError(t, err)
	return tx, root
}

func TestAddFileRollbackRemoves(t *testing.T) {
	tx, root := newTestTx(t)
	w, err := tx.AddFile("bin/rustc")
	require.NoError(t, err)
	_, err = io.WriteString(w, "stub")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, tx.Done())

	_, err = os.Stat(filepath.Join(root, "bin/rustc"))
	assert.True(t, os.IsNotExist(err))
}

func TestAddFileCommitKeeps(t *testing.T) {
	tx, root := newTestTx(t)
	w, err := tx.AddFile("bin/rustc")
	require.NoError(t, err)
	_, err = io.WriteString(w, "stub")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Done())

	data, err := os.ReadFile(filepath.Join(root, "bin/rustc"))
	require.NoError(t, err)
	assert.Equal(t, "stub", string(data))
}

func TestModifyFileRollbackRestoresOriginal(t *testing.T) {
	tx, root := newTestTx(t)
	path := filepath.Join(root, "etc/config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	w, err := tx.ModifyFile("etc/config.toml")
	require.NoError(t, err)
	_, err = io.WriteString(w, "changed")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, _ := os.ReadFile(path)
	assert.Equal(t, "changed", string(data))

	require.NoError(t, tx.Done())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestRemoveFileRollbackRestores(t *testing.T) {
	tx, root := newTestTx(t)
	path := filepath.Join(root, "bin/cargo")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	require.NoError(t, tx.RemoveFile("bin/cargo"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, tx.Done())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestDuplicateLeaseRejected(t *testing.T) {
	tx, _ := newTestTx(t)
	defer tx.Done()

	_, err := tx.AddFile("bin/rustc")
	require.NoError(t, err)

	_, err = tx.AddFile("bin/rustc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has a pending transaction operation")
}

func TestCommitThenDoneIsNoop(t *testing.T) {
	tx, _ := newTestTx(t)
	require.NoError(t, tx.Commit())
	assert.NoError(t, tx.Done())
}

func TestCommitTwiceFails(t *testing.T) {
	tx, _ := newTestTx(t)
	require.NoError(t, tx.Commit())
	assert.Error(t, tx.Commit())
}
