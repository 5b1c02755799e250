package diskio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, e *Executor, n int) []Result {
	t.Helper()
	var results []Result
	for i := 0; i < n; i++ {
		select {
		case r := <-e.Completed():
			results = append(results, r)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %d completions, got %d", n, len(results))
		}
	}
	return results
}

func TestPooledWriteFile(t *testing.T) {
	dir := t.TempDir()
	e := New(4, defaultByteBudget)

	path := filepath.Join(dir, "bin", "rustc")
	e.Submit(&Item{Kind: CreateDirectory, Path: filepath.Dir(path), Mode: 0o755, Priority: Critical})
	e.Join()
	e.Submit(&Item{Kind: WriteFile, Path: path, Buffer: []byte("stub"), Mode: 0o644, Priority: Normal})

	results := drain(t, e, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
	}
	e.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stub", string(data))
}

func TestImmediateExecutorFallback(t *testing.T) {
	dir := t.TempDir()
	e := New(1, defaultByteBudget)

	path := filepath.Join(dir, "config.toml")
	e.Submit(&Item{Kind: WriteFile, Path: path, Buffer: []byte("x=1"), Mode: 0o644})

	r := <-e.Completed()
	require.NoError(t, r.Err)
	e.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x=1", string(data))
}

func TestIncrementalFileEndOfStream(t *testing.T) {
	dir := t.TempDir()
	e := New(2, defaultByteBudget)
	path := filepath.Join(dir, "payload.bin")

	chunks := make(chan []byte, 4)
	chunks <- []byte("hello-")
	chunks <- []byte("world")
	chunks <- []byte{}
	close(chunks)

	e.Submit(&Item{Kind: IncrementalFile, Path: path, Mode: 0o644, Chunks: chunks})
	r := <-e.Completed()
	require.NoError(t, r.Err)
	e.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", string(data))
}

func TestGetBufferRejectsOversizedRequest(t *testing.T) {
	e := New(2, 1024)
	defer e.Close()

	_, err := e.GetBuffer(2048)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds byte budget")
}

func TestGetBufferReleaseRoundTrip(t *testing.T) {
	e := New(2, 1024)
	defer e.Close()

	buf, err := e.GetBuffer(512)
	require.NoError(t, err)
	assert.Len(t, buf, 512)
	e.ReleaseBuffer(buf)

	buf2, err := e.GetBuffer(512)
	require.NoError(t, err)
	assert.Len(t, buf2, 512)
	e.ReleaseBuffer(buf2)
}

func TestPriorityQueueOrdersCriticalFirst(t *testing.T) {
	q := priorityQueue{
		{Priority: Normal, Path: "b"},
		{Priority: Critical, Path: "z"},
		{Priority: Normal, Path: "a"},
	}
	assert.True(t, q.Less(1, 0))
	assert.True(t, q.Less(2, 0))
}

func TestDefaultWorkerCountRespectsEnvOverride(t *testing.T) {
	t.Setenv("RUSTUP_IO_THREADS", "3")
	assert.Equal(t, 3, DefaultWorkerCount())
}

func TestDefaultByteBudgetRespectsEnvOverride(t *testing.T) {
	t.Setenv("RUSTUP_RAM_BUDGET", "123456")
	assert.Equal(t, int64(123456), DefaultByteBudget())
}
