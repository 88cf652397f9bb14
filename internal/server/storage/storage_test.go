package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

func newLayout(t *testing.T) Layout {
	t.Helper()
	return Layout{Root: t.TempDir(), LockFileName: ".lock", BackupFolderName: "bk"}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestLayout_ValidateName(t *testing.T) {
	l := Layout{Root: "/srv", LockFileName: ".lock", BackupFolderName: "bk"}

	for _, bad := range []string{"", ".", "..", "a/b.pdf", `a\b.pdf`, ".lock", "bk", "x\x00y"} {
		err := l.ValidateName(bad)
		require.ErrorIs(t, err, common.ErrInvalidRequest, "name %q", bad)
	}

	p, err := l.FilePath(42, "design.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv", "42", "design.pdf"), p)
	assert.Equal(t, filepath.Join("/srv", "42", "bk"), l.BackupDir(42))
	assert.Equal(t, filepath.Join("/srv", "42", ".lock"), l.LockPath(42))
}

func TestChunkWriter_SequentialChunks(t *testing.T) {
	l := newLayout(t)
	w := NewChunkWriter(l, logging.Discard())
	ctx := context.Background()

	n, err := w.WriteChunk(ctx, 42, "a.txt", strings.NewReader("hello "), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	_, err = w.WriteChunk(ctx, 42, "a.txt", strings.NewReader("world"), 6)
	require.NoError(t, err)

	assert.Equal(t, "hello world", readFile(t, filepath.Join(l.Root, "42", "a.txt")))
}

func TestChunkWriter_OffsetZeroRestartsFile(t *testing.T) {
	l := newLayout(t)
	w := NewChunkWriter(l, logging.Discard())
	ctx := context.Background()

	_, err := w.WriteChunk(ctx, 42, "a.bin", bytes.NewReader(bytes.Repeat([]byte("x"), 100)), 0)
	require.NoError(t, err)

	_, err = w.WriteChunk(ctx, 42, "a.bin", strings.NewReader("short"), 0)
	require.NoError(t, err)

	assert.Equal(t, "short", readFile(t, filepath.Join(l.Root, "42", "a.bin")),
		"no residual bytes from the earlier upload")
}

func TestChunkWriter_OutOfOrderChunks(t *testing.T) {
	l := newLayout(t)
	w := NewChunkWriter(l, logging.Discard())
	ctx := context.Background()

	_, err := w.WriteChunk(ctx, 7, "a.txt", strings.NewReader("abc"), 0)
	require.NoError(t, err)
	_, err = w.WriteChunk(ctx, 7, "a.txt", strings.NewReader("ghi"), 6)
	require.NoError(t, err)
	_, err = w.WriteChunk(ctx, 7, "a.txt", strings.NewReader("def"), 3)
	require.NoError(t, err)

	assert.Equal(t, "abcdefghi", readFile(t, filepath.Join(l.Root, "7", "a.txt")))
}

func TestChunkWriter_EmptyChunkAtZeroCreatesEmptyFile(t *testing.T) {
	l := newLayout(t)
	w := NewChunkWriter(l, logging.Discard())

	n, err := w.WriteChunk(context.Background(), 7, "empty.txt", strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	fi, err := os.Stat(filepath.Join(l.Root, "7", "empty.txt"))
	require.NoError(t, err)
	assert.Zero(t, fi.Size())
}

func TestChunkWriter_RejectsBadInput(t *testing.T) {
	w := NewChunkWriter(newLayout(t), logging.Discard())
	ctx := context.Background()

	_, err := w.WriteChunk(ctx, 0, "a.txt", strings.NewReader("x"), 0)
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = w.WriteChunk(ctx, 1, "a.txt", strings.NewReader("x"), -1)
	require.ErrorIs(t, err, common.ErrInvalidRequest)

	_, err = w.WriteChunk(ctx, 1, "../escape.txt", strings.NewReader("x"), 0)
	require.ErrorIs(t, err, common.ErrInvalidRequest)
}

func TestLockManager_AcquireRelease(t *testing.T) {
	l := newLayout(t)
	m := NewLockManager(l, logging.Discard())
	ctx := context.Background()

	require.NoError(t, m.TryAcquire(ctx, 42))
	locked, err := m.Locked(42)
	require.NoError(t, err)
	assert.True(t, locked)

	require.ErrorIs(t, m.TryAcquire(ctx, 42), common.ErrLocked)

	m.Release(ctx, 42)
	locked, err = m.Locked(42)
	require.NoError(t, err)
	assert.False(t, locked)

	m.Release(ctx, 42) // idempotent

	require.NoError(t, m.TryAcquire(ctx, 42), "lock is reusable after release")
}

func TestLockManager_ConcurrentAcquireHasOneWinner(t *testing.T) {
	m := NewLockManager(newLayout(t), logging.Discard())
	ctx := context.Background()

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		denials int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := m.TryAcquire(ctx, 42)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, common.ErrLocked) {
				denials++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, denials)
}

func TestLockManager_OwnersAreIndependent(t *testing.T) {
	m := NewLockManager(newLayout(t), logging.Discard())
	ctx := context.Background()

	require.NoError(t, m.TryAcquire(ctx, 1))
	require.NoError(t, m.TryAcquire(ctx, 2))
}

func TestStaging_StageAndPurge(t *testing.T) {
	l := newLayout(t)
	ownerDir := filepath.Join(l.Root, "42")
	require.NoError(t, os.MkdirAll(ownerDir, 0o770))
	require.NoError(t, os.WriteFile(filepath.Join(ownerDir, "a.pdf"), []byte("A"), 0o660))
	ctx := context.Background()

	st, err := NewStager(l, logging.Discard()).Begin(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, st.Stage(ctx, "a.pdf"))

	assert.NoFileExists(t, filepath.Join(ownerDir, "a.pdf"))
	assert.FileExists(t, filepath.Join(ownerDir, "bk", "a.pdf"))
	assert.Equal(t, []string{"a.pdf"}, st.Staged())

	require.NoError(t, st.Purge(ctx))
	assert.NoDirExists(t, filepath.Join(ownerDir, "bk"))
}

func TestStaging_Restore(t *testing.T) {
	l := newLayout(t)
	ownerDir := filepath.Join(l.Root, "42")
	require.NoError(t, os.MkdirAll(ownerDir, 0o770))
	require.NoError(t, os.WriteFile(filepath.Join(ownerDir, "a.pdf"), []byte("A"), 0o660))
	require.NoError(t, os.WriteFile(filepath.Join(ownerDir, "b.pdf"), []byte("B"), 0o660))
	ctx := context.Background()

	st, err := NewStager(l, logging.Discard()).Begin(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, st.Stage(ctx, "a.pdf"))
	require.NoError(t, st.Stage(ctx, "b.pdf"))

	require.NoError(t, st.Restore(ctx))

	assert.Equal(t, "A", readFile(t, filepath.Join(ownerDir, "a.pdf")))
	assert.Equal(t, "B", readFile(t, filepath.Join(ownerDir, "b.pdf")))
	assert.NoDirExists(t, filepath.Join(ownerDir, "bk"))
}

func TestStaging_MissingFileFails(t *testing.T) {
	l := newLayout(t)
	ctx := context.Background()

	st, err := NewStager(l, logging.Discard()).Begin(ctx, 42)
	require.NoError(t, err)

	require.Error(t, st.Stage(ctx, "ghost.pdf"))
	assert.Empty(t, st.Staged())
}

func TestStager_RefusesStaleBackup(t *testing.T) {
	l := newLayout(t)
	bk := filepath.Join(l.Root, "42", "bk")
	require.NoError(t, os.MkdirAll(bk, 0o770))
	require.NoError(t, os.WriteFile(filepath.Join(bk, "left.pdf"), []byte("x"), 0o660))

	_, err := NewStager(l, logging.Discard()).Begin(context.Background(), 42)
	require.ErrorIs(t, err, common.ErrStaleBackup)
}

func TestStager_ClearsEmptyBackup(t *testing.T) {
	l := newLayout(t)
	bk := filepath.Join(l.Root, "42", "bk")
	require.NoError(t, os.MkdirAll(bk, 0o770))

	_, err := NewStager(l, logging.Discard()).Begin(context.Background(), 42)
	require.NoError(t, err)
	assert.NoDirExists(t, bk)
}
