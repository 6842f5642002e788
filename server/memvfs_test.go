package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/brettbedarf/memvfs"
	"github.com/brettbedarf/memvfs/adapters"
	"github.com/brettbedarf/memvfs/config"
	"github.com/brettbedarf/memvfs/filesystem"
	"github.com/brettbedarf/memvfs/internal/mocks"
	"github.com/brettbedarf/memvfs/internal/util"
	"github.com/brettbedarf/memvfs/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const nodesJSON = `[
	{"type": "file", "path": "docs/readme.txt", "content": "hello"},
	{"type": "dir", "path": "docs", "perms": 448},
	{"type": "file", "path": "bin/blob", "sources": [{"type": "base64", "data": "AAEC"}]}
]`

func newTestVFS(t *testing.T, cfg *config.Config) *MemVFS {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1000, 0))
	m, err := New(cfg, filesystem.WithRegistry(filesystem.NewRegistry()), filesystem.WithClock(clk))
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	t.Parallel()

	m := newTestVFS(t, nil)
	root, ok := m.Lookup("root")
	require.True(t, ok)
	assert.Equal(t, "root", root.Name())
	assert.Equal(t, time.Unix(1000, 0), root.ModTime())

	cfg := config.NewDefaultConfig()
	cfg.RootName = "mnt"
	m = newTestVFS(t, cfg)
	_, ok = m.Lookup("mnt")
	assert.True(t, ok)
	_, ok = m.Lookup("root")
	assert.False(t, ok)

	cfg = config.NewDefaultConfig()
	cfg.RootName = "a/b"
	_, err := New(cfg, filesystem.WithRegistry(filesystem.NewRegistry()))
	assert.ErrorIs(t, err, filesystem.ErrInvalidName)
}

func TestMemVFS_LoadNodes(t *testing.T) {
	t.Parallel()

	m := newTestVFS(t, nil)
	err := m.LoadNodes(context.Background(), []byte(nodesJSON), requests.JSON, adapters.NewBuiltinRegistry())
	require.NoError(t, err)

	readme, ok := m.Lookup("root/docs/readme.txt")
	require.True(t, ok)
	assert.EqualValues(t, 5, readme.Size())

	// directories are added before files regardless of document order
	docs, ok := m.Lookup("root/docs")
	require.True(t, ok)
	require.NoError(t, m.View(func(tree *filesystem.Tree) error {
		st, err := tree.Stat("root/docs")
		require.NoError(t, err)
		assert.Equal(t, uint32(0o700), st.Perm)
		return nil
	}))
	assert.EqualValues(t, 5, docs.Size())

	blob, ok := m.Lookup("root/bin/blob")
	require.True(t, ok)
	assert.EqualValues(t, 3, blob.Size())
}

func TestMemVFS_LoadNodesPartial(t *testing.T) {
	t.Parallel()

	m := newTestVFS(t, nil)
	doc := `[
		{"type": "file", "path": "a.txt", "content": "a"},
		{"type": "file", "path": "a.txt", "content": "again"},
		{"type": "file", "path": "b.txt", "sources": [{"type": "nope"}]},
		{"type": "link", "path": "c"}
	]`
	err := m.LoadNodes(context.Background(), []byte(doc), requests.JSON, adapters.NewBuiltinRegistry())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.ErrorIs(t, err, filesystem.ErrExist)

	a, ok := m.Lookup("root/a.txt")
	require.True(t, ok)
	assert.EqualValues(t, 1, a.Size())
	_, ok = m.Lookup("root/b.txt")
	assert.False(t, ok)

	err = m.LoadNodes(context.Background(), []byte("{"), requests.JSON, nil)
	assert.Error(t, err)
}

func TestMemVFS_LoadNodesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nodes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- type: file
  path: notes/todo.md
  content: "- [ ] write tests"
`), 0o600))

	m := newTestVFS(t, nil)
	require.NoError(t, m.LoadNodesFile(context.Background(), path, adapters.NewBuiltinRegistry()))
	_, ok := m.Lookup("root/notes/todo.md")
	assert.True(t, ok)

	assert.Error(t, m.LoadNodesFile(context.Background(), filepath.Join(dir, "nodes.txt"), nil))
	assert.Error(t, m.LoadNodesFile(context.Background(), filepath.Join(dir, "missing.json"), nil))
}

func TestMemVFS_AddFileNode(t *testing.T) {
	t.Parallel()

	t.Run("FallsBackBetweenSources", func(t *testing.T) {
		m := newTestVFS(t, nil)
		failing := new(mocks.MockContentSource)
		failing.On("Content", mock.Anything).Return(nil, errors.New("unreachable"))
		working := new(mocks.MockContentSource)
		working.On("Content", mock.Anything).Return([]byte("ok"), nil)

		info, err := m.AddFileNode(context.Background(), &memvfs.FileCreateRequest{
			NodeRequest: memvfs.NodeRequest{Path: "x/y.txt", Type: memvfs.FileNodeType},
			Sources: []memvfs.FileSource{
				{ContentSource: working, Priority: 2},
				{ContentSource: failing, Priority: 1},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "root/x/y.txt", info.Path())
		assert.EqualValues(t, 2, info.Size())
		failing.AssertExpectations(t)
		working.AssertExpectations(t)
	})

	t.Run("EmptySource", func(t *testing.T) {
		m := newTestVFS(t, nil)
		empty := new(mocks.MockContentSource)
		empty.On("Content", mock.Anything).Return(nil, nil).Once()

		info, err := m.AddFileNode(context.Background(), &memvfs.FileCreateRequest{
			NodeRequest: memvfs.NodeRequest{Path: "empty"},
			Sources:     []memvfs.FileSource{{ContentSource: empty}},
		})
		require.NoError(t, err)
		assert.Zero(t, info.Size())
		empty.AssertExpectations(t)
	})

	t.Run("AllSourcesFail", func(t *testing.T) {
		m := newTestVFS(t, nil)
		failing := new(mocks.MockContentSource)
		failing.On("Content", mock.Anything).Return(nil, errors.New("boom"))

		_, err := m.AddFileNode(context.Background(), &memvfs.FileCreateRequest{
			NodeRequest: memvfs.NodeRequest{Path: "f"},
			Sources:     []memvfs.FileSource{{ContentSource: failing}},
		})
		assert.ErrorIs(t, err, filesystem.ErrNoContent)
		_, ok := m.Lookup("root/f")
		assert.False(t, ok)
	})
}

func TestMemVFS_AddDirNode(t *testing.T) {
	t.Parallel()

	m := newTestVFS(t, nil)
	info, err := m.AddDirNode(&memvfs.DirCreateRequest{NodeRequest: memvfs.NodeRequest{Path: "a/b"}})
	require.NoError(t, err)
	assert.Equal(t, "root/a/b", info.Path())

	_, err = m.AddFileNode(context.Background(), &memvfs.FileCreateRequest{
		NodeRequest: memvfs.NodeRequest{Path: "a/file"},
		Content:     []byte("x"),
	})
	require.NoError(t, err)
	_, err = m.AddDirNode(&memvfs.DirCreateRequest{NodeRequest: memvfs.NodeRequest{Path: "a/file/c"}})
	assert.ErrorIs(t, err, filesystem.ErrNotDir)
}

func TestMemVFS_Update(t *testing.T) {
	t.Parallel()

	m := newTestVFS(t, nil)
	require.NoError(t, m.Update(func(tree *filesystem.Tree) error {
		return tree.WriteFile("root/log", []byte("line"))
	}))
	info, ok := m.Lookup("root/log")
	require.True(t, ok)
	assert.EqualValues(t, 4, info.Size())
}

func TestMemVFS_UnmountWithoutServe(t *testing.T) {
	t.Parallel()

	m := newTestVFS(t, nil)
	assert.NoError(t, m.Unmount())
	m.Wait()
}

func TestMemVFS_ServeAsyncMountError(t *testing.T) {
	t.Parallel()

	m := newTestVFS(t, nil)
	done := m.ServeAsync(filepath.Join(t.TempDir(), "missing"))
	select {
	case err, ok := <-done:
		require.True(t, ok)
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("mount attempt did not finish")
	}
	_, ok := <-done
	assert.False(t, ok, "channel must be closed after the result")
	assert.NoError(t, m.Unmount())
}

func TestMain(m *testing.M) {
	util.InitializeLogger(util.ErrorLevel)
	os.Exit(m.Run())
}
