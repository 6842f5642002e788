package server

import (
	"context"
	"fmt"
	"os"

	"github.com/brettbedarf/memvfs"
	"github.com/brettbedarf/memvfs/adapters"
	"github.com/brettbedarf/memvfs/config"
	"github.com/brettbedarf/memvfs/filesystem"
	mfuse "github.com/brettbedarf/memvfs/fuse"
	"github.com/brettbedarf/memvfs/internal/util"
	"github.com/brettbedarf/memvfs/requests"
	"github.com/hanwen/go-fuse/v2/fuse"
	"go.uber.org/multierr"
)

// MemVFS owns a tree with an installed root and optionally serves it over
// FUSE. All access from the host goes through the same lock the kernel
// requests use.
type MemVFS struct {
	raw    *mfuse.FuseRaw
	cfg    *config.Config
	server *fuse.Server
}

// New creates a MemVFS instance given your config. A fresh directory named
// cfg.RootName becomes the root of the tree's registry, replacing any root
// installed before.
func New(cfg *config.Config, opts ...filesystem.Option) (*MemVFS, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	tree := filesystem.NewTree(cfg, opts...)
	root, err := filesystem.NewDirectory(cfg.RootName)
	if err != nil {
		return nil, fmt.Errorf("invalid root name: %w", err)
	}
	tree.Registry().Register()
	tree.Registry().SetRoot(root)
	root.SetPerm(cfg.DirPerms)
	now := tree.Now()
	root.SetCreateTime(now)
	root.SetModTime(now)
	root.SetAccessTime(now)

	return &MemVFS{
		raw: mfuse.NewFuseRaw(tree),
		cfg: cfg,
	}, nil
}

// View runs fn with the tree read-locked
func (m *MemVFS) View(fn func(*filesystem.Tree) error) error {
	return m.raw.View(fn)
}

// Update runs fn with the tree write-locked
func (m *MemVFS) Update(fn func(*filesystem.Tree) error) error {
	return m.raw.Update(fn)
}

// Lookup returns a read-only view of the node at path, which starts with the
// root's name.
func (m *MemVFS) Lookup(path string) (memvfs.NodeInfo, bool) {
	var (
		node filesystem.Node
		ok   bool
	)
	_ = m.View(func(t *filesystem.Tree) error {
		node, ok = t.Resolve(path)
		return nil
	})
	if !ok {
		return nil, false
	}
	return node, true
}

// AddDirNode is [filesystem.Tree.AddDirNode] under the write lock
func (m *MemVFS) AddDirNode(req *memvfs.DirCreateRequest) (memvfs.NodeInfo, error) {
	var dir *filesystem.Directory
	err := m.Update(func(t *filesystem.Tree) error {
		var err error
		dir, err = t.AddDirNode(req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// AddFileNode is [filesystem.Tree.AddFileNode] under the write lock.
// Content sources are fetched before the lock is taken.
func (m *MemVFS) AddFileNode(ctx context.Context, req *memvfs.FileCreateRequest) (memvfs.NodeInfo, error) {
	if req.Content == nil && len(req.Sources) > 0 {
		data, err := filesystem.FetchContent(ctx, req)
		if err != nil {
			return nil, err
		}
		fetched := *req
		fetched.Content = data
		if fetched.Content == nil {
			fetched.Content = []byte{}
		}
		req = &fetched
	}
	var f *filesystem.File
	err := m.Update(func(t *filesystem.Tree) error {
		var err error
		f, err = t.AddFileNode(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// LoadNodes decodes a node definition document and adds every directory and
// then every file it defines. Failures of single entries do not stop the
// load; they are combined into the returned error.
func (m *MemVFS) LoadNodes(ctx context.Context, data []byte, format requests.Format, sources *adapters.Registry) error {
	logger := util.GetLogger("LoadNodes")

	reqs, errs := requests.Unmarshal(data, format, sources)
	if reqs == nil {
		return errs
	}
	logger.Debug().
		Int("files", len(reqs.Files)).
		Int("directories", len(reqs.Dirs)).
		Msg("Successfully loaded node requests")

	dirAddCnt := 0
	for _, req := range reqs.Dirs {
		if _, err := m.AddDirNode(req); err != nil {
			logger.Debug().Str("path", req.Path).Err(err).Msg("Failed to add directory request")
			errs = multierr.Append(errs, err)
			continue
		}
		dirAddCnt++
	}
	fileAddCnt := 0
	for _, req := range reqs.Files {
		if _, err := m.AddFileNode(ctx, req); err != nil {
			logger.Debug().Str("path", req.Path).Err(err).Msg("Failed to add file request")
			errs = multierr.Append(errs, err)
			continue
		}
		fileAddCnt++
	}
	logger.Info().Int("directories", dirAddCnt).Int("files", fileAddCnt).Msg("Added new nodes to filesystem")
	return errs
}

// LoadNodesFile is [MemVFS.LoadNodes] for a file whose extension selects
// the format
func (m *MemVFS) LoadNodesFile(ctx context.Context, path string, sources *adapters.Registry) error {
	format, err := requests.FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadNodes(ctx, data, format, sources)
}

// Serve mounts and serves the filesystem at the given mountPoint.
func (m *MemVFS) Serve(mountPoint string) error {
	logLvl := util.DebugLevel
	if m.cfg.LogLvl == util.TraceLevel {
		logLvl = util.TraceLevel
	}
	srv, err := fuse.NewServer(m.raw, mountPoint, &fuse.MountOptions{
		Name:               m.cfg.Name,
		FsName:             m.cfg.FsName,
		Debug:              m.cfg.Debug || m.cfg.LogLvl == util.TraceLevel,
		Logger:             util.NewLogLogger("FuseServer", logLvl),
		MaxWrite:           m.cfg.MaxWrite,
		AllowOther:         m.cfg.AllowOther,
		DisableReadDirPlus: true,
	})
	if err != nil {
		return err
	}
	m.server = srv

	go srv.Serve()
	return srv.WaitMount()
}

// ServeAsync runs [MemVFS.Serve] in the background. The returned channel
// receives the mount result once and is then closed.
func (m *MemVFS) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- m.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted
func (m *MemVFS) Wait() {
	if m.server != nil {
		m.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (m *MemVFS) Unmount() error {
	if m.server == nil {
		return nil
	}
	return m.server.Unmount()
}
