package filesystem

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/brettbedarf/memvfs"
	"github.com/brettbedarf/memvfs/internal/util"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ErrNoContent is returned when none of a file request's sources produced content
var ErrNoContent = errors.New("no content source succeeded")

// AddDirNode adds all missing directories in the request's path below the
// root and returns the leaf.
// It is equivalent to calling `mkdir -p` from a shell and similarly will only create
// directories that do not already exist and will not error if the leaf already exists.
// Request metadata is applied to the directories it creates.
func (t *Tree) AddDirNode(req *memvfs.DirCreateRequest) (*Directory, error) {
	logger := util.GetLogger("AddDirNode")

	id, err := parseRequestID(req.UUID)
	if err != nil {
		return nil, err
	}
	cur := t.reg.Root()
	if cur == nil {
		return nil, ErrNoRoot
	}
	rel := strings.Trim(req.Path, Separator)
	if rel == "" {
		return cur, nil
	}

	newCnt := 0
	for name := range strings.SplitSeq(rel, Separator) {
		if child, ok := cur.ChildNamed(name); ok {
			dir, ok := child.(*Directory)
			if !ok {
				return nil, pathError("mkdir", req.Path, ErrNotDir)
			}
			cur = dir
			continue
		}
		dir, err := t.Mkdir(cur, name)
		if err != nil {
			return nil, err
		}
		applyRequest(dir, &req.NodeRequest)
		newCnt++
		cur = dir
	}
	if newCnt > 0 {
		if id != uuid.Nil {
			cur.id = id
		}
		logger.Debug().Str("path", req.Path).Msg(fmt.Sprintf("Created %d new dir(s)", newCnt))
	}
	return cur, nil
}

// AddFileNode adds a new file node. It will add any missing directories in
// the path and return the newly created file.
// If a node already exists at the requested path, it will return an error.
func (t *Tree) AddFileNode(ctx context.Context, req *memvfs.FileCreateRequest) (*File, error) {
	logger := util.GetLogger("AddFileNode")

	id, err := parseRequestID(req.UUID)
	if err != nil {
		return nil, err
	}
	dirPath, name := path.Split(strings.Trim(req.Path, Separator))
	// Implicit parents only inherit ownership; a file's perms make no sense on a dir
	dirReq := memvfs.DirCreateRequest{NodeRequest: memvfs.NodeRequest{
		Path:     dirPath,
		Type:     memvfs.DirNodeType,
		OwnerUID: req.OwnerUID,
		OwnerGID: req.OwnerGID,
	}}
	parent, err := t.AddDirNode(&dirReq)
	if err != nil {
		logger.Error().Err(err).Str("path", dirReq.Path).Msg("Failed to create file's ancestor directory(s)")
		return nil, err
	}
	if _, ok := parent.ChildNamed(name); ok {
		return nil, pathError("create", req.Path, ErrExist)
	}

	data, err := FetchContent(ctx, req)
	if err != nil {
		logger.Error().Err(err).Str("path", req.Path).Msg("Failed to fetch content")
		return nil, err
	}
	f, err := t.MakeFile(parent, name, data)
	if err != nil {
		return nil, err
	}
	applyRequest(f, &req.NodeRequest)
	if id != uuid.Nil {
		f.id = id
	}
	logger.Debug().Str("path", req.Path).Int64("size", f.Size()).Msg("Added new file node")
	return f, nil
}

// FetchContent returns the request's inline content or else the bytes of the
// first source, by ascending priority, that produces them.
func FetchContent(ctx context.Context, req *memvfs.FileCreateRequest) ([]byte, error) {
	logger := util.GetLogger("FetchContent")
	if req.Content != nil || len(req.Sources) == 0 {
		return req.Content, nil
	}

	sources := slices.Clone(req.Sources)
	slices.SortStableFunc(sources, func(a, b memvfs.FileSource) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	var errs error
	for _, src := range sources {
		if src.ContentSource == nil {
			continue
		}
		data, err := src.Content(ctx)
		if err != nil {
			logger.Warn().Err(err).Str("path", req.Path).Int("priority", src.Priority).Msg("Content source failed")
			errs = multierr.Append(errs, err)
			continue
		}
		return data, nil
	}
	if errs == nil {
		return nil, fmt.Errorf("%s: %w", req.Path, ErrNoContent)
	}
	return nil, fmt.Errorf("%s: %w: %w", req.Path, ErrNoContent, errs)
}

// applyRequest copies the non-zero metadata of req onto n
func applyRequest(n Node, req *memvfs.NodeRequest) {
	if !req.Ctime.IsZero() {
		n.SetCreateTime(req.Ctime)
	}
	if !req.Mtime.IsZero() {
		n.SetModTime(req.Mtime)
	}
	if !req.Atime.IsZero() {
		n.SetAccessTime(req.Atime)
	}
	if req.Perms != 0 {
		n.SetPerm(req.Perms)
	}
	if req.OwnerUID != 0 || req.OwnerGID != 0 {
		n.SetOwner(req.OwnerUID, req.OwnerGID)
	}
}

func parseRequestID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid node uuid %q: %w", s, err)
	}
	return id, nil
}
