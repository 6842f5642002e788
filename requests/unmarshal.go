package requests

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/memvfs"
	"github.com/brettbedarf/memvfs/adapters"
)

// Format is the encoding of a node definition document
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatFromPath picks the document format from a file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("unknown node definition file extension: %s", path)
	}
}

// NodeRequests holds the decoded entries of a node definition document in
// document order per kind.
type NodeRequests struct {
	Dirs  []*memvfs.DirCreateRequest
	Files []*memvfs.FileCreateRequest
}

// Unmarshal decodes a document holding a list of node definitions.
// Every entry is decoded even when earlier ones fail; the returned error
// combines all per-entry failures and the successfully decoded entries are
// still returned.
func Unmarshal(data []byte, format Format, sources *adapters.Registry) (*NodeRequests, error) {
	var entries []json.RawMessage
	switch format {
	case JSON:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node definitions: %w", err)
		}
	case YAML:
		var err error
		if entries, err = yamlEntries(data); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported node definition format %q", format)
	}

	reqs := &NodeRequests{}
	var errs error
	for i, raw := range entries {
		nodeType, err := GetNodeType(raw)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		switch nodeType {
		case memvfs.DirNodeType:
			req, err := UnmarshalDirRequest(raw)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("entry %d: %w", i, err))
				continue
			}
			reqs.Dirs = append(reqs.Dirs, req)
		case memvfs.FileNodeType:
			req, err := UnmarshalFileRequest(raw, sources)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("entry %d: %w", i, err))
				continue
			}
			reqs.Files = append(reqs.Files, req)
		default:
			errs = multierr.Append(errs, fmt.Errorf("entry %d: unknown node type %q", i, nodeType))
		}
	}
	return reqs, errs
}

// yamlEntries re-encodes each YAML list entry as JSON so both formats share
// one decoding path
func yamlEntries(data []byte) ([]json.RawMessage, error) {
	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node definitions: %w", err)
	}
	entries := make([]json.RawMessage, 0, len(docs))
	for i, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, raw)
	}
	return entries, nil
}

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (memvfs.NodeCreateRequestType, error) {
	var meta struct {
		Type memvfs.NodeCreateRequestType `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// UnmarshalFileRequest handles file-specific unmarshaling with sources
func UnmarshalFileRequest(data []byte, sources *adapters.Registry) (*memvfs.FileCreateRequest, error) {
	var dto FileRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}

	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}

	req := &memvfs.FileCreateRequest{NodeRequest: node}
	if dto.Content != nil {
		req.Content = []byte(*dto.Content)
	}
	if len(dto.Sources) > 0 {
		if req.Sources, err = unmarshalSources(dto.Sources, data, sources); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// UnmarshalDirRequest handles explicit directory unmarshaling (no sources)
func UnmarshalDirRequest(data []byte) (*memvfs.DirCreateRequest, error) {
	var dto DirRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}

	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}
	return &memvfs.DirCreateRequest{NodeRequest: node}, nil
}

// Helper function to process sources array
func unmarshalSources(sourceDTOs []SourceConfigDTO, rawData []byte, registry *adapters.Registry) ([]memvfs.FileSource, error) {
	if registry == nil {
		return nil, fmt.Errorf("file defines %d source(s) but no source registry was given", len(sourceDTOs))
	}
	// Extract raw sources array from JSON for the source registry
	var rawMessage struct {
		Sources []json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(rawData, &rawMessage); err != nil {
		return nil, err
	}

	sources := make([]memvfs.FileSource, 0, len(rawMessage.Sources))
	for i, rawSource := range rawMessage.Sources {
		source, err := registry.NewSource(rawSource)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}

		// Apply priority default
		priority := i
		if sourceDTOs[i].Priority != nil {
			priority = *sourceDTOs[i].Priority
		}

		sources = append(sources, memvfs.FileSource{
			ContentSource: source,
			Priority:      priority,
		})
	}

	return sources, nil
}

// convertNodeDTO applies the unmarshaling layer's defaults. Unset times,
// perms and owner stay zero so the tree fills them in.
func convertNodeDTO(dto NodeRequestDTO) (memvfs.NodeRequest, error) {
	if strings.TrimSpace(dto.Path) == "" {
		return memvfs.NodeRequest{}, fmt.Errorf("%s node requires a path", dto.Type)
	}
	id := valueOrDefault(dto.UUID, uuid.New().String())
	if err := uuid.Validate(id); err != nil {
		return memvfs.NodeRequest{}, fmt.Errorf("invalid uuid %q: %w", id, err)
	}

	return memvfs.NodeRequest{
		Path:     dto.Path,
		Type:     dto.Type,
		UUID:     id,
		Atime:    valueOrDefault(dto.Atime, time.Time{}),
		Mtime:    valueOrDefault(dto.Mtime, time.Time{}),
		Ctime:    valueOrDefault(dto.Ctime, time.Time{}),
		Perms:    valueOrDefault(dto.Perms, 0),
		OwnerUID: valueOrDefault(dto.OwnerUID, 0),
		OwnerGID: valueOrDefault(dto.OwnerGID, 0),
	}, nil
}

func valueOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr != nil {
		return *ptr
	}
	return defaultVal
}
