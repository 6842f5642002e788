package adapters

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brettbedarf/memvfs"
	"github.com/puzpuzpuz/xsync/v4"
)

// ErrUnknownType is returned for a source definition whose "type" has no provider
var ErrUnknownType = errors.New("no provider registered for source type")

// SourceProvider builds a [memvfs.ContentSource] from its raw JSON definition
type SourceProvider interface {
	NewSource(raw []byte) (memvfs.ContentSource, error)
}

// ProviderFunc adapts a plain function to [SourceProvider]
type ProviderFunc func(raw []byte) (memvfs.ContentSource, error)

func (f ProviderFunc) NewSource(raw []byte) (memvfs.ContentSource, error) {
	return f(raw)
}

// Registry ties source providers to a "type" key. Safe for concurrent use.
type Registry struct {
	providers *xsync.Map[string, SourceProvider]
}

func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMap[string, SourceProvider]()}
}

// Register adds provider under sourceType. The first registration for a
// type wins; later ones are ignored and reported with false.
func (r *Registry) Register(sourceType string, provider SourceProvider) bool {
	_, loaded := r.providers.LoadOrStore(sourceType, provider)
	return !loaded
}

func (r *Registry) GetProvider(sourceType string) (SourceProvider, error) {
	p, ok := r.providers.Load(sourceType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, sourceType)
	}
	return p, nil
}

// NewSource picks the right provider based on the "type" field of raw.
// All expected source types should be registered with [Registry.Register]
// before calling this function.
func (r *Registry) NewSource(raw []byte) (memvfs.ContentSource, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	p, err := r.GetProvider(meta.Type)
	if err != nil {
		return nil, err
	}
	return p.NewSource(raw)
}
