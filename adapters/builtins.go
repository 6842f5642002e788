package adapters

// NOTE: If build bloat becomes a concern for unused sources
// look into build tags i.e. +build !nohttp

type BuiltInSourceType = string

const (
	InlineSourceType BuiltInSourceType = "inline"
	Base64SourceType BuiltInSourceType = "base64"
	FileSourceType   BuiltInSourceType = "file"
	HTTPSourceType   BuiltInSourceType = "http"
)

// RegisterBuiltins registers all built-in sources by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, sources ...BuiltInSourceType) {
	if len(sources) == 0 {
		sources = []BuiltInSourceType{InlineSourceType, Base64SourceType, FileSourceType, HTTPSourceType}
	}

	for _, key := range sources {
		switch key {
		case InlineSourceType:
			r.Register(InlineSourceType, ProviderFunc(newInlineSource))
		case Base64SourceType:
			r.Register(Base64SourceType, ProviderFunc(newBase64Source))
		case FileSourceType:
			r.Register(FileSourceType, ProviderFunc(newFileSource))
		case HTTPSourceType:
			RegisterHTTP(r)
		}
	}
}

// NewBuiltinRegistry returns a registry holding every built-in source
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}
