package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/brettbedarf/memvfs"
)

// InlineSource holds literal text
type InlineSource struct {
	Text string `json:"text"`
}

func newInlineSource(raw []byte) (memvfs.ContentSource, error) {
	var s InlineSource
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *InlineSource) Content(context.Context) ([]byte, error) {
	return []byte(s.Text), nil
}

// Base64Source holds standard base64 encoded bytes
type Base64Source struct {
	Data string `json:"data"`
}

func newBase64Source(raw []byte) (memvfs.ContentSource, error) {
	var s Base64Source
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if _, err := base64.StdEncoding.DecodeString(s.Data); err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return &s, nil
}

func (s *Base64Source) Content(context.Context) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s.Data)
}

// FileSource copies a file from the host filesystem when the node is created
type FileSource struct {
	Path string `json:"path"`
}

func newFileSource(raw []byte) (memvfs.ContentSource, error) {
	var s FileSource
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s.Path == "" {
		return nil, errors.New("file source requires a path")
	}
	return &s, nil
}

func (s *FileSource) Content(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path)
}
