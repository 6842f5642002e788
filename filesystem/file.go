package filesystem

import (
	"errors"
	"io"
)

// DefaultFilePerm is the permission set given by [NewFile]
const DefaultFilePerm uint32 = 0o644

// File is a leaf node that owns a byte buffer.
type File struct {
	content
	data []byte
}

var _ Node = (*File)(nil)

// NewFile creates a detached file holding a copy of data.
// Fails with an *InvalidNameError when name is empty or contains "/".
func NewFile(name string, data []byte) (*File, error) {
	c, err := newContent(name, FileType, DefaultFilePerm)
	if err != nil {
		return nil, err
	}
	f := &File{content: c}
	f.SetContent(data)
	return f, nil
}

func (f *File) Size() int64 {
	return int64(len(f.data))
}

func (f *File) Stat() Stat {
	return f.stat(f.Size())
}

// Content returns a copy of the file's bytes
func (f *File) Content() []byte {
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

// SetContent replaces the buffer with a copy of data.
// Timestamps are left alone; see [Tree.WriteFile] for the touching variant.
func (f *File) SetContent(data []byte) {
	f.data = append(f.data[:0:0], data...)
}

// ReadAt implements io.ReaderAt over the buffer
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, growing the buffer (zero filled) as needed
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	end := off + int64(len(p))
	if end > int64(len(f.data)) {
		f.grow(end)
	}
	return copy(f.data[off:], p), nil
}

// Truncate changes the size of the buffer, zero filling when it grows
func (f *File) Truncate(size int64) error {
	if size < 0 {
		return errors.New("negative size")
	}
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
		return nil
	}
	f.grow(size)
	return nil
}

func (f *File) grow(size int64) {
	if size <= int64(cap(f.data)) {
		old := len(f.data)
		f.data = f.data[:size]
		clear(f.data[old:])
		return
	}
	buf := make([]byte, size)
	copy(buf, f.data)
	f.data = buf
}
