package filesystem

import (
	"io"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNode_InvalidName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "a/b", "/", "foo/"} {
		t.Run("File "+name, func(t *testing.T) {
			f, err := NewFile(name, nil)
			assert.Nil(t, f)
			var nameErr *InvalidNameError
			require.ErrorAs(t, err, &nameErr)
			assert.Equal(t, name, nameErr.Name)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
		t.Run("Directory "+name, func(t *testing.T) {
			d, err := NewDirectory(name)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestNode_AppliesTo(t *testing.T) {
	t.Parallel()

	d, err := NewDirectory("foo")
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"foo", true},
		{"foo/bar", true},
		{"foo/bar/baz", true},
		{"foobar", false},
		{"fo", false},
		{"bar/foo", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.AppliesTo(tt.path), "path %q", tt.path)
	}
}

func TestNode_Rename(t *testing.T) {
	t.Parallel()

	root, err := NewDirectory("root")
	require.NoError(t, err)
	a := mustFile(t, "a", "1")
	b, err := NewDirectory("b")
	require.NoError(t, err)
	c := mustFile(t, "c", "3")
	root.AddChild(a)
	root.AddChild(b)
	root.AddChild(c)

	t.Run("InvalidName", func(t *testing.T) {
		for _, n := range []Node{a, b} {
			err := n.Rename("a/b")
			var nameErr *InvalidNameError
			require.ErrorAs(t, err, &nameErr)
		}
		assert.Equal(t, "a", a.Name())
		assert.Equal(t, "b", b.Name())
	})

	t.Run("KeepsParentAndOrder", func(t *testing.T) {
		require.NoError(t, b.Rename("z"))
		assert.Equal(t, "z", b.Name())
		assert.Same(t, root, b.Parent())
		assert.Equal(t, []string{"a", "z", "c"}, names(root.Children()))
		assert.Equal(t, "root/z", b.Path())
	})
}

func TestNode_Path(t *testing.T) {
	t.Parallel()

	_, leaf, err := NewDirectoryChain("/a/b/c")
	require.NoError(t, err)
	f := mustFile(t, "f.txt", "")
	leaf.AddChild(f)

	assert.Equal(t, "a/b/c/f.txt", f.Path())
	assert.Equal(t, "a/b/c", leaf.Path())
}

func TestNode_ParentIsWeak(t *testing.T) {
	f := mustFile(t, "orphan", "x")
	func() {
		d, err := NewDirectory("tmp")
		require.NoError(t, err)
		d.AddChild(f)
		require.NotNil(t, f.Parent())
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return f.Parent() == nil
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "orphan", f.Path())
}

func TestNode_Metadata(t *testing.T) {
	t.Parallel()

	f := mustFile(t, "meta", "data")
	ts := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	f.SetModTime(ts)
	f.SetAccessTime(ts.Add(time.Hour))
	f.SetCreateTime(ts.Add(-time.Hour))
	f.SetPerm(0o100640)
	f.SetOwner(1000, 100)

	st := f.Stat()
	assert.Equal(t, f.ID(), st.ID)
	assert.Equal(t, "meta", st.Name)
	assert.Equal(t, FileType, st.Type)
	assert.False(t, st.IsDir())
	assert.EqualValues(t, 4, st.Size)
	assert.Equal(t, uint32(0o640), st.Perm)
	assert.Equal(t, uint32(1000), st.UID)
	assert.Equal(t, uint32(100), st.GID)
	assert.Equal(t, ts, st.ModTime)
	assert.Equal(t, ts.Add(time.Hour), st.AccessTime)
	assert.Equal(t, ts.Add(-time.Hour), st.CreateTime)
	assert.Equal(t, "file", FileType.String())
	assert.Equal(t, "dir", DirType.String())
}

func TestFile_Content(t *testing.T) {
	t.Parallel()

	src := []byte("hello")
	f, err := NewFile("greeting", src)
	require.NoError(t, err)
	src[0] = 'j'
	assert.Equal(t, []byte("hello"), f.Content())

	out := f.Content()
	out[0] = 'y'
	assert.Equal(t, []byte("hello"), f.Content())

	before := f.ModTime()
	f.SetContent([]byte("hi"))
	assert.EqualValues(t, 2, f.Size())
	assert.Equal(t, before, f.ModTime())
}

func TestFile_ReadWriteAt(t *testing.T) {
	t.Parallel()

	f := mustFile(t, "rw", "abcdef")

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "bcde", string(buf))

	n, err = f.ReadAt(buf, 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "ef", string(buf[:n]))

	_, err = f.ReadAt(buf, 6)
	assert.ErrorIs(t, err, io.EOF)

	_, err = f.ReadAt(buf, -1)
	assert.Error(t, err)

	n, err = f.WriteAt([]byte("XY"), 8)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("abcdef\x00\x00XY"), f.Content())

	_, err = f.WriteAt([]byte("Z"), 0)
	require.NoError(t, err)
	assert.Equal(t, byte('Z'), f.Content()[0])

	_, err = f.WriteAt([]byte("Z"), -2)
	assert.Error(t, err)
}

func TestFile_Truncate(t *testing.T) {
	t.Parallel()

	f := mustFile(t, "t", "abcdef")
	require.NoError(t, f.Truncate(3))
	assert.Equal(t, "abc", string(f.Content()))
	require.NoError(t, f.Truncate(5))
	assert.Equal(t, []byte("abc\x00\x00"), f.Content())
	require.NoError(t, f.Truncate(0))
	assert.EqualValues(t, 0, f.Size())
	assert.Error(t, f.Truncate(-1))
}

// mustFile creates a detached file holding content
func mustFile(t *testing.T, name, content string) *File {
	t.Helper()
	f, err := NewFile(name, []byte(content))
	require.NoError(t, err)
	return f
}

func names(nodes []Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}
