package filesystem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	t.Parallel()

	foo, _, _, _ := newFixture(t)

	var visited []string
	var depths []int
	err := Walk(foo, func(n Node, depth int) error {
		visited = append(visited, n.Path())
		depths = append(depths, depth)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "foo/bar", "foo/bar/baz1", "foo/baz2"}, visited)
	assert.Equal(t, []int{0, 1, 2, 1}, depths)
}

func TestWalk_SkipDir(t *testing.T) {
	t.Parallel()

	foo, _, _, _ := newFixture(t)

	var visited []string
	err := Walk(foo, func(n Node, _ int) error {
		visited = append(visited, n.Name())
		if n.Name() == "bar" {
			return SkipDir
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar", "baz2"}, visited)
}

func TestWalk_Error(t *testing.T) {
	t.Parallel()

	foo, _, _, _ := newFixture(t)
	boom := errors.New("boom")
	count := 0
	err := Walk(foo, func(n Node, _ int) error {
		count++
		if n.Name() == "baz1" {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, count)
}
