package vpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DropsEmptyComponents(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
		str  string
	}{
		{"", nil, ""},
		{"/", nil, "/"},
		{"a", []string{"a"}, "a"},
		{"/a/b/c.txt", []string{"a", "b", "c.txt"}, "/a/b/c.txt"},
		{"//a//b/", []string{"a", "b"}, "/a/b"},
		{"a/b", []string{"a", "b"}, "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Components())
			assert.Equal(t, tt.str, p.String())
		})
	}
}

func TestParse_RejectsRelativeComponents(t *testing.T) {
	for _, raw := range []string{"a/../b", "./a", "/a/."} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidPath, raw)
	}
}

func TestPath_LeafAndDir(t *testing.T) {
	p := MustParse("/a/b/c.txt")
	assert.Equal(t, "c.txt", p.Leaf())
	assert.Equal(t, []string{"a", "b"}, p.Dir())

	single := MustParse("c.txt")
	assert.Equal(t, "c.txt", single.Leaf())
	assert.Nil(t, single.Dir())

	assert.Equal(t, "", MustParse("").Leaf())
}

func TestPath_IsDir(t *testing.T) {
	assert.True(t, MustParse("").IsDir())
	assert.True(t, MustParse("/").IsDir())
	assert.True(t, MustParse("/docs/").IsDir())
	assert.False(t, MustParse("/docs").IsDir())
}

func TestPath_JoinDoesNotAlias(t *testing.T) {
	base := MustParse("/a/b")
	x := base.Join("x")
	y := base.Join("y")

	assert.Equal(t, "/a/b/x", x.String())
	assert.Equal(t, "/a/b/y", y.String())
	assert.Equal(t, "/a/b", base.String())
}

func TestPath_ComponentsReturnsCopy(t *testing.T) {
	p := MustParse("a/b")
	c := p.Components()
	c[0] = "z"

	assert.Equal(t, "a/b", p.String())
}

func TestPath_NormalizesToNFC(t *testing.T) {
	p := MustParse("/cafe\u0301/re\u0301sume\u0301.txt")
	assert.Equal(t, []string{"caf\u00e9", "r\u00e9sum\u00e9.txt"}, p.Components())

	joined := MustParse("/docs").Join("cafe\u0301.txt")
	assert.Equal(t, "caf\u00e9.txt", joined.Leaf())
	assert.Equal(t, "caf\u00e9", Normalize("cafe\u0301"))
}

func TestExt(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		ok   bool
	}{
		{"photo.png", ".png", true},
		{"/home/u/archive.tar.gz", ".gz", true},
		{".bashrc", ".bashrc", true},
		{"Makefile", "", false},
		{"dir.d/Makefile", "", false},
		{"trailing.", ".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, ok := Ext(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestBase(t *testing.T) {
	assert.Equal(t, "c.txt", Base("/a/b/c.txt"))
	assert.Equal(t, "b", Base("a/b/"))
	assert.Equal(t, "x", Base("x"))
}
