package pathtext

import (
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		path []byte
		want string
	}{
		{name: "empty", path: nil, want: ""},
		{name: "ascii", path: []byte{0x68, 0x69}, want: "hi"},
		{name: "truncated currency sign", path: []byte{0xE2, 0x82}, want: "[0xE2, 0x82]"},
		{name: "text then truncated", path: []byte{0x68, 0xE2, 0x82}, want: "h[0xE2, 0x82]"},
		{name: "complete euro sign", path: []byte{0xE2, 0x82, 0xAC}, want: "€"},
		{name: "accented word", path: []byte("café"), want: "café"},
		{name: "lone continuation byte", path: []byte{0x80}, want: "[0x80]"},
		{name: "invalid byte in the middle stays decoded", path: []byte{0x61, 0xFF, 0x62}, want: "a�b"},
		{name: "truncated four byte sequence", path: []byte{0x61, 0xF0, 0x9F, 0x98}, want: "a[0xF0, 0x9F, 0x98]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.path))
		})
	}
}

func TestRender_ValidNeverDecorated(t *testing.T) {
	for _, s := range []string{"", "a", "hello world", "日本語", "naïve", "🙂"} {
		assert.Equal(t, s, Render([]byte(s)), s)
	}
}

func TestRender_PrefixesOfMultiByteText(t *testing.T) {
	word := []byte("a€🙂")
	for i := 0; i <= len(word); i++ {
		path := word[:i]
		label := Render(path)

		prefix, tail, decorated := SplitRendered(label)
		if !decorated {
			assert.True(t, utf8.Valid(path))
			assert.Equal(t, string(path), label)
			continue
		}
		assert.Equal(t, path, append([]byte(prefix), tail...), "path %x", path)
	}
}

func TestRender_TailRecoversRawBytes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		path := make([]byte, rng.Intn(12))
		rng.Read(path)

		decoded := Decode(path)
		k := 0
		for s := decoded; len(s) > 0; {
			r, size := utf8.DecodeLastRuneInString(s)
			if r != Placeholder {
				break
			}
			k++
			s = s[:len(s)-size]
		}

		label := Render(path)
		if k == 0 {
			assert.Equal(t, decoded, label)
			continue
		}

		open := strings.LastIndex(label, "[0x")
		require.GreaterOrEqual(t, open, 0, label)
		tail, err := ParseHexList(label[open:])
		require.NoError(t, err)
		assert.Equal(t, path[len(path)-k:], tail)
	}
}

func TestHexList(t *testing.T) {
	assert.Equal(t, "[]", HexList(nil))
	assert.Equal(t, "[0x00, 0x0A, 0xFF]", HexList([]byte{0, 10, 255}))

	b, err := ParseHexList("[0x00, 0x0A, 0xFF]")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 10, 255}, b)

	for _, bad := range []string{"0x01", "[0x1]", "[0xZZ]", "[0x01,0x02]"} {
		_, err := ParseHexList(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecode_OnePlaceholderPerInvalidByte(t *testing.T) {
	assert.Equal(t, "��", Decode([]byte{0xE2, 0x82}))
	assert.Equal(t, 3, utf8.RuneCountInString(Decode([]byte{0xFF, 0xFE, 0xFD})))
}
