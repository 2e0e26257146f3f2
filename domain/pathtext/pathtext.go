// Package pathtext turns raw trie paths into display labels.
//
// Trie depth is counted in bytes, so a path regularly stops in the middle of
// a multi-byte UTF-8 sequence. Render keeps every byte visible: whatever the
// lenient decoder could not turn into characters at the end of the path is
// appended as a bracketed hexadecimal list.
package pathtext

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Placeholder is the glyph substituted for each byte that does not start a
// complete UTF-8 sequence.
const Placeholder = utf8.RuneError

// Decode decodes path as UTF-8, substituting one Placeholder per invalid or
// truncated byte.
func Decode(path []byte) string {
	var sb strings.Builder
	sb.Grow(len(path))
	for len(path) > 0 {
		r, size := utf8.DecodeRune(path)
		sb.WriteRune(r)
		path = path[size:]
	}
	return sb.String()
}

// Render decodes path and replaces its trailing placeholders with the hex
// list of the same number of trailing raw bytes.
//
// A Placeholder genuinely present in the data (EF BF BD) at the end of the
// path is counted like a substituted one.
func Render(path []byte) string {
	text := Decode(path)

	k := 0
	end := len(text)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:end])
		if r != Placeholder {
			break
		}
		k++
		end -= size
	}
	if k == 0 {
		return text
	}
	return text[:end] + HexList(path[len(path)-k:])
}

// HexList formats bytes as "[0xE2, 0x82]".
func HexList(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, c := range b {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "0x%02X", c)
	}
	sb.WriteByte(']')
	return sb.String()
}

// ParseHexList is the inverse of HexList.
func ParseHexList(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("pathtext: %q is not a bracketed list", s)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []byte{}, nil
	}

	parts := strings.Split(body, ", ")
	out := make([]byte, 0, len(parts))
	for _, p := range parts {
		if !strings.HasPrefix(p, "0x") || len(p) != 4 {
			return nil, fmt.Errorf("pathtext: bad byte %q", p)
		}
		v, err := strconv.ParseUint(p[2:], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("pathtext: bad byte %q: %w", p, err)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// SplitRendered separates a rendered label into its decoded prefix and the
// raw bytes of its hex suffix, if any.
func SplitRendered(label string) (prefix string, tail []byte, ok bool) {
	if !strings.HasSuffix(label, "]") {
		return label, nil, false
	}
	open := strings.LastIndex(label, "[0x")
	if open < 0 {
		return label, nil, false
	}
	tail, err := ParseHexList(label[open:])
	if err != nil {
		return label, nil, false
	}
	return label[:open], tail, true
}
