package domain

import (
	"sort"
	"strings"
)

// validChars is the set of characters accepted by the collection endpoint in
// tag keys and values. Anything else is replaced with '_'.
const validChars = "-._ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var valid [256]bool

func init() {
	for i := 0; i < len(validChars); i++ {
		valid[validChars[i]] = true
	}
}

// Sanitize replaces every character outside [-._A-Za-z0-9] with '_'.
// Multi-byte runes become a single '_'.
func Sanitize(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if !valid[s[i]] {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 256 && valid[byte(r)] {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Tag is a key/value pair.
type Tag struct {
	Key   string
	Value string
}

// TagList is an ordered list of tags. Later entries win on duplicate keys
// when converted to a map.
type TagList []Tag

// TagListFromMap builds a TagList sorted by key so payloads are deterministic.
func TagListFromMap(m map[string]string) TagList {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tl := make(TagList, 0, len(keys))
	for _, k := range keys {
		tl = append(tl, Tag{Key: k, Value: m[k]})
	}
	return tl
}

// Sanitized returns the tags as a map with keys and values passed through Sanitize.
func (tl TagList) Sanitized() map[string]string {
	out := make(map[string]string, len(tl))
	for _, t := range tl {
		out[Sanitize(t.Key)] = Sanitize(t.Value)
	}
	return out
}
