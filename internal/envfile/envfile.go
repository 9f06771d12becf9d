// Package envfile reads and writes the per-instance key=value
// configuration file (".env"). The file is operator-editable, so the
// round-trip preserves key order, comments and blank lines; only the
// values nodectl changes are touched.
package envfile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// line is one physical line of the file. Key is empty for comments,
// blank lines and anything else that is not KEY=VALUE; such lines are
// carried through verbatim in raw.
type line struct {
	key   string
	value string
	raw   string
}

// File is an ordered key=value document.
type File struct {
	lines []line
	index map[string]int // key -> last position in lines
}

// New returns an empty File.
func New() *File {
	return &File{index: make(map[string]int)}
}

// Parse reads an env document. Lines that are not KEY=VALUE (comments,
// blanks, malformed fragments) are preserved as-is and round-trip
// unchanged. For duplicate keys the last occurrence wins.
func Parse(data []byte) *File {
	f := New()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		text := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || !strings.Contains(text, "=") {
			f.lines = append(f.lines, line{raw: text})
			continue
		}
		key, value, _ := strings.Cut(text, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			f.lines = append(f.lines, line{raw: text})
			continue
		}
		f.lines = append(f.lines, line{key: key, value: value})
		f.index[key] = len(f.lines) - 1
	}
	return f
}

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return Parse(data), nil
}

// Get returns the value for key and whether the key is present.
func (f *File) Get(key string) (string, bool) {
	i, ok := f.index[key]
	if !ok {
		return "", false
	}
	return f.lines[i].value, true
}

// GetInt returns the integer value for key. Missing or non-numeric
// values report ok=false.
func (f *File) GetInt(key string) (int, bool) {
	v, ok := f.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set updates the value for key in place, or appends the key at the end
// when it is new.
func (f *File) Set(key, value string) {
	if i, ok := f.index[key]; ok {
		f.lines[i].value = value
		return
	}
	f.lines = append(f.lines, line{key: key, value: value})
	f.index[key] = len(f.lines) - 1
}

// SetInt is Set for integer values.
func (f *File) SetInt(key string, value int) {
	f.Set(key, strconv.Itoa(value))
}

// Unset removes key and its line. Removing an absent key is a no-op.
func (f *File) Unset(key string) {
	i, ok := f.index[key]
	if !ok {
		return
	}
	f.lines = append(f.lines[:i], f.lines[i+1:]...)
	delete(f.index, key)
	for k, pos := range f.index {
		if pos > i {
			f.index[k] = pos - 1
		}
	}
}

// Keys returns every key in declaration order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.index))
	for _, l := range f.lines {
		if l.key != "" {
			keys = append(keys, l.key)
		}
	}
	return keys
}

// Encode renders the document, preserving original line order and any
// non key=value lines.
func (f *File) Encode() []byte {
	var buf bytes.Buffer
	for _, l := range f.lines {
		if l.key == "" {
			buf.WriteString(l.raw)
		} else {
			buf.WriteString(l.key)
			buf.WriteByte('=')
			buf.WriteString(l.value)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Save writes the document to path.
func (f *File) Save(path string) error {
	if err := os.WriteFile(path, f.Encode(), 0o644); err != nil {
		return fmt.Errorf("writing env file: %w", err)
	}
	return nil
}
