// Package archive provides buffered reading and raw rewriting of zip
// containers. Entries keep their stored (compressed) bytes so that members
// nobody touched are written back bit-identical.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one member of a buffered container.
//
// An entry read from disk wraps the original zip member and is copied raw on
// write. An entry built with NewEntry carries uncompressed data and is
// compressed on write.
type Entry struct {
	Header zip.FileHeader

	file *zip.File
	data []byte
}

// NewEntry creates an entry holding data, deflated on write.
func NewEntry(name string, data []byte) *Entry {
	return &Entry{
		Header: zip.FileHeader{
			Name:   name,
			Method: zip.Deflate,
		},
		data: data,
	}
}

// Name returns the entry path inside the container.
func (e *Entry) Name() string {
	return e.Header.Name
}

// IsDir reports whether the entry is a directory marker.
func (e *Entry) IsDir() bool {
	return strings.HasSuffix(e.Header.Name, "/")
}

// IsRaw reports whether the entry still holds its stored bytes.
func (e *Entry) IsRaw() bool {
	return e.file != nil
}

// Raw returns the entry bytes exactly as stored in the container. For
// entries built with NewEntry it returns the uncompressed data.
func (e *Entry) Raw() ([]byte, error) {
	if e.file == nil {
		return e.data, nil
	}
	rc, err := e.file.OpenRaw()
	if err != nil {
		return nil, fmt.Errorf("open raw %s: %w", e.Header.Name, err)
	}
	return io.ReadAll(rc)
}

// Content returns the decompressed entry bytes.
func (e *Entry) Content() ([]byte, error) {
	if e.file == nil {
		return e.data, nil
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", e.Header.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.Header.Name, err)
	}
	return data, nil
}

// Clone returns a copy of e that shares the underlying stored bytes.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// Archive is a fully buffered container.
type Archive struct {
	Entries []*Entry
	Comment string
}

// Read buffers every member of the zip data.
func Read(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("zip reader: %w", err)
	}
	a := &Archive{Comment: zr.Comment}
	for _, f := range zr.File {
		a.Entries = append(a.Entries, &Entry{Header: f.FileHeader, file: f})
	}
	return a, nil
}

// ReadFile loads the container at path into memory and closes the file.
func ReadFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return Read(data)
}

// Find returns the entry called name, or nil.
func (a *Archive) Find(name string) *Entry {
	for _, e := range a.Entries {
		if e.Header.Name == name {
			return e
		}
	}
	return nil
}

// Names returns the entry names in archive order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.Entries))
	for _, e := range a.Entries {
		names = append(names, e.Header.Name)
	}
	return names
}

// Add appends an entry. Adding a name that already exists is an error.
func (a *Archive) Add(e *Entry) error {
	if a.Find(e.Header.Name) != nil {
		return fmt.Errorf("duplicate entry: %s", e.Header.Name)
	}
	a.Entries = append(a.Entries, e)
	return nil
}

// Replace swaps the entry called name for one holding data, keeping its
// position and compression method.
func (a *Archive) Replace(name string, data []byte) error {
	for i, e := range a.Entries {
		if e.Header.Name != name {
			continue
		}
		fresh := NewEntry(name, data)
		fresh.Header.Method = e.Header.Method
		fresh.Header.Modified = e.Header.Modified
		fresh.Header.Comment = e.Header.Comment
		fresh.Header.Extra = e.Header.Extra
		a.Entries[i] = fresh
		return nil
	}
	return fmt.Errorf("file not found: %s", name)
}
