// Package mscz opens and saves MuseScore documents.
//
// A compressed document (.mscz) is a zip container holding one score entry
// (.mscx) and opaque assets such as pictures and thumbnails. An uncompressed
// document (.mscx) is the score alone. Only the score entry is ever
// re-serialized; every other entry is written back with its stored bytes.
package mscz

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antchfx/xpath"
	"github.com/zeebo/blake3"

	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/core/score"
	"github.com/diedeno/mscz-concatenator/core/xml"
	"github.com/diedeno/mscz-concatenator/internal/archive"
	"github.com/diedeno/mscz-concatenator/internal/validation"
)

// File extensions.
const (
	ExtCompressed = ".mscz"
	ExtPlain      = ".mscx"
)

// ManifestEntry names the container manifest written by MuseScore 4.
const ManifestEntry = "META-INF/container.xml"

// PicturesPrefix is the entry prefix of embedded pictures.
const PicturesPrefix = "Pictures/"

var rootfileExpr = xpath.MustCompile("//rootfile")

// Document is an opened score document.
type Document struct {
	path       string
	compressed bool
	archive    *archive.Archive
	scoreEntry string
	digests    map[string]string
	tree       *score.Score
}

// IsCompressed reports whether path names a compressed document.
func IsCompressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ExtCompressed)
}

// IsPlain reports whether path names an uncompressed document.
func IsPlain(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ExtPlain)
}

// Open reads the document at path fully into memory.
func Open(path string) (*Document, error) {
	switch {
	case IsCompressed(path):
		return openCompressed(path)
	case IsPlain(path):
		return openPlain(path)
	}
	return nil, &errors.MergeError{
		Kind:   errors.KindUsage,
		Path:   path,
		Reason: "unsupported file type",
		Err:    errors.ErrUnsupported,
	}
}

func openPlain(path string) (*Document, error) {
	if err := validation.CheckFileSize(path); err != nil {
		return nil, errors.AsIO(path, errors.NewIO("open", path, err))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AsIO(path, errors.NewIO("read", path, err))
	}
	tree, err := score.Parse(data)
	if err != nil {
		return nil, errors.AsIO(path, &errors.ParseError{Format: "mscx", Path: path, Message: err.Error(), Err: err})
	}
	return &Document{path: path, tree: tree, digests: map[string]string{}}, nil
}

func openCompressed(path string) (*Document, error) {
	if err := validation.CheckFileSize(path); err != nil {
		return nil, errors.AsIO(path, errors.NewIO("open", path, err))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AsIO(path, errors.NewIO("read", path, err))
	}
	if _, err := validation.ValidateFileType(bytes.NewReader(data), path); err != nil {
		return nil, errors.AsIO(path, &errors.ParseError{Format: "mscz", Path: path, Message: err.Error(), Err: err})
	}
	return Load(path, data)
}

// Load builds a compressed document from container bytes. The path is used
// for Save and error messages only.
func Load(path string, data []byte) (*Document, error) {
	a, err := archive.Read(data)
	if err != nil {
		return nil, errors.AsIO(path, errors.NewIO("open", path, err))
	}
	return fromArchive(path, a)
}

func fromArchive(path string, a *archive.Archive) (*Document, error) {
	entry, err := scoreEntry(a)
	if err != nil {
		return nil, errors.AsIO(path, err)
	}
	data, err := a.Find(entry).Content()
	if err != nil {
		return nil, errors.AsIO(path, errors.NewIO("read", entry, err))
	}
	tree, err := score.Parse(data)
	if err != nil {
		return nil, errors.AsIO(path, &errors.ParseError{Format: "mscx", Path: entry, Message: err.Error(), Err: err})
	}

	d := &Document{
		path:       path,
		compressed: true,
		archive:    a,
		scoreEntry: entry,
		digests:    make(map[string]string, len(a.Entries)),
		tree:       tree,
	}
	for _, e := range a.Entries {
		sum, err := digest(e)
		if err != nil {
			return nil, errors.AsIO(path, err)
		}
		d.digests[e.Name()] = sum
	}
	return d, nil
}

// scoreEntry picks the manifest rootfile when it names an .mscx entry, else
// the first .mscx entry in archive order.
func scoreEntry(a *archive.Archive) (string, error) {
	if m := a.Find(ManifestEntry); m != nil {
		if data, err := m.Content(); err == nil {
			if doc, err := xml.Parse(data); err == nil {
				for _, rf := range xml.Select(doc.Node(), rootfileExpr) {
					name := xml.Attr(rf, "full-path")
					if IsPlain(name) && a.Find(name) != nil {
						return name, nil
					}
				}
			}
		}
	}
	for _, e := range a.Entries {
		if !e.IsDir() && IsPlain(e.Name()) {
			return e.Name(), nil
		}
	}
	return "", &errors.ParseError{Format: "mscz", Message: "no .mscx entry", Err: errors.ErrNoDocumentEntry}
}

func digest(e *archive.Entry) (string, error) {
	raw, err := e.Raw()
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Path returns the path the document was opened from or last saved to.
func (d *Document) Path() string { return d.path }

// IsCompressed reports whether the document is a zip container.
func (d *Document) IsCompressed() bool { return d.compressed }

// Tree returns the mutable score tree.
func (d *Document) Tree() *score.Score { return d.tree }

// ScoreEntry returns the container entry holding the score.
func (d *Document) ScoreEntry() string { return d.scoreEntry }

// Entries returns every entry name in archive order.
func (d *Document) Entries() []string {
	if d.archive == nil {
		return nil
	}
	return d.archive.Names()
}

// HasAsset reports whether the container holds an entry called name.
func (d *Document) HasAsset(name string) bool {
	return d.archive != nil && d.archive.Find(name) != nil
}

// AssetNames returns the non-directory entries starting with prefix, sorted.
// The score entry is never an asset.
func (d *Document) AssetNames(prefix string) []string {
	if d.archive == nil {
		return nil
	}
	var names []string
	for _, e := range d.archive.Entries {
		if e.IsDir() || e.Name() == d.scoreEntry {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Asset returns the decompressed content of an entry.
func (d *Document) Asset(name string) ([]byte, error) {
	if d.archive == nil {
		return nil, errors.NewNotFound("entry", name)
	}
	e := d.archive.Find(name)
	if e == nil {
		return nil, errors.NewNotFound("entry", name)
	}
	return e.Content()
}

// AssetSize returns the uncompressed size of an entry.
func (d *Document) AssetSize(name string) uint64 {
	if d.archive == nil {
		return 0
	}
	if e := d.archive.Find(name); e != nil {
		return e.Header.UncompressedSize64
	}
	return 0
}

// AppendAsset adds a new entry. Existing entries are never overwritten.
func (d *Document) AppendAsset(name string, data []byte) error {
	if !d.compressed {
		return errors.NewUnsupported("assets", "uncompressed documents hold no assets")
	}
	if err := d.archive.Add(archive.NewEntry(name, data)); err != nil {
		return errors.NewValidation("asset", err.Error())
	}
	return nil
}

// CopyRawAsset copies the entry called name from src with its stored bytes
// and header untouched.
func (d *Document) CopyRawAsset(src *Document, name string) error {
	if !d.compressed || !src.compressed {
		return errors.NewUnsupported("assets", "uncompressed documents hold no assets")
	}
	e := src.archive.Find(name)
	if e == nil {
		return errors.NewNotFound("entry", name)
	}
	if err := d.archive.Add(e.Clone()); err != nil {
		return errors.NewValidation("asset", err.Error())
	}
	if sum, ok := src.digests[name]; ok {
		d.digests[name] = sum
	}
	return nil
}

// Digest returns the BLAKE3 digest of an entry's stored bytes taken when the
// entry entered the document. Entries added with AppendAsset have none.
func (d *Document) Digest(name string) string {
	return d.digests[name]
}

// Save writes the document back to its path.
func (d *Document) Save() error {
	return d.write(d.path)
}

// SaveAs writes the document to path and makes it the document's path.
// Converting between compressed and uncompressed forms is rejected.
func (d *Document) SaveAs(path string) error {
	if d.compressed != IsCompressed(path) || (!d.compressed && !IsPlain(path)) {
		return &errors.MergeError{
			Kind:   errors.KindUsage,
			Path:   path,
			Reason: fmt.Sprintf("cannot save %s document as %s", d.form(), filepath.Ext(path)),
			Err:    errors.ErrUnsupported,
		}
	}
	if err := d.write(path); err != nil {
		return err
	}
	d.path = path
	return nil
}

func (d *Document) form() string {
	if d.compressed {
		return ExtCompressed
	}
	return ExtPlain
}

// WriteTo encodes the document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if !d.compressed {
		_, err := cw.Write(d.tree.Serialize())
		return cw.n, err
	}
	if err := d.verify(); err != nil {
		return 0, err
	}
	if err := d.archive.Replace(d.scoreEntry, d.tree.Serialize()); err != nil {
		return 0, errors.NewInternal(err.Error())
	}
	err := d.archive.Write(cw)
	return cw.n, err
}

func (d *Document) write(path string) error {
	err := archive.WriteAtomic(path, func(w io.Writer) error {
		_, err := d.WriteTo(w)
		return err
	})
	return errors.AsIO(path, err)
}

// verify re-hashes every raw entry and compares it with the digest taken
// when it entered the document.
func (d *Document) verify() error {
	for _, e := range d.archive.Entries {
		if !e.IsRaw() || e.Name() == d.scoreEntry {
			continue
		}
		want, ok := d.digests[e.Name()]
		if !ok {
			continue
		}
		got, err := digest(e)
		if err != nil {
			return err
		}
		if got != want {
			return errors.NewInternal(fmt.Sprintf("entry %s changed since open", e.Name()))
		}
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// FileDigest returns the BLAKE3 digest of a file on disk.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
