package archive

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFile_RoundTripsRawEntries(t *testing.T) {
	tempDir := t.TempDir()
	src := createTestZip(t, tempDir)

	a, err := ReadFile(src)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	before := map[string][]byte{}
	for _, e := range a.Entries {
		raw, err := e.Raw()
		if err != nil {
			t.Fatalf("Raw(%s): %v", e.Name(), err)
		}
		before[e.Name()] = raw
	}

	dst := filepath.Join(tempDir, "out.mscz")
	if err := a.WriteFile(dst); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b, err := ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile(out): %v", err)
	}
	if b.Comment != a.Comment {
		t.Errorf("Comment = %q, want %q", b.Comment, a.Comment)
	}
	for _, e := range b.Entries {
		raw, err := e.Raw()
		if err != nil {
			t.Fatalf("Raw(%s): %v", e.Name(), err)
		}
		if !bytes.Equal(raw, before[e.Name()]) {
			t.Errorf("entry %s changed on round trip", e.Name())
		}
		orig := a.Find(e.Name())
		if e.Header.CRC32 != orig.Header.CRC32 {
			t.Errorf("entry %s CRC changed", e.Name())
		}
	}
}

func TestWriteFile_FreshEntries(t *testing.T) {
	tempDir := t.TempDir()
	a, err := ReadFile(createTestZip(t, tempDir))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := a.Replace("score.mscx", []byte("<museScore>changed</museScore>")); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := a.Add(NewEntry("Pictures/added.png", []byte("added"))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	dst := filepath.Join(tempDir, "out.mscz")
	if err := a.WriteFile(dst); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile(out): %v", err)
	}
	for name, want := range map[string]string{
		"score.mscx":         "<museScore>changed</museScore>",
		"Pictures/added.png": "added",
		"Pictures/logo.png":  "\x89PNG fake",
	} {
		e := b.Find(name)
		if e == nil {
			t.Errorf("missing entry %s", name)
			continue
		}
		got, err := e.Content()
		if err != nil {
			t.Fatalf("Content(%s): %v", name, err)
		}
		if string(got) != want {
			t.Errorf("Content(%s) = %q, want %q", name, got, want)
		}
	}
}

func TestWriteAtomic_FailureLeavesNoOutput(t *testing.T) {
	tempDir := t.TempDir()
	dst := filepath.Join(tempDir, "out.mscz")
	boom := errors.New("fill failed")

	err := WriteAtomic(dst, func(w io.Writer) error {
		w.Write([]byte("partial"))
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WriteAtomic() error = %v, want %v", err, boom)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("destination should not exist after a failed write")
	}
	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("temp file left behind: %v", entries)
	}
}

func TestWriteAtomic_ReplacesExisting(t *testing.T) {
	tempDir := t.TempDir()
	dst := filepath.Join(tempDir, "out.mscz")
	if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := WriteAtomic(dst, func(w io.Writer) error {
		_, err := w.Write([]byte("new"))
		return err
	})
	if err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "new" {
		t.Errorf("content = %q, want new", got)
	}
}

func TestWriteAtomic_InvalidDestination(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "missing", "out.mscz")
	if err := WriteAtomic(dst, func(io.Writer) error { return nil }); err == nil {
		t.Error("expected error when the destination directory does not exist")
	}
}
