package mscz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/internal/scoretest"
)

func TestSaveRefusesChangedEntry(t *testing.T) {
	dir := t.TempDir()
	path := scoretest.WriteScore(t, dir, "in.mscz", scoretest.New().Parts("Viola"), map[string][]byte{
		"Pictures/a.png": []byte("a"),
	})
	doc, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	doc.digests["Pictures/a.png"] = "0000"

	out := filepath.Join(dir, "out.mscz")
	err = doc.SaveAs(out)
	if errors.KindOf(err) != errors.KindInternal {
		t.Fatalf("SaveAs() error = %v, want internal", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output may be written when verification fails")
	}
	if doc.Path() != path {
		t.Error("failed SaveAs must not change the document path")
	}
}
