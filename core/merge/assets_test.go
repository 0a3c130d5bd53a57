package merge_test

import (
	"path/filepath"
	"testing"

	"github.com/diedeno/mscz-concatenator/core/merge"
	"github.com/diedeno/mscz-concatenator/core/mscz"
	"github.com/diedeno/mscz-concatenator/internal/scoretest"
)

func openDoc(t *testing.T, path string) *mscz.Document {
	t.Helper()
	d, err := mscz.Open(path)
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", path, err)
	}
	return d
}

func TestCopyAssets(t *testing.T) {
	dir := t.TempDir()
	b := scoretest.New().Parts("Piano").Measures(1, "a")
	targetPath := scoretest.WriteScore(t, dir, "a.mscz", b, map[string][]byte{
		"Pictures/shared.png": []byte("target version"),
	})
	sourcePath := scoretest.WriteScore(t, dir, "b.mscz", b, map[string][]byte{
		"Pictures/":             nil,
		"Pictures/shared.png":   []byte("source version"),
		"Pictures/new.png":      []byte("new picture"),
		"Pictures/sub/deep.svg": []byte("<svg/>"),
		"thumbnails/thumb.png":  []byte("thumb"),
		"audiosettings.json":    []byte("{}"),
	})

	target, source := openDoc(t, targetPath), openDoc(t, sourcePath)
	n, err := merge.CopyAssets(target, source, "")
	if err != nil {
		t.Fatalf("CopyAssets failed: %v", err)
	}
	if n != 2 {
		t.Errorf("copied %d assets, want 2", n)
	}
	for _, name := range []string{"Pictures/new.png", "Pictures/sub/deep.svg"} {
		if !target.HasAsset(name) {
			t.Errorf("target lacks %s", name)
		}
	}
	if target.HasAsset("thumbnails/thumb.png") || target.HasAsset("Pictures/") {
		t.Error("entries outside the prefix or directories were copied")
	}
	if data, _ := target.Asset("Pictures/shared.png"); string(data) != "target version" {
		t.Errorf("existing asset overwritten: %q", data)
	}

	out := filepath.Join(dir, "out.mscz")
	if err := target.SaveAs(out); err != nil {
		t.Fatalf("SaveAs failed: %v", err)
	}
	saved := openDoc(t, out)
	if data, _ := saved.Asset("Pictures/new.png"); string(data) != "new picture" {
		t.Errorf("copied asset = %q", data)
	}
	if saved.Digest("Pictures/new.png") != source.Digest("Pictures/new.png") {
		t.Error("copied asset changed on save")
	}

	again, err := merge.CopyAssets(target, source, mscz.PicturesPrefix)
	if err != nil || again != 0 {
		t.Errorf("second CopyAssets() = %d, %v", again, err)
	}
}

func TestCopyAssetsCustomPrefix(t *testing.T) {
	dir := t.TempDir()
	b := scoretest.New().Parts("Piano")
	target := openDoc(t, scoretest.WriteScore(t, dir, "a.mscz", b, nil))
	source := openDoc(t, scoretest.WriteScore(t, dir, "b.mscz", b, map[string][]byte{
		"Pictures/p.png":       []byte("p"),
		"thumbnails/thumb.png": []byte("t"),
	}))

	n, err := merge.CopyAssets(target, source, "thumbnails/")
	if err != nil || n != 1 {
		t.Fatalf("CopyAssets() = %d, %v", n, err)
	}
	if target.HasAsset("Pictures/p.png") {
		t.Error("prefix not honoured")
	}
}
