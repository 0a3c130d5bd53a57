package validation

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantError error
	}{
		{
			name:      "valid relative path",
			path:      "scores/part1.mscz",
			wantError: nil,
		},
		{
			name:      "valid absolute path",
			path:      "/home/user/part1.mscz",
			wantError: nil,
		},
		{
			name:      "empty path",
			path:      "",
			wantError: ErrEmptyPath,
		},
		{
			name:      "blank path",
			path:      "   ",
			wantError: ErrEmptyPath,
		},
		{
			name:      "path too long",
			path:      strings.Repeat("a", MaxPathLength+1),
			wantError: ErrPathTooLong,
		},
		{
			name:      "null byte",
			path:      "part\x00.mscz",
			wantError: ErrInvalidCharacter,
		},
		{
			name:      "control character",
			path:      "part\x07.mscz",
			wantError: ErrInvalidCharacter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantError == nil {
				if err != nil {
					t.Errorf("ValidatePath() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantError) {
				t.Errorf("ValidatePath() error = %v, want %v", err, tt.wantError)
			}
		})
	}
}

func TestHasExtension(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want bool
	}{
		{"a.mscz", ".mscz", true},
		{"A.MSCZ", ".mscz", true},
		{"a.mscx", ".mscz", false},
		{"a.mscz.bak", ".mscz", false},
		{"mscz", ".mscz", false},
	}
	for _, tt := range tests {
		if got := HasExtension(tt.path, tt.ext); got != tt.want {
			t.Errorf("HasExtension(%q, %q) = %v, want %v", tt.path, tt.ext, got, tt.want)
		}
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.mscz")
	if err := os.WriteFile(real, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.mscz")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	a, err := ResolvePath(real)
	if err != nil {
		t.Fatalf("ResolvePath(real) error = %v", err)
	}
	b, err := ResolvePath(link)
	if err != nil {
		t.Fatalf("ResolvePath(link) error = %v", err)
	}
	if a != b {
		t.Errorf("symlink resolved to %q, want %q", b, a)
	}

	missing := filepath.Join(dir, "missing.mscz")
	got, err := ResolvePath(missing)
	if err != nil || !filepath.IsAbs(got) {
		t.Errorf("ResolvePath(missing) = %q, %v", got, err)
	}
}

func TestValidateMergePaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mscz")
	b := filepath.Join(dir, "b.mscz")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	alias := filepath.Join(dir, "alias.mscz")
	hasLink := os.Symlink(a, alias) == nil
	out := filepath.Join(dir, "out.mscz")

	tests := []struct {
		name      string
		sources   []string
		target    string
		wantError error
		wantPath  string
	}{
		{"valid", []string{a, b}, out, nil, ""},
		{"upper case extension", []string{a, b}, filepath.Join(dir, "OUT.MSCZ"), nil, ""},
		{"one source", []string{a}, out, ErrTooFewSources, ""},
		{"no sources", nil, out, ErrTooFewSources, ""},
		{"empty target", []string{a, b}, "", ErrEmptyPath, ""},
		{"target extension", []string{a, b}, filepath.Join(dir, "out.mscx"), ErrExtension, filepath.Join(dir, "out.mscx")},
		{"source extension", []string{a, filepath.Join(dir, "b.pdf")}, out, ErrExtension, filepath.Join(dir, "b.pdf")},
		{"target is source", []string{a, b}, b, ErrTargetIsSource, b},
		{"duplicate source", []string{a, b, a}, out, ErrDuplicateSource, a},
		{"duplicate via dot segment", []string{a, filepath.Join(dir, ".", "a.mscz")}, out, ErrDuplicateSource, ""},
	}
	if hasLink {
		tests = append(tests, struct {
			name      string
			sources   []string
			target    string
			wantError error
			wantPath  string
		}{"duplicate via symlink", []string{a, alias}, out, ErrDuplicateSource, alias})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMergePaths(tt.sources, tt.target, ".mscz")
			if tt.wantError == nil {
				if err != nil {
					t.Errorf("ValidateMergePaths() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantError) {
				t.Fatalf("ValidateMergePaths() error = %v, want %v", err, tt.wantError)
			}
			var pe *PathError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *PathError", err)
			}
			if tt.wantPath != "" && pe.Path != tt.wantPath {
				t.Errorf("PathError.Path = %q, want %q", pe.Path, tt.wantPath)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.mscz")
	if err := os.WriteFile(small, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CheckFileSize(small); err != nil {
		t.Errorf("CheckFileSize(small) error = %v", err)
	}

	big := filepath.Join(dir, "big.mscz")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxFileSize + 1); err != nil {
		f.Close()
		t.Skipf("sparse files unavailable: %v", err)
	}
	f.Close()
	if err := CheckFileSize(big); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("CheckFileSize(big) error = %v, want %v", err, ErrFileTooLarge)
	}

	if err := CheckFileSize(filepath.Join(dir, "missing.mscz")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("CheckFileSize(missing) error = %v", err)
	}
}

func TestValidateFileType(t *testing.T) {
	zipHeader := append([]byte{0x50, 0x4b, 0x03, 0x04}, make([]byte, 26)...)

	tests := []struct {
		name     string
		content  []byte
		filename string
		want     FileType
		wantErr  bool
	}{
		{"mscz container", zipHeader, "score.mscz", FileTypeZip, false},
		{"empty archive", []byte{0x50, 0x4b, 0x05, 0x06}, "score.mscz", FileTypeZip, false},
		{"mscx with declaration", []byte(`<?xml version="1.0"?><museScore/>`), "score.mscx", FileTypeXML, false},
		{"mscx with bom", []byte("\xef\xbb\xbf<?xml version=\"1.0\"?>"), "score.mscx", FileTypeXML, false},
		{"mscx without declaration", []byte(`<museScore version="4.20"/>`), "score.mscx", FileTypeXML, false},
		{"text named mscz", []byte("not a zip"), "score.mscz", FileTypeUnknown, true},
		{"empty mscz", nil, "score.mscz", FileTypeUnknown, true},
		{"zip named mscx", zipHeader, "score.mscx", FileTypeUnknown, true},
		{"unknown extension", zipHeader, "score.bin", FileTypeZip, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFileType(bytes.NewReader(tt.content), tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFileType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateFileType() = %v, want %v", got, tt.want)
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestValidateFileType_ReadError(t *testing.T) {
	if _, err := ValidateFileType(failingReader{}, "score.mscz"); err == nil {
		t.Error("ValidateFileType() should fail on read error")
	}
}

func TestIsLikelyText(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"empty", nil, false},
		{"ascii", []byte("<museScore>\n\t<Score/>\n</museScore>"), true},
		{"utf8", []byte("Violín Ⅰ"), true},
		{"null byte", []byte("abc\x00def"), false},
		{"control heavy", bytes.Repeat([]byte{0x01, 'a'}, 10), false},
	}
	for _, tt := range tests {
		if got := isLikelyText(tt.buf); got != tt.want {
			t.Errorf("isLikelyText(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
