// Package validation checks user-supplied paths and file contents before
// any document is opened or written.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Limits guarding against resource exhaustion (CWE-400).
const (
	// MaxFileSize is the maximum container size read into memory (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrExtension        = errors.New("unsupported file extension")
	ErrTooFewSources    = errors.New("at least two source files are required")
	ErrTargetIsSource   = errors.New("output file is also a source")
	ErrDuplicateSource  = errors.New("source listed more than once")
	ErrFileTooLarge     = errors.New("file too large")
)

// PathError attaches the offending path to a validation error.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// ValidatePath performs path validation without touching the filesystem.
// It checks length limits and invalid characters.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}

	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}

	// Null bytes truncate paths in system calls
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}

	return nil
}

// HasExtension reports whether path ends with ext, ignoring case.
func HasExtension(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

// ResolvePath returns the absolute form of path with symlinks evaluated.
// For a file that does not exist yet only its directory is evaluated.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs, nil
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

// ValidateSources checks that there are at least two sources, that every
// source ends with ext and that no file is listed twice. Errors are
// *PathError values wrapping the sentinels above.
func ValidateSources(sources []string, ext string) error {
	if len(sources) < 2 {
		return &PathError{Err: fmt.Errorf("%w (got %d)", ErrTooFewSources, len(sources))}
	}
	for _, src := range sources {
		if err := ValidatePath(src); err != nil {
			return &PathError{Path: src, Err: err}
		}
		if !HasExtension(src, ext) {
			return &PathError{Path: src, Err: fmt.Errorf("%w: want %s", ErrExtension, ext)}
		}
	}

	seen := make(map[string]string, len(sources))
	for _, src := range sources {
		key, err := ResolvePath(src)
		if err != nil {
			return &PathError{Path: src, Err: err}
		}
		if first, ok := seen[key]; ok {
			return &PathError{Path: src, Err: fmt.Errorf("%w (same file as %s)", ErrDuplicateSource, first)}
		}
		seen[key] = src
	}
	return nil
}

// ValidateMergePaths runs ValidateSources and checks that target is a
// valid path ending with ext that resolves to none of the sources.
func ValidateMergePaths(sources []string, target, ext string) error {
	if err := ValidateSources(sources, ext); err != nil {
		return err
	}
	if err := ValidatePath(target); err != nil {
		return &PathError{Path: target, Err: err}
	}
	if !HasExtension(target, ext) {
		return &PathError{Path: target, Err: fmt.Errorf("%w: want %s", ErrExtension, ext)}
	}

	targetKey, err := ResolvePath(target)
	if err != nil {
		return &PathError{Path: target, Err: err}
	}
	for _, src := range sources {
		key, err := ResolvePath(src)
		if err != nil {
			return &PathError{Path: src, Err: err}
		}
		if key == targetKey {
			return &PathError{Path: src, Err: ErrTargetIsSource}
		}
	}
	return nil
}

// CheckFileSize rejects files larger than MaxFileSize.
func CheckFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > MaxFileSize {
		return &PathError{Path: path, Err: fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, info.Size(), MaxFileSize)}
	}
	return nil
}

// FileType represents a validated file type.
type FileType string

const (
	FileTypeZip     FileType = "zip"
	FileTypeXML     FileType = "xml"
	FileTypeUnknown FileType = "unknown"
)

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
	offset   int
}{
	{FileTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}, 0}, // local file header
	{FileTypeZip, []byte{0x50, 0x4b, 0x05, 0x06}, 0}, // empty archive
	{FileTypeXML, []byte("<?xml"), 0},
	{FileTypeXML, []byte("\xef\xbb\xbf<?xml"), 0}, // with BOM
}

// ValidateFileType checks that content read from reader matches the type
// implied by the filename extension and returns the detected type.
func ValidateFileType(reader io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	detected := DetectFileType(buf)
	expected := detectFileTypeFromExtension(filename)

	if detected == expected {
		return detected, nil
	}

	// XML without a declaration has no signature
	if detected == FileTypeUnknown && expected == FileTypeXML && isLikelyText(buf) {
		return FileTypeXML, nil
	}

	if expected != FileTypeUnknown {
		return FileTypeUnknown, fmt.Errorf("file type mismatch: extension suggests %s but content is %s", expected, detected)
	}
	return detected, nil
}

// DetectFileType detects a file type from its leading bytes.
func DetectFileType(buf []byte) FileType {
	for _, sig := range magicBytes {
		if sig.offset+len(sig.magic) <= len(buf) {
			if bytes.Equal(buf[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
				return sig.fileType
			}
		}
	}
	return FileTypeUnknown
}

func detectFileTypeFromExtension(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mscz", ".zip":
		return FileTypeZip
	case ".mscx", ".xml":
		return FileTypeXML
	default:
		return FileTypeUnknown
	}
}

// isLikelyText reports whether buf looks like text.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
		// UTF-8 bytes above 0x7e are neutral
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
