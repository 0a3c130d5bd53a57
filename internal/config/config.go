// Package config loads mscz-concat defaults from an optional YAML file.
//
// Values from the file become kong variables, so flags given on the command
// line always win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/diedeno/mscz-concatenator/core/compat"
	"github.com/diedeno/mscz-concatenator/core/concat"
	mergeerrors "github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/core/fuzzy"
	"github.com/diedeno/mscz-concatenator/core/merge"
	"github.com/diedeno/mscz-concatenator/internal/logging"
)

// ErrConfigNotFound is returned when an explicitly named config file does
// not exist.
var ErrConfigNotFound = errors.New("config file not found")

const (
	// EnvVar names a config file when --config is not given.
	EnvVar = "MSCZ_CONCAT_CONFIG"
	// FileName is looked up in the working directory.
	FileName = "mscz-concat.yaml"
	// AppDir is the directory under the user config dir.
	AppDir = "mscz-concat"
	// DotEnv is the environment file loaded before the config is located.
	DotEnv = ".env"
)

// Log format names accepted in the file. Auto picks text on a terminal.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatText = "text"
)

type CompatConfig struct {
	Strategy  string  `yaml:"strategy"`
	Threshold float64 `yaml:"threshold"`
	Numbers   string  `yaml:"numbers"`
	Policy    string  `yaml:"policy"`
}

type MergeConfig struct {
	Frames      bool   `yaml:"frames"`
	TitleFrames bool   `yaml:"title_frames"`
	SystemLocks bool   `yaml:"system_locks"`
	Pictures    bool   `yaml:"pictures"`
	AssetPrefix string `yaml:"asset_prefix,omitempty"`
}

type BreaksConfig struct {
	Insert                 string  `yaml:"insert"` // comma separated: line, page, section
	Pause                  float64 `yaml:"pause"`
	StartWithLongNames     bool    `yaml:"start_with_long_names"`
	StartWithMeasureOne    bool    `yaml:"start_with_measure_one"`
	FirstSystemIndentation bool    `yaml:"first_system_indentation"`
	ShowCourtesySignature  bool    `yaml:"show_courtesy_signature"`
	AutoDetectRepeats      bool    `yaml:"auto_detect_repeats"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the file layout. Keys missing from the file keep the values of
// Default.
type Config struct {
	Compat CompatConfig `yaml:"compat"`
	Merge  MergeConfig  `yaml:"merge"`
	Breaks BreaksConfig `yaml:"breaks"`
	Log    LogConfig    `yaml:"log"`
}

// Default mirrors concat.DefaultOptions.
func Default() *Config {
	opts := concat.DefaultOptions()
	return &Config{
		Compat: CompatConfig{
			Strategy:  opts.Compat.Strategy.String(),
			Threshold: opts.Compat.Threshold,
			Numbers:   opts.Compat.Numbers.String(),
			Policy:    opts.Compat.Policy.String(),
		},
		Merge: MergeConfig{
			Frames:      opts.Merge.CopyFrames,
			TitleFrames: opts.Merge.CopyTitleFrames,
			SystemLocks: opts.Merge.CopySystemLocks,
			Pictures:    opts.Merge.CopyPictures,
		},
		Breaks: BreaksConfig{
			Insert:                 opts.Breaks.String(),
			Pause:                  opts.Section.Pause,
			StartWithLongNames:     opts.Section.StartWithLongNames,
			StartWithMeasureOne:    opts.Section.StartWithMeasureOne,
			FirstSystemIndentation: opts.Section.FirstSystemIndentation,
			ShowCourtesySignature:  opts.Section.ShowCourtesySignature,
			AutoDetectRepeats:      opts.Section.AutoDetectRepeats,
		},
		Log: LogConfig{Level: logging.LevelInfo.String(), Format: FormatAuto},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// SearchPaths returns the candidate config files in lookup order.
func SearchPaths(explicit string) []string {
	var paths []string
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if env := os.Getenv(EnvVar); env != "" {
		paths = append(paths, env)
	}
	paths = append(paths, FileName)
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, AppDir, "config.yaml"))
	}
	return paths
}

// Find returns the first existing config file, or "" when there is none.
// A file named by --config or the environment must exist.
func Find(explicit string) (string, error) {
	named := explicit
	if named == "" {
		named = os.Getenv(EnvVar)
	}
	if named != "" {
		if _, err := os.Stat(named); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, named)
		}
		return named, nil
	}
	for _, p := range SearchPaths("") {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// Load finds and parses the config file. With no file it returns Default
// and an empty path.
func Load(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	if path == "" {
		return Default(), "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, mergeerrors.Wrap(err, "failed to read config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, path, mergeerrors.Wrap(err, path)
	}
	return cfg, path, nil
}

// Parse decodes YAML over Default and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enums and ranges.
func (c *Config) Validate() error {
	if _, err := c.Options(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return mergeerrors.NewValidation("log.level", err.Error())
	}
	switch strings.ToLower(c.Log.Format) {
	case "", FormatAuto, FormatJSON, FormatText:
	default:
		return mergeerrors.NewValidation("log.format", fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	return nil
}

// Options converts the config into run options.
func (c *Config) Options() (concat.Options, error) {
	opts := concat.DefaultOptions()
	var err error

	if opts.Compat.Strategy, err = compat.ParseStrategy(c.Compat.Strategy); err != nil {
		return opts, mergeerrors.NewValidation("compat.strategy", err.Error())
	}
	if opts.Compat.Numbers, err = fuzzy.ParseNumbersStrategy(c.Compat.Numbers); err != nil {
		return opts, mergeerrors.NewValidation("compat.numbers", err.Error())
	}
	if opts.Compat.Policy, err = compat.ParsePolicy(c.Compat.Policy); err != nil {
		return opts, mergeerrors.NewValidation("compat.policy", err.Error())
	}
	if opts.Breaks, err = merge.ParseBreaks(c.Breaks.Insert); err != nil {
		return opts, mergeerrors.NewValidation("breaks.insert", err.Error())
	}
	opts.Compat.Threshold = c.Compat.Threshold

	opts.Merge = merge.Options{
		CopyFrames:      c.Merge.Frames,
		CopyTitleFrames: c.Merge.TitleFrames,
		CopySystemLocks: c.Merge.SystemLocks,
		CopyPictures:    c.Merge.Pictures,
	}
	opts.AssetPrefix = c.Merge.AssetPrefix
	opts.Section = merge.SectionBreak{
		Pause:                  c.Breaks.Pause,
		StartWithLongNames:     c.Breaks.StartWithLongNames,
		StartWithMeasureOne:    c.Breaks.StartWithMeasureOne,
		FirstSystemIndentation: c.Breaks.FirstSystemIndentation,
		ShowCourtesySignature:  c.Breaks.ShowCourtesySignature,
		AutoDetectRepeats:      c.Breaks.AutoDetectRepeats,
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// Vars exposes the config as kong variables for flag defaults. Enum
// values are normalized so they satisfy the flag enums.
func (c *Config) Vars() kong.Vars {
	b := strconv.FormatBool
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	lower := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	level, _ := logging.ParseLevel(c.Log.Level)
	format := lower(c.Log.Format)
	if format == "" {
		format = FormatAuto
	}
	return kong.Vars{
		"strategy":    lower(c.Compat.Strategy),
		"threshold":   f(c.Compat.Threshold),
		"numbers":     lower(c.Compat.Numbers),
		"policy":      lower(c.Compat.Policy),
		"frames":      b(c.Merge.Frames),
		"titleFrames": b(c.Merge.TitleFrames),
		"systemLocks": b(c.Merge.SystemLocks),
		"pictures":    b(c.Merge.Pictures),
		"assetPrefix": c.Merge.AssetPrefix,
		"breaks":      c.Breaks.Insert,
		"pause":       f(c.Breaks.Pause),
		"longNames":   b(c.Breaks.StartWithLongNames),
		"measureOne":  b(c.Breaks.StartWithMeasureOne),
		"indentation": b(c.Breaks.FirstSystemIndentation),
		"courtesy":    b(c.Breaks.ShowCourtesySignature),
		"autoRepeats": b(c.Breaks.AutoDetectRepeats),
		"logLevel":    level.String(),
		"logFormat":   format,
	}
}
