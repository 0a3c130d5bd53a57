// Command mscz-concat joins MuseScore scores into one.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/internal/config"
	"github.com/diedeno/mscz-concatenator/internal/logging"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK           = 0
	exitError        = 1
	exitUsage        = 2
	exitIncompatible = 3
	exitIO           = 4
)

// Injectable for tests.
var (
	exit       = os.Exit
	isTerminal = func(w io.Writer) bool {
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd()))
	}
)

// Globals are flags shared by every command.
type Globals struct {
	Config    string `help:"Config file (default: $MSCZ_CONCAT_CONFIG, ./mscz-concat.yaml, user config dir)" short:"c" type:"path" placeholder:"FILE"`
	LogLevel  string `help:"Log level" enum:"debug,info,warn,error" default:"${logLevel}"`
	LogFormat string `help:"Log format; auto is text on a terminal and JSON otherwise" enum:"auto,json,text" default:"${logFormat}"`
	Quiet     bool   `help:"Only print errors" short:"q"`
}

// CLI defines the command-line interface for mscz-concat.
type CLI struct {
	Globals

	Merge   MergeCmd   `cmd:"" default:"withargs" help:"Merge scores into one (default command)"`
	Check   CheckCmd   `cmd:"" help:"Check that scores can be merged without writing anything"`
	Inspect InspectCmd `cmd:"" help:"Print the structure of a score"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// app carries what command Run methods need.
type app struct {
	globals     *Globals
	stdout      io.Writer
	stderr      io.Writer
	logger      *slog.Logger
	styles      styles
	interactive bool
}

func main() {
	exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	errStyles := newStyles(stderr)
	fail := func(code int, err error) int {
		fmt.Fprintf(stderr, "%s %v\n", errStyles.err.Render("error:"), err)
		return code
	}

	if err := config.LoadDotEnv(config.DotEnv); err != nil {
		return fail(exitUsage, err)
	}
	cfg, _, err := config.Load(configFlag(args))
	if err != nil {
		return fail(exitUsage, err)
	}

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("mscz-concat"),
		kong.Description("Concatenate MuseScore scores that share an instrumentation."),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars(cfg.Vars()),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
	)
	if err != nil {
		return fail(exitError, err)
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return fail(exitUsage, fmt.Errorf("%w (see --help)", err))
	}

	a := &app{
		globals:     &cli.Globals,
		stdout:      stdout,
		stderr:      stderr,
		styles:      newStyles(stdout),
		interactive: isTerminal(stderr),
	}
	a.logger = newLogger(&cli.Globals, stderr, a.interactive)

	if err := ctx.Run(a); err != nil {
		return fail(exitCode(err), err)
	}
	return exitOK
}

// configFlag finds --config before kong runs, since the file supplies the
// flag defaults.
func configFlag(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--":
			return ""
		case arg == "--config" || arg == "-c":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func newLogger(g *Globals, w io.Writer, interactive bool) *slog.Logger {
	level, _ := logging.ParseLevel(g.LogLevel)
	if g.Quiet && level < logging.LevelError {
		level = logging.LevelError
	}
	format := logging.FormatJSON
	switch g.LogFormat {
	case config.FormatText:
		format = logging.FormatText
	case config.FormatAuto:
		if interactive {
			format = logging.FormatText
		}
	}
	return logging.New(logging.Options{Level: level, Format: format, Output: w})
}

func exitCode(err error) int {
	switch errors.KindOf(err) {
	case errors.KindUsage:
		return exitUsage
	case errors.KindCompatibility:
		return exitIncompatible
	case errors.KindIO:
		return exitIO
	}
	return exitError
}
