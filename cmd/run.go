// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	unpack "github.com/hashicorp/go-unpack"
	"github.com/pkg/errors"
)

// CLI are the cli parameters for the gounpack binary
type CLI struct {
	Archive           string           `arg:"" name:"archive" optional:"" default:"nova-landing.zip" help:"Path to the zip archive. (\"-\" for STDIN)"`
	Destination       string           `arg:"" name:"destination" optional:"" default:"." help:"Output directory."`
	CacheInMemory     bool             `help:"Cache an archive from STDIN in memory instead of a temporary file."`
	SkipUnsupported   bool             `short:"C" help:"Skip unsupported files instead of failing."`
	DenySymlinks      bool             `short:"D" help:"Deny symlink extraction."`
	DropAttributes    bool             `help:"Drop file modes and modification times stored in the archive."`
	MaxFiles          int64            `optional:"" default:"100000" help:"Maximum files that are extracted before stop. (disable check: -1)"`
	MaxExtractionSize int64            `optional:"" default:"1073741824" help:"Maximum extraction size that allowed is (in bytes). (disable check: -1)"`
	MaxExtractionTime int64            `optional:"" default:"60" help:"Maximum time that an extraction should take (in seconds). (disable check: -1)"`
	MaxInputSize      int64            `optional:"" default:"1073741824" help:"Maximum input size that allowed is (in bytes). (disable check: -1)"`
	NoOverwrite       bool             `help:"Fail if a file already exists in the destination."`
	Preview           int              `short:"n" optional:"" default:"10" help:"Number of entry names shown before extraction. (show all: 0)"`
	Strict            bool             `short:"s" help:"Print failures to stderr and exit with a non-zero code."`
	Telemetry         bool             `short:"T" optional:"" default:"false" help:"Print telemetry data to log after extraction."`
	Verbose           bool             `short:"v" optional:"" help:"Verbose logging."`
	Version           kong.VersionFlag `short:"V" optional:"" help:"Print release version information."`
}

// exitCode is raised by the kong exit handler to leave the parser
type exitCode int

// Run the entrypoint into gounpack as a cli tool
func Run(version, commit, date string) {
	v := fmt.Sprintf("%s (%s), commit %s, built at %s", filepath.Base(os.Args[0]), version, commit, date)
	os.Exit(run(context.Background(), os.Args[1:], v, os.Stdin, os.Stdout, os.Stderr))
}

// run parses args, unpacks the archive and returns the exit code
func run(ctx context.Context, args []string, version string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			c, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(c)
		}
	}()

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("gounpack"),
		kong.Description("List and extract a zip archive"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(func(c int) { panic(exitCode(c)) }),
		kong.Vars{"version": version},
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return -1
	}
	if _, err := parser.Parse(args); err != nil {
		parser.Errorf("%s", err)
		return -1
	}

	// Check for verbose output
	logLevel := slog.LevelError
	if cli.Telemetry {
		logLevel = slog.LevelInfo
	}
	if cli.Verbose {
		logLevel = slog.LevelDebug
	}

	// setup logger
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// setup telemetry hook
	telemetryToLog := func(ctx context.Context, td *unpack.TelemetryData) {
		if cli.Telemetry {
			logger.Info("extraction finished", "telemetry", td)
		}
	}

	// process cli params
	cfg := unpack.NewConfig(
		unpack.WithCacheInMemory(cli.CacheInMemory),
		unpack.WithContinueOnUnsupportedFiles(cli.SkipUnsupported),
		unpack.WithDenySymlinkExtraction(cli.DenySymlinks),
		unpack.WithDropFileAttributes(cli.DropAttributes),
		unpack.WithLogger(logger),
		unpack.WithMaxExtractionSize(cli.MaxExtractionSize),
		unpack.WithMaxFiles(cli.MaxFiles),
		unpack.WithMaxInputSize(cli.MaxInputSize),
		unpack.WithOutput(stdout),
		unpack.WithOverwrite(!cli.NoOverwrite),
		unpack.WithPreviewLimit(cli.Preview),
		unpack.WithTelemetryHook(telemetryToLog),
	)

	if cli.MaxExtractionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Second*time.Duration(cli.MaxExtractionTime))
		defer cancel()
	}

	err = unpackArchive(ctx, cli.Archive, cli.Destination, stdin, cfg)
	if err == nil {
		return 0
	}

	if cli.Strict {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintln(stderr, red(errors.Wrapf(err, "cannot unpack %s", cli.Archive)))
		return -1
	}

	// report and finish normally
	unpack.ReportError(stdout, err)
	return 0
}

// unpackArchive extracts the archive at path, or from stdin if path is "-"
func unpackArchive(ctx context.Context, path string, dst string, stdin io.Reader, cfg *unpack.Config) error {
	if path != "-" {
		_, err := unpack.Unpack(ctx, path, dst, cfg)
		return err
	}

	a, err := unpack.OpenArchiveReader(bufio.NewReader(stdin), cfg)
	if err != nil {
		return errors.Wrap(err, "cannot read archive from stdin")
	}
	defer a.Close()

	_, err = unpack.UnpackArchive(ctx, a, dst, cfg)
	return err
}
