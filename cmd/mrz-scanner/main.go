package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/mrz-scanner/internal/archive"
	"github.com/zombor/mrz-scanner/internal/capture"
	"github.com/zombor/mrz-scanner/internal/scan"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout)
	if err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("MRZ_SCANNER")); err != nil {
		if errors.Is(err, ff.ErrHelp) {
			fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(stdout io.Writer) *ff.Command {
	rootFlags := ff.NewFlagSet("mrz-scanner")
	opts := registerOptions(rootFlags)
	verbose := rootFlags.BoolLong("verbose", "Log every attempt")

	scanFlags := ff.NewFlagSet("scan").SetParent(rootFlags)
	frames := scanFlags.StringLong("frames", "", "Image, PDF or directory of frames to scan")
	scanCmd := &ff.Command{
		Name:      "scan",
		Usage:     "mrz-scanner scan --frames PATH [FLAGS]",
		ShortHelp: "scan a document from captured frames and print the record",
		Flags:     scanFlags,
		Exec: func(ctx context.Context, args []string) error {
			setupLogging(*verbose)
			if *frames == "" {
				return fmt.Errorf("--frames is required")
			}
			return runScan(ctx, opts, *frames, stdout)
		},
	}

	serveFlags := ff.NewFlagSet("serve").SetParent(rootFlags)
	var (
		port     = serveFlags.IntLong("port", 8080, "HTTP server port")
		authUser = serveFlags.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass = serveFlags.StringLong("auth-pass", "", "Basic auth password (optional)")
	)
	serveCmd := &ff.Command{
		Name:      "serve",
		Usage:     "mrz-scanner serve [FLAGS]",
		ShortHelp: "serve the scan archive and upload API over HTTP",
		Flags:     serveFlags,
		Exec: func(ctx context.Context, args []string) error {
			setupLogging(*verbose)
			return runServe(ctx, opts, fmt.Sprintf(":%d", *port), archive.BasicAuth{
				Username: *authUser,
				Password: *authPass,
			})
		},
	}

	return &ff.Command{
		Name:        "mrz-scanner",
		Usage:       "mrz-scanner <SUBCOMMAND> [FLAGS]",
		ShortHelp:   "read machine readable zones from identity documents",
		Flags:       rootFlags,
		Subcommands: []*ff.Command{scanCmd, serveCmd},
		Exec: func(ctx context.Context, args []string) error {
			return ff.ErrHelp
		},
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// runScan scans frames until a record passes and prints it as JSON
func runScan(ctx context.Context, opts *options, frames string, stdout io.Writer) error {
	cfg, err := opts.scanConfig()
	if err != nil {
		return err
	}

	engine, err := opts.newEngine()
	if err != nil {
		return fmt.Errorf("initializing OCR engine: %w", err)
	}
	defer engine.Close()

	deps := scan.Deps{
		Source: capture.NewFileSource(frames),
		Engine: engine,
	}

	var service *archive.Service
	if *opts.dbPath != "" {
		db, store, err := opts.openArchive(*opts.dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		service = archive.NewService(db, store, engine, cfg)
		deps.Snapshots = store
	} else if cfg.Debug {
		store, err := archive.NewLocalStorage(*opts.storagePath)
		if err != nil {
			return err
		}
		deps.Snapshots = store
	}

	result, err := scan.NewRunner(cfg, deps).Run(ctx)
	if err != nil {
		return err
	}

	if service != nil {
		rec, err := service.Record(result, frames)
		if err != nil {
			return fmt.Errorf("archiving scan: %w", err)
		}
		slog.Info("Scan archived", "id", rec.ID)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result.Record)
}

// runServe serves the archive API until ctx is done
func runServe(ctx context.Context, opts *options, addr string, auth archive.BasicAuth) error {
	cfg, err := opts.scanConfig()
	if err != nil {
		return err
	}

	dbPath := *opts.dbPath
	if dbPath == "" {
		dbPath = "mrz-scanner.db"
	}
	db, store, err := opts.openArchive(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := opts.newEngine()
	if err != nil {
		return fmt.Errorf("initializing OCR engine: %w", err)
	}
	defer engine.Close()

	server := archive.NewServer(archive.NewService(db, store, engine, cfg), auth)

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if auth.Username != "" || auth.Password != "" {
		slog.Info("Basic auth enabled", "user", auth.Username)
	}

	if err := server.Start(ctx, addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("Shutting down...")
	return nil
}
