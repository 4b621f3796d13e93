package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/conorfennell/quizgen/internal/archive"
	"github.com/conorfennell/quizgen/internal/config"
	"github.com/conorfennell/quizgen/internal/export"
	"github.com/conorfennell/quizgen/internal/importer"
	"github.com/conorfennell/quizgen/internal/sets"
	"github.com/conorfennell/quizgen/internal/storage"
	"github.com/conorfennell/quizgen/internal/web"
)

func main() {
	// 1. Load configuration from defaults, file, env and flags
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "quizgen: %v\n", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	// 2. Open the database
	db, err := storage.Open(cfg.DB)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DB, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database opened successfully", "path", cfg.DB)

	// 3. Load the question sets and run any requested import
	store := sets.New(db, cfg.StorageKey, sets.WithLogger(logger))
	store.Load()

	if cfg.Import != "" {
		report, err := importer.Import(store, store.ActiveID(), cfg.Import)
		if err != nil {
			slog.Error("Import failed", "path", cfg.Import, "error", err)
			db.Close()
			os.Exit(1)
		}
		for _, e := range report.Errors {
			fmt.Fprintf(os.Stderr, "- %s\n", e)
		}
	}

	var arch *archive.Archive
	if cfg.ArchiveDir != "" {
		arch = archive.New(cfg.ArchiveDir)
	}

	// 4. Either export once and exit, or serve the editor
	if cfg.Export != "" {
		if err := runExport(store, arch, cfg); err != nil {
			slog.Error("Export failed", "error", err)
			db.Close()
			os.Exit(1)
		}
		return
	}

	var archiver web.Archiver
	if arch != nil {
		archiver = arch
	}
	srv, err := web.NewServer(store, archiver, logger)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		db.Close()
		os.Exit(1)
	}

	slog.Info("Editor listening", "addr", "http://"+cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, srv); err != nil {
		slog.Error("Server stopped", "error", err)
		db.Close()
		os.Exit(1)
	}
}

// runExport writes the CSV for the configured set to cfg.Export.
// An empty set writes nothing.
func runExport(store *sets.Store, arch *archive.Archive, cfg config.Config) error {
	set, ok := store.Active()
	if cfg.ExportSet != "" {
		set, ok = store.Lookup(cfg.ExportSet)
	}
	if !ok {
		return fmt.Errorf("no question set named %q", cfg.ExportSet)
	}

	data, ok := export.CSV(set)
	if !ok {
		slog.Warn("Question set is empty, nothing exported", "set", set.Name)
		return nil
	}

	if err := writeExport(cfg.Export, data); err != nil {
		return err
	}

	if arch != nil {
		if err := arch.Commit(export.Filename(set.Name, "csv"), data); err != nil {
			slog.Warn("Failed to archive export", "error", err)
		}
	}
	slog.Info("Exported question set", "set", set.Name, "questions", len(set.Questions))
	return nil
}

// writeExport writes data to path, or to stdout when path is "-".
func writeExport(path string, data []byte) error {
	if path == "-" {
		if _, err := os.Stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
