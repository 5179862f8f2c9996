package timetable

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/ingest"
)

const downloadTimeout = 2 * time.Minute

// UnzipToTempDir extracts the timetable files of a zip into a fresh
// directory. Other entries are skipped.
func UnzipToTempDir(zipPath string, logger *slog.Logger) (string, error) {
	dir, err := os.MkdirTemp("", "timetable-import-*")
	if err != nil {
		return "", err
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	defer reader.Close()

	// Walk zip files - extract contents to temp dir
	for _, file := range reader.File {
		name := filepath.Base(file.Name)
		if file.FileInfo().IsDir() || !ingest.IsTimetableFile(name) {
			logger.Debug("skipping zip entry", "name", file.Name)
			continue
		}

		if err := extract(file, filepath.Join(dir, name)); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("extract %s: %w", file.Name, err)
		}
	}

	logger.Info("extracted timetable", "zip", zipPath, "dir", dir)
	return dir, nil
}

func extract(file *zip.File, dstPath string) error {
	dstFile, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	fileInArchive, err := file.Open()
	if err != nil {
		return err
	}
	defer fileInArchive.Close()

	_, err = io.Copy(dstFile, fileInArchive)
	return err
}

func DownloadToTempFile(ctx context.Context, url string, logger *slog.Logger) (string, error) {
	tmpFile, err := os.CreateTemp("", "timetable-import-*.zip")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("HTTP Error: status code %d", response.StatusCode)
	}

	written, err := io.Copy(tmpFile, response.Body)
	if err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to write downloaded file to temp location: %w", err)
	}

	logger.Info("downloaded timetable", "url", url, "path", tmpFile.Name(), "bytes", written)
	return tmpFile.Name(), nil
}

func Run(cfg Config, stdOut, errOut io.Writer) int {
	logger, err := common.NewLogger(cfg.LogLevel, cfg.LogFormat, errOut)
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Error("timetable import failed", "error", err)
		return -1
	}

	mode := "imported"
	if cfg.DryRun {
		mode = "would import"
	}
	fmt.Fprintf(stdOut, "%s: %d stations, %d trains, %d coaches, %d schedules, %d journeys\n",
		mode, summary.Stations, summary.Trains, summary.Coaches, summary.Schedules, summary.Journeys)
	return 0
}

func run(ctx context.Context, cfg Config, logger *slog.Logger) (ingest.Summary, error) {
	dirPath, cleanup, err := resolveInput(ctx, cfg, logger)
	if err != nil {
		return ingest.Summary{}, err
	}
	defer cleanup()

	if cfg.DryRun {
		timetable, err := common.RuntimeBenchmark(logger, "parse timetable", func() (ingest.Timetable, error) {
			return ingest.ReadTimetable(dirPath)
		})
		if err != nil {
			return ingest.Summary{}, err
		}
		return timetable.Summary(), nil
	}

	dialect, err := db.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		return ingest.Summary{}, err
	}
	database, err := db.NewDatabaseConnection(ctx, dialect, cfg.DatabaseConnection)
	if err != nil {
		return ingest.Summary{}, err
	}
	defer database.Close()

	if cfg.Migrate {
		if err := database.Migrate(ctx); err != nil {
			return ingest.Summary{}, err
		}
	}

	return ingest.NewImporter(database, logger).Import(ctx, dirPath)
}

// resolveInput turns -zip, -dir or -url into a directory of CSV files.
func resolveInput(ctx context.Context, cfg Config, logger *slog.Logger) (string, func(), error) {
	if cfg.DirPath != "" {
		return cfg.DirPath, func() {}, nil
	}

	zipPath := cfg.ZipPath
	removeZip := func() {}
	if cfg.Url != "" {
		downloaded, err := DownloadToTempFile(ctx, cfg.Url, logger)
		if err != nil {
			return "", nil, err
		}
		zipPath = downloaded
		removeZip = func() { os.Remove(downloaded) }
	}

	dir, err := UnzipToTempDir(zipPath, logger)
	if err != nil {
		removeZip()
		return "", nil, err
	}
	return dir, func() {
		os.RemoveAll(dir)
		removeZip()
	}, nil
}
