package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tidbyt.dev/txc"
	"tidbyt.dev/txc/config"
	"tidbyt.dev/txc/downloader"
	"tidbyt.dev/txc/logging"
	"tidbyt.dev/txc/parse"
)

var loadCmd = &cobra.Command{
	Use:   "load <file|url>",
	Short: "Loads a TransXChange document or zip archive into a revision",
	Args:  cobra.ExactArgs(1),
	RunE:  loadDataset,
}

var (
	revisionID   int64
	revisionName string
	headers      []string
	cacheDir     string
	cacheTTL     time.Duration
	timeout      time.Duration
)

func init() {
	loadCmd.Flags().Int64VarP(&revisionID, "revision", "r", 0, "Revision to load into. A new one is created if unset")
	loadCmd.Flags().StringVarP(&revisionName, "name", "n", "draft", "Name of a newly created revision")
	loadCmd.Flags().StringSliceVarP(&headers, "header", "", []string{}, "HTTP header for URL downloads")
	loadCmd.Flags().StringVarP(&cacheDir, "cache-dir", "", "", "Cache downloads in this directory")
	loadCmd.Flags().DurationVarP(&cacheTTL, "cache-ttl", "", 12*time.Hour, "How long cached downloads stay fresh")
	loadCmd.Flags().DurationVarP(&timeout, "timeout", "", 5*time.Minute, "Download timeout")
}

func loadDataset(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	filename, data, err := readDataset(cmd.Context(), cfg, args[0])
	if err != nil {
		return err
	}

	s, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(s, logger, "close_storage")

	if revisionID == 0 {
		revisionID, err = s.CreateRevision(revisionName, cfg.ETL.OrganisationName)
		if err != nil {
			return fmt.Errorf("creating revision: %w", err)
		}
	}

	p := txc.NewPipeline(s)
	p.MaxFileSize = cfg.ETL.MaxFileSize
	p.MaxUncompressedSize = cfg.ETL.MaxUncompressedSize
	p.RejectExpired = cfg.ETL.RejectExpired
	p.BatchSize = cfg.ETL.BatchSize
	p.Progress = txc.ProgressFunc(func(ctx context.Context, _ int64, percent int) error {
		logging.FromContext(ctx).Info("progress", slog.Int("percent", percent))
		return nil
	})

	ctx := logging.WithLogger(cmd.Context(), logger)
	res, err := p.Run(ctx, revisionID, filename, data)
	if err != nil {
		var fe *parse.FileError
		if errors.As(err, &fe) {
			return fmt.Errorf("%s: %s", fe.Kind, fe.Message)
		}
		return err
	}

	r := res.Report
	fmt.Printf("revision:      %d\n", revisionID)
	fmt.Printf("name:          %s\n", r.Name)
	fmt.Printf("schema:        %s\n", r.SchemaVersion)
	fmt.Printf("lines:         %d (%s)\n", r.LineCount, strings.Join(r.LineNames, ", "))
	fmt.Printf("stops:         %d\n", r.StopCount)
	fmt.Printf("timing points: %d\n", r.TimingPointCount)
	fmt.Printf("first start:   %s\n", formatDate(r.FirstServiceStart))
	fmt.Printf("first expiry:  %s\n", formatDate(r.FirstExpiringService))
	fmt.Printf("last expiry:   %s\n", formatDate(r.LastExpiringService))
	fmt.Printf("localities:    %s\n", strings.Join(res.LocalityIDs, ", "))
	fmt.Printf("admin areas:   %s\n", strings.Join(res.AdminAreaIDs, ", "))

	return nil
}

// Reads a dataset from disk, or downloads it if given a URL.
func readDataset(ctx context.Context, cfg *config.Config, source string) (string, []byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return "", nil, fmt.Errorf("reading dataset: %w", err)
		}
		return filepath.Base(source), data, nil
	}

	h, err := parseHeaders(headers)
	if err != nil {
		return "", nil, fmt.Errorf("invalid header: %w", err)
	}

	var d downloader.Downloader = downloader.HTTP{}
	if cacheDir != "" {
		d, err = downloader.NewFilesystem(cacheDir)
		if err != nil {
			return "", nil, err
		}
	}

	f, err := d.Get(ctx, source, h, downloader.GetOptions{
		MaxSize:  cfg.ETL.MaxFileSize,
		Timeout:  timeout,
		Cache:    cacheDir != "",
		CacheTTL: cacheTTL,
	})
	if errors.Is(err, downloader.ErrTooLarge) {
		return "", nil, parse.ErrFileTooLarge(source, cfg.ETL.MaxFileSize+1, cfg.ETL.MaxFileSize)
	}
	if err != nil {
		return "", nil, fmt.Errorf("downloading dataset: %w", err)
	}

	return f.Name, f.Data, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
