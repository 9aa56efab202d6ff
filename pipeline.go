package txc

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tidbyt.dev/txc/load"
	"tidbyt.dev/txc/logging"
	"tidbyt.dev/txc/model"
	"tidbyt.dev/txc/parse"
	"tidbyt.dev/txc/storage"
	"tidbyt.dev/txc/transform"
)

const (
	DefaultMaxFileSize         = 500 << 20 // 500 MB
	DefaultMaxUncompressedSize = 2 << 30   // 2 GB
)

// Progress milestones, in percent. Archive extraction reports within
// [parse.ArchiveProgressStart, parse.ArchiveProgressEnd] before
// ProgressExtracted.
const (
	ProgressExtracted   = 70
	ProgressTransformed = 80
	ProgressLoaded      = 85
	ProgressAssociated  = 90
	ProgressDone        = 100
)

// ProgressReporter is told how far along a run is. Failures are
// logged and otherwise ignored.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, revisionID int64, percent int) error
}

type ProgressFunc func(ctx context.Context, revisionID int64, percent int) error

func (f ProgressFunc) ReportProgress(ctx context.Context, revisionID int64, percent int) error {
	return f(ctx, revisionID, percent)
}

// Scanner checks an upload for malware. A non-empty finding names
// what was found and rejects the file.
type Scanner interface {
	Scan(ctx context.Context, filename string, data []byte) (string, error)
}

// Pipeline runs extract, transform and load for one upload against
// a revision.
//
// At most one run per revision may be in flight. The pipeline does
// not enforce this.
type Pipeline struct {
	MaxFileSize         int64
	MaxUncompressedSize int64
	RejectExpired       bool
	BatchSize           int

	Progress ProgressReporter
	Scanner  Scanner

	// Defaults to the logger in the run's context. Progress reporters
	// and scanners are handed a context carrying the run logger.
	Logger *slog.Logger

	// Reference time for expiry checks. Defaults to time.Now.
	Now func() time.Time

	store storage.Storage
}

// Creates a Pipeline persisting into the given storage.
func NewPipeline(s storage.Storage) *Pipeline {
	return &Pipeline{
		MaxFileSize:         DefaultMaxFileSize,
		MaxUncompressedSize: DefaultMaxUncompressedSize,
		BatchSize:           load.DefaultBatchSize,
		Now:                 time.Now,
		store:               s,
	}
}

// Outcome of a successful run.
type Result struct {
	Report *model.ETLReport

	// Localities and admin areas served by the revision's service
	// patterns, deduplicated and sorted.
	LocalityIDs  []string
	AdminAreaIDs []string
}

// Run processes an upload into the revision. Filenames ending in
// .zip are treated as archives, .xml as single documents. Anything
// else fails with a NoDataFound file error.
//
// File errors are returned as *parse.FileError, and a run with no
// lines as load.ErrNoResultsLoaded. Nothing is persisted unless the
// whole run succeeds. Cancelling ctx before the load stage aborts
// the run.
func (p *Pipeline) Run(ctx context.Context, revisionID int64, filename string, data []byte) (*Result, error) {
	log := p.logger(ctx).With(
		slog.Int64("revision_id", revisionID),
		slog.String("filename", filename),
	)
	ctx = logging.WithLogger(ctx, log)

	done := logging.Stage(log, "extract", slog.Int("bytes", len(data)))
	b, err := p.extract(ctx, log, revisionID, filename, data)
	if err != nil {
		logging.LogError(log, "extraction failed", err)
		return nil, err
	}
	done(
		slog.Int("files", len(b.Files)),
		slog.Int("services", len(b.Services)),
		slog.Int("journey_patterns", len(b.JourneyPatterns)),
		slog.Int("vehicle_journeys", len(b.VehicleJourneys)),
	)
	p.report(ctx, log, revisionID, ProgressExtracted)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done = logging.Stage(log, "transform")
	ref, err := transform.ReadReference(p.store, b)
	if err != nil {
		return nil, fmt.Errorf("reading reference data: %w", err)
	}
	res := transform.Transform(b, ref)
	done(
		slog.Int("stops", len(res.Stops)),
		slog.Int("service_patterns", len(res.ServicePatterns)),
		slog.Int("service_links", len(res.ServiceLinks)),
	)
	p.report(ctx, log, revisionID, ProgressTransformed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := p.load(log, revisionID, res)
	if err != nil {
		logging.LogError(log, "load failed", err)
		return nil, err
	}
	p.report(ctx, log, revisionID, ProgressLoaded)

	// The load is committed, so cancellation no longer applies.
	localities, areas, err := p.associations(revisionID)
	if err != nil {
		return nil, err
	}
	p.report(ctx, log, revisionID, ProgressAssociated)

	logging.LogOperation(log, "run_finished",
		slog.String("name", report.Name),
		slog.Int("line_count", report.LineCount),
		slog.Int("localities", len(localities)),
		slog.Int("admin_areas", len(areas)),
	)
	p.report(ctx, log, revisionID, ProgressDone)

	return &Result{
		Report:       report,
		LocalityIDs:  localities,
		AdminAreaIDs: areas,
	}, nil
}

func (p *Pipeline) extract(
	ctx context.Context,
	log *slog.Logger,
	revisionID int64,
	filename string,
	data []byte,
) (*parse.Bundle, error) {

	if p.MaxFileSize > 0 && int64(len(data)) > p.MaxFileSize {
		return nil, parse.ErrFileTooLarge(filename, int64(len(data)), p.MaxFileSize)
	}

	if p.Scanner != nil {
		found, err := p.Scanner.Scan(ctx, filename, data)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", filename, err)
		}
		if found != "" {
			return nil, parse.ErrSuspiciousFile(filename, found)
		}
	}

	opts := parse.Options{
		RejectExpired: p.RejectExpired,
		Now:           p.now(),
	}

	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return parse.ExtractArchive(filename, data, parse.ArchiveOptions{
			Options:             opts,
			MaxUncompressedSize: p.MaxUncompressedSize,
			Progress: func(percent int) {
				p.report(ctx, log, revisionID, percent)
			},
		})
	case strings.HasSuffix(lower, ".xml"):
		return parse.ExtractDocument(filename, data, opts)
	}

	return nil, parse.ErrNoDataFound(filename)
}

// Loads the result, resolving service links against those already
// persisted.
func (p *Pipeline) load(log *slog.Logger, revisionID int64, res *transform.Result) (*model.ETLReport, error) {
	known, err := p.store.ServiceLinks(res.ServiceLinks)
	if err != nil {
		return nil, fmt.Errorf("reading service links: %w", err)
	}

	links := make(map[model.StopPair]int64, len(known))
	for _, link := range known {
		links[link.Pair()] = link.ID
	}
	log.Debug("service link cache initialised", slog.Int("service_links", len(links)))

	loader := &load.Loader{
		Store:     p.store,
		BatchSize: p.BatchSize,
		Logger:    log,
	}
	return loader.Load(revisionID, res, links)
}

// Rolls the service patterns' localities and admin areas up to the
// revision.
func (p *Pipeline) associations(revisionID int64) ([]string, []string, error) {
	patterns, err := p.store.ListServicePatterns(revisionID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing service patterns: %w", err)
	}

	localities := map[string]bool{}
	areas := map[string]bool{}
	for _, sp := range patterns {
		for _, id := range sp.LocalityIDs {
			localities[id] = true
		}
		for _, id := range sp.AdminAreaIDs {
			areas[id] = true
		}
	}

	return sortedKeys(localities), sortedKeys(areas), nil
}

func (p *Pipeline) report(ctx context.Context, log *slog.Logger, revisionID int64, percent int) {
	if p.Progress == nil {
		return
	}
	err := p.Progress.ReportProgress(ctx, revisionID, percent)
	if err != nil {
		logging.LogError(log, "failed to report progress", err, slog.Int("percent", percent))
	}
}

// The configured logger, else the one carried by ctx.
func (p *Pipeline) logger(ctx context.Context) *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logging.FromContext(ctx)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
