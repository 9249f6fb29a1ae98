package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/georgeshao/fio-dashboard/internal/metrics"
	"github.com/georgeshao/fio-dashboard/pkg/types"
)

var ErrImportInProgress = errors.New("an import is already in progress")

type Config struct {
	MaxWorkers     int
	FilesPerSecond float64
}

func DefaultConfig() Config {
	return Config{
		MaxWorkers:     4,
		FilesPerSecond: 5,
	}
}

// Uploader sends one FIO result file upstream. The gateway implements it and
// invalidates the test run and filter option caches on success.
type Uploader interface {
	ImportFile(ctx context.Context, filename string, data []byte, meta types.ImportMetadata) (types.ImportResponse, error)
}

type File struct {
	Name string
	Data []byte
}

// Importer uploads batches of FIO result files with bounded concurrency. Only
// one batch runs at a time.
type Importer struct {
	uploader Uploader
	config   Config
	limiter  *rate.Limiter
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu     sync.Mutex
	active bool
}

func New(uploader Uploader, config Config, logger *zap.SugaredLogger) *Importer {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	limit := rate.Inf
	if config.FilesPerSecond > 0 {
		limit = rate.Limit(config.FilesPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Importer{
		uploader: uploader,
		config:   config,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		now:      time.Now,
	}
}

// Active reports whether a batch is running.
func (im *Importer) Active() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.active
}

// Import validates and uploads files. A file that fails is reported in its
// result and does not stop the others; the returned error is only set when
// the batch could not start.
func (im *Importer) Import(ctx context.Context, files []File, meta types.ImportMetadata) (*types.ImportBatchResponse, error) {
	im.mu.Lock()
	if im.active {
		im.mu.Unlock()
		return nil, ErrImportInProgress
	}
	im.active = true
	im.mu.Unlock()

	defer func() {
		im.mu.Lock()
		im.active = false
		im.mu.Unlock()
	}()

	batchID := "imp_" + uuid.NewString()
	started := im.now()
	im.logger.Infow("Starting import", "batch_id", batchID, "files", len(files))

	results := make([]types.ImportFileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, im.config.MaxWorkers)

	for i, file := range files {
		results[i] = types.ImportFileResult{Filename: file.Name, Status: types.ImportQueued}

		g.Go(func() error {
			if err := Validate(file.Name, file.Data); err != nil {
				im.fail(batchID, &results[i], err)
				return nil
			}

			if err := im.limiter.Wait(ctx); err != nil {
				im.fail(batchID, &results[i], err)
				return nil
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			im.upload(ctx, batchID, file, meta, &results[i])
			return nil
		})
	}

	// Workers never return errors; outcomes are in results.
	_ = g.Wait()

	report := &types.ImportBatchResponse{
		BatchID:   batchID,
		Results:   results,
		StartedAt: started.UTC().Format(time.RFC3339),
		Duration:  im.now().Sub(started).String(),
	}
	for _, r := range results {
		if r.Status == types.ImportCompleted {
			report.Imported++
		} else {
			report.Failed++
		}
	}

	im.logger.Infow("Import finished",
		"batch_id", batchID,
		"imported", report.Imported,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report, nil
}

func (im *Importer) upload(ctx context.Context, batchID string, file File, meta types.ImportMetadata, result *types.ImportFileResult) {
	resp, err := im.uploader.ImportFile(ctx, file.Name, file.Data, meta)
	if err != nil {
		im.fail(batchID, result, fmt.Errorf("upload failed: %w", err))
		return
	}

	id := resp.TestRunID
	result.Status = types.ImportCompleted
	result.TestRunID = &id
	metrics.RecordImport(string(types.ImportCompleted))
	im.logger.Infow("Imported file", "batch_id", batchID, "filename", file.Name, "test_run_id", id)
}

func (im *Importer) fail(batchID string, result *types.ImportFileResult, err error) {
	msg := err.Error()
	result.Status = types.ImportFailed
	result.Error = &msg
	metrics.RecordImport(string(types.ImportFailed))
	im.logger.Warnw("Import of file failed", "batch_id", batchID, "filename", result.Filename, "error", err)
}
