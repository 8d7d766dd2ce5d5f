package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"herdscreen/internal/api"
	"herdscreen/internal/client"
	"herdscreen/internal/filterspec"
	"herdscreen/internal/journal"
	"herdscreen/internal/logging"
	"herdscreen/internal/services"
)

// DefaultStartDelay is how long a submission waits before polling progress.
const DefaultStartDelay = 500 * time.Millisecond

// Fallback messages used when the server gives no reason.
const (
	FallbackBatchFilter  = "batch filter failed"
	FallbackSingleFilter = "filter failed"
	FallbackUpload       = "upload failed"
	FallbackBatchUpload  = "batch upload failed"
)

// Backend is the subset of the HTTP client the coordinator drives.
type Backend interface {
	FilterBatch(ctx context.Context, req client.BatchRequest) (api.JobResult, error)
	Filter(ctx context.Context, fileID string, filters any) (api.JobResult, error)
	Upload(ctx context.Context, path string) (api.UploadResponse, error)
	UploadBatch(ctx context.Context, paths []string) (api.BatchUploadResponse, error)
}

// Monitor is started shortly after a long submission begins and stopped
// when it ends. Stop must tolerate repeated calls.
type Monitor interface {
	Start()
	Stop()
}

// Indicator is the busy overlay shown while a submission is pending.
type Indicator interface {
	Show(label string)
	Hide()
}

// Submission is one batch filter job.
type Submission struct {
	Files          []string
	Spec           filterspec.Spec
	DisplayFields  []string
	MinMatchMonths int
}

// Options configures a Coordinator. Zero values pick defaults; a nil
// Journal disables recording and an empty LockPath disables the
// cross-process lock.
type Options struct {
	Clock      clockwork.Clock
	StartDelay time.Duration
	LockPath   string
	Journal    *journal.Store
	Indicator  Indicator
	Limits     Limits
	Logger     *slog.Logger
}

// Coordinator runs submissions one at a time, racing each long request
// against a delayed progress monitor start.
type Coordinator struct {
	backend   Backend
	monitor   Monitor
	clock     clockwork.Clock
	delay     time.Duration
	lockPath  string
	journal   *journal.Store
	indicator Indicator
	limits    Limits
	logger    *slog.Logger

	inFlight atomic.Bool
}

// New constructs a Coordinator. monitor may be nil for callers that do not
// poll progress.
func New(backend Backend, monitor Monitor, opts Options) *Coordinator {
	c := &Coordinator{
		backend:   backend,
		monitor:   monitor,
		clock:     opts.Clock,
		delay:     opts.StartDelay,
		lockPath:  strings.TrimSpace(opts.LockPath),
		journal:   opts.Journal,
		indicator: opts.Indicator,
		limits:    opts.Limits,
		logger:    logging.NewComponentLogger(opts.Logger, "batch"),
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.delay <= 0 {
		c.delay = DefaultStartDelay
	}
	if c.monitor == nil {
		c.monitor = noopMonitor{}
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	return c
}

// InFlight reports whether a submission is running in this process.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// SubmitBatch posts the batch filter job and waits for its result. Every
// failure comes back as *services.SubmissionError, except a concurrent
// submission which returns services.ErrSubmissionInFlight.
func (c *Coordinator) SubmitBatch(ctx context.Context, sub Submission) (result api.JobResult, err error) {
	if len(sub.Files) == 0 {
		return nil, &services.ValidationError{Reason: "no files selected"}
	}
	filters, err := sub.Spec.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}

	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, logger := c.tag(ctx)
	id, _ := services.JobIDFromContext(ctx)
	c.begin(ctx, journal.Entry{
		ID:             id,
		Kind:           journal.KindBatchFilter,
		Files:          sub.Files,
		Filters:        filters,
		DisplayFields:  sub.DisplayFields,
		MinMatchMonths: sub.MinMatchMonths,
	})
	defer func() { c.finish(ctx, id, filterOutcome(result, err)) }()

	logger.Info("batch filter submitted",
		logging.Int("files", len(sub.Files)),
		logging.Strings("optional_filters", sub.Spec.Optional()),
		logging.Int("min_match_months", sub.MinMatchMonths),
	)

	cleanup := c.engage("Filtering...", true)
	defer cleanup()

	req := client.BatchRequest{
		SelectedFiles:  sub.Files,
		Filters:        sub.Spec,
		DisplayFields:  sub.DisplayFields,
		MinMatchMonths: sub.MinMatchMonths,
	}
	res, err := await(ctx, func(ctx context.Context) (api.JobResult, error) {
		return c.backend.FilterBatch(ctx, req)
	})
	if err != nil {
		return nil, c.reject(logger, err, FallbackBatchFilter)
	}
	if res == nil || !res.Succeeded() {
		text := ""
		if res != nil {
			text = res.Text()
		}
		return nil, c.reject(logger, services.NewSubmissionError(text, FallbackBatchFilter, nil), FallbackBatchFilter)
	}

	cleanup()
	logger.Info("batch filter finished", logging.Bool("download", res.Download() != ""))
	return res, nil
}

// SubmitSingle runs the single-file filter behind the busy indicator
// without polling progress.
func (c *Coordinator) SubmitSingle(ctx context.Context, fileID string, spec filterspec.Spec) (result api.JobResult, err error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, &services.ValidationError{Reason: "no file selected"}
	}
	filters, err := spec.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode filters: %w", err)
	}

	release, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, logger := c.tag(ctx)
	id, _ := services.JobIDFromContext(ctx)
	c.begin(ctx, journal.Entry{ID: id, Kind: journal.KindSingleFilter, Files: []string{fileID}, Filters: filters})
	defer func() { c.finish(ctx, id, filterOutcome(result, err)) }()

	cleanup := c.engage("Filtering...", false)
	defer cleanup()

	res, err := await(ctx, func(ctx context.Context) (api.JobResult, error) {
		return c.backend.Filter(ctx, fileID, spec)
	})
	if err != nil {
		return nil, c.reject(logger, err, FallbackSingleFilter)
	}
	if res == nil || !res.Succeeded() {
		text := ""
		if res != nil {
			text = res.Text()
		}
		return nil, c.reject(logger, services.NewSubmissionError(text, FallbackSingleFilter, nil), FallbackSingleFilter)
	}
	logger.Info("filter finished", logging.String("file_id", fileID))
	return res, nil
}

// Upload validates and sends one file.
func (c *Coordinator) Upload(ctx context.Context, path string) (resp api.UploadResponse, err error) {
	if err := ValidateFile(path, c.limits); err != nil {
		return api.UploadResponse{}, err
	}

	release, err := c.acquire()
	if err != nil {
		return api.UploadResponse{}, err
	}
	defer release()

	ctx, logger := c.tag(ctx)
	id, _ := services.JobIDFromContext(ctx)
	c.begin(ctx, journal.Entry{ID: id, Kind: journal.KindUpload, Files: []string{filepath.Base(path)}})
	defer func() { c.finish(ctx, id, uploadOutcome(resp.Message, err, nil)) }()

	cleanup := c.engage("Uploading "+filepath.Base(path)+"...", false)
	defer cleanup()

	resp, err = await(ctx, func(ctx context.Context) (api.UploadResponse, error) {
		return c.backend.Upload(ctx, path)
	})
	if err != nil {
		return api.UploadResponse{}, c.reject(logger, err, FallbackUpload)
	}
	if !resp.Success {
		text := resp.Message
		if text == "" {
			text = resp.Detail
		}
		return resp, c.reject(logger, services.NewSubmissionError(text, FallbackUpload, nil), FallbackUpload)
	}
	logger.Info("file uploaded", logging.String("file", filepath.Base(path)), logging.String("file_id", resp.FileID))
	return resp, nil
}

// UploadBatch validates and sends several files while the progress monitor
// reports server-side parsing. When some files fail and others succeed it
// returns the response together with *services.PartialBatchFailure.
func (c *Coordinator) UploadBatch(ctx context.Context, paths []string) (resp api.BatchUploadResponse, err error) {
	if err := ValidateFiles(paths, c.limits); err != nil {
		return api.BatchUploadResponse{}, err
	}

	release, err := c.acquire()
	if err != nil {
		return api.BatchUploadResponse{}, err
	}
	defer release()

	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}

	ctx, logger := c.tag(ctx)
	id, _ := services.JobIDFromContext(ctx)
	c.begin(ctx, journal.Entry{ID: id, Kind: journal.KindBatchUpload, Files: names})
	defer func() { c.finish(ctx, id, uploadOutcome(resp.Message, err, &resp)) }()

	cleanup := c.engage(fmt.Sprintf("Uploading %d files...", len(paths)), true)
	defer cleanup()

	resp, err = await(ctx, func(ctx context.Context) (api.BatchUploadResponse, error) {
		return c.backend.UploadBatch(ctx, paths)
	})
	if err != nil {
		return api.BatchUploadResponse{}, c.reject(logger, err, FallbackBatchUpload)
	}
	if !resp.Success {
		return resp, c.reject(logger, services.NewSubmissionError(resp.Message, FallbackBatchUpload, nil), FallbackBatchUpload)
	}
	cleanup()

	logger.Info("batch upload finished",
		logging.Int("succeeded", len(resp.SuccessFiles)),
		logging.Int("failed", len(resp.FailedFiles)),
	)
	if len(resp.FailedFiles) == 0 {
		return resp, nil
	}
	if len(resp.SuccessFiles) == 0 {
		details := make([]string, 0, len(resp.FailedFiles))
		for _, f := range resp.FailedFiles {
			details = append(details, f.Filename+": "+f.Error)
		}
		return resp, services.NewSubmissionError(FallbackBatchUpload+": "+strings.Join(details, "; "), FallbackBatchUpload, nil)
	}
	partial := &services.PartialBatchFailure{Failed: resp.FailedFiles}
	for _, f := range resp.SuccessFiles {
		partial.Succeeded = append(partial.Succeeded, f.Filename)
	}
	return resp, partial
}

// acquire claims the single submission slot in this process and, when a
// lock path is configured, across processes.
func (c *Coordinator) acquire() (func(), error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, services.ErrSubmissionInFlight
	}
	if c.lockPath == "" {
		return func() { c.inFlight.Store(false) }, nil
	}
	lock := flock.New(c.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		c.inFlight.Store(false)
		return nil, services.Wrap(services.ErrConfiguration, "batch", "acquire lock", c.lockPath, err)
	}
	if !ok {
		c.inFlight.Store(false)
		return nil, services.ErrSubmissionInFlight
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			c.logger.Warn("failed to release submission lock", logging.String("path", c.lockPath), logging.Error(err))
		}
		c.inFlight.Store(false)
	}, nil
}

// tag assigns a job id that doubles as the request id.
func (c *Coordinator) tag(ctx context.Context) (context.Context, *slog.Logger) {
	id := uuid.NewString()
	ctx = services.WithRequestID(services.WithJobID(ctx, id), id)
	return ctx, logging.WithContext(ctx, c.logger)
}

// engage shows the indicator and, for monitored jobs, arms the delayed
// monitor start. The returned cleanup cancels the pending start, stops the
// monitor and hides the indicator, once.
func (c *Coordinator) engage(label string, monitored bool) func() {
	c.indicator.Show(label)

	var (
		mu    sync.Mutex
		ended bool
		timer clockwork.Timer
	)
	if monitored {
		timer = c.clock.AfterFunc(c.delay, func() {
			mu.Lock()
			defer mu.Unlock()
			if ended {
				return
			}
			c.monitor.Start()
		})
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			ended = true
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			if monitored {
				c.monitor.Stop()
			}
			c.indicator.Hide()
		})
	}
}

// reject converts a failed request into a SubmissionError and logs it.
func (c *Coordinator) reject(logger *slog.Logger, err error, fallback string) error {
	var submission *services.SubmissionError
	if !errors.As(err, &submission) {
		submission = submissionFrom(err, fallback)
	}
	logging.WarnWithImpact(logger, "submission failed", "submission_failed",
		"no result was produced; fix the reported problem and resubmit",
		logging.String("reason", submission.Message),
		logging.Bool("connectivity", services.IsConnectivity(err)),
	)
	return submission
}

func submissionFrom(err error, fallback string) *services.SubmissionError {
	var status *client.StatusError
	if errors.As(err, &status) {
		return services.NewSubmissionError(status.Body.Text(), fmt.Sprintf("%s (HTTP %d)", fallback, status.StatusCode), err)
	}
	if errors.Is(err, context.Canceled) {
		return services.NewSubmissionError("", fallback+": cancelled", err)
	}
	return services.NewSubmissionError("", fallback+": "+err.Error(), err)
}

// await runs call in its own goroutine and waits for its reply or ctx.
func await[T any](ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	type reply struct {
		value T
		err   error
	}
	pending := make(chan reply, 1)
	go func() {
		value, err := call(ctx)
		pending <- reply{value: value, err: err}
	}()
	select {
	case r := <-pending:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Coordinator) begin(ctx context.Context, entry journal.Entry) {
	if c.journal == nil {
		return
	}
	// Holding the lock file means no other process is mid-submission, so
	// anything still marked running was left by one that died.
	if c.lockPath != "" {
		if n, err := c.journal.AbandonRunning(ctx); err != nil {
			c.logger.Warn("journal cleanup failed", logging.Error(err))
		} else if n > 0 {
			c.logger.Info("marked stale journal entries as failed", logging.Int64("count", n))
		}
	}
	if err := c.journal.Begin(ctx, entry); err != nil {
		c.logger.Warn("journal begin failed", logging.String("job_id", entry.ID), logging.Error(err))
	}
}

func (c *Coordinator) finish(ctx context.Context, id string, outcome journal.Outcome) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Finish(context.WithoutCancel(ctx), id, outcome); err != nil {
		c.logger.Warn("journal finish failed", logging.String("job_id", id), logging.Error(err))
	}
}

type noopMonitor struct{}

func (noopMonitor) Start() {}
func (noopMonitor) Stop()  {}

type noopIndicator struct{}

func (noopIndicator) Show(string) {}
func (noopIndicator) Hide()       {}
