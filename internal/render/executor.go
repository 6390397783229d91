package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidforge/internal/assets"
	"vidforge/internal/compose"
	"vidforge/internal/domain"
	"vidforge/internal/filtergraph"
	"vidforge/internal/mergefield"
	"vidforge/internal/storage"
	"vidforge/internal/timeline"
	"vidforge/internal/transition"
	"vidforge/internal/webhook"
)

// Progress checkpoints at each phase boundary: normalize owns 0-10,
// merge fields 10-20, asset preparation 20-40, compile+render 40-90,
// publish 90-100.
const (
	progressNormalized = 10
	progressResolved   = 20
	progressPrepared   = 40
	progressRendered   = 90
)

// JobQueue is the slice of the job store the worker side drives. The
// pg-backed queue satisfies it; tests substitute an in-memory fake.
type JobQueue interface {
	Claim(ctx context.Context) (*domain.Job, error)
	Progress(ctx context.Context, jobID string, percent int) error
	Complete(ctx context.Context, jobID string, result domain.Result) error
	Fail(ctx context.Context, jobID string, failure domain.Failure) error
	Retry(ctx context.Context, jobID string, failure domain.Failure, delay time.Duration) error
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// Executor runs one claimed job through the full pipeline: normalize,
// resolve merge fields, prepare assets, compile and render, publish.
type Executor struct {
	queue    JobQueue
	cache    *assets.Cache
	store    storage.Store
	renderer *Renderer
	hooks    *webhook.Dispatcher
	logger   zerolog.Logger

	workDir   string
	timeout   time.Duration
	retryBase time.Duration
	retryCap  time.Duration
	blending  transition.Options
}

func NewExecutor(
	q JobQueue,
	cache *assets.Cache,
	store storage.Store,
	renderer *Renderer,
	hooks *webhook.Dispatcher,
	workDir string,
	timeout, retryBase, retryCap time.Duration,
	blending transition.Options,
	logger zerolog.Logger,
) *Executor {
	return &Executor{
		queue:     q,
		cache:     cache,
		store:     store,
		renderer:  renderer,
		hooks:     hooks,
		logger:    logger,
		workDir:   workDir,
		timeout:   timeout,
		retryBase: retryBase,
		retryCap:  retryCap,
		blending:  blending,
	}
}

// Process drives a claimed job to completion, retry or terminal failure.
func (e *Executor) Process(ctx context.Context, job *domain.Job) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	log := e.logger.With().
		Str("job_id", job.ID).
		Int("attempt", job.AttemptsMade).
		Int("max_attempts", job.MaxAttempts).
		Logger()
	log.Info().Msg("render: job started")

	// An explicit cancel is the only way to stop a launched render: the
	// watcher kills the job context, which kills the renderer process.
	go e.watchCancel(ctx, cancel, job.ID)

	result, err := e.run(ctx, job, log)
	if cancelled, checkErr := e.isCancelled(job.ID); checkErr == nil && cancelled {
		log.Info().Msg("render: job cancelled, attempt abandoned")
		return
	}
	if err != nil {
		e.handleFailure(job, err, log)
		return
	}

	if err := e.queue.Complete(context.Background(), job.ID, *result); err != nil {
		log.Error().Err(err).Msg("render: persist completion")
		return
	}
	log.Info().Str("url", result.URL).Msg("render: job completed")
	e.notifyTerminal(job)
}

func (e *Executor) run(ctx context.Context, job *domain.Job, log zerolog.Logger) (*domain.Result, error) {
	payload := job.Payload

	// Phase 1: structural validation and normalization.
	normalized, report, err := timeline.Normalize(payload.Timeline, log)
	if err != nil {
		return nil, err
	}
	if report.RemovedClips > 0 {
		log.Info().Int("clips", report.RemovedClips).Msg("render: dropped unusable clips")
	}
	e.progress(job.ID, progressNormalized, log)

	// Phase 2: merge-field contract check, then substitution over the
	// normalized timeline.
	values, err := mergefield.Validate(normalized.MergeFields, payload.MergeFields)
	if err != nil {
		return nil, err
	}
	resolved, fieldReport, err := mergefield.Resolve(normalized, values)
	if err != nil {
		return nil, err
	}
	for _, key := range fieldReport.UsedUndeclared {
		log.Warn().Str("field", key).Msg("render: placeholder used without declaration")
	}
	e.progress(job.ID, progressResolved, log)

	// Phase 3: fetch every remote source. A single failed download does
	// not abort the phase; the graph build fails fast if the asset is
	// actually required.
	index, err := e.cache.Prefetch(ctx, assets.CollectSources(resolved))
	if err != nil {
		log.Warn().Err(err).Msg("render: some assets failed to prepare")
	}
	e.progress(job.ID, progressPrepared, log)

	// Phase 4: compile the filter graph and encode.
	composition := compose.Compose(resolved, e.blending, log)
	graph, err := filtergraph.Build(composition, index, log)
	if err != nil {
		return nil, err
	}

	attemptDir, err := os.MkdirTemp(e.workDir, "render-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("render: work dir: %w", err)
	}
	defer os.RemoveAll(attemptDir)

	dest := filepath.Join(attemptDir, "output."+format(payload.Output))
	if err := e.renderer.Render(ctx, graph, payload.Output, dest); err != nil {
		return nil, err
	}
	e.progress(job.ID, progressRendered, log)

	// Phase 5: publish.
	key := fmt.Sprintf("renders/%s/output.%s", job.ID, format(payload.Output))
	url, size, err := e.store.Publish(ctx, key, dest)
	if err != nil {
		return nil, fmt.Errorf("render: publish: %w", err)
	}

	duration := composition.Envelope
	if probed, err := e.renderer.Probe(ctx, dest); err == nil && probed > 0 {
		duration = probed
	}

	return &domain.Result{
		URL:             url,
		DurationSeconds: duration,
		SizeBytes:       size,
		Format:          format(payload.Output),
	}, nil
}

// handleFailure decides between retry and terminal failure. Structural
// problems never retry; transient ones back off exponentially.
func (e *Executor) handleFailure(job *domain.Job, err error, log zerolog.Logger) {
	failure, retryable := classify(err)

	if retryable && job.AttemptsMade < job.MaxAttempts {
		delay := Backoff(e.retryBase, e.retryCap, job.AttemptsMade)
		log.Warn().Err(err).Dur("delay", delay).Msg("render: attempt failed, retrying")
		if qErr := e.queue.Retry(context.Background(), job.ID, failure, delay); qErr != nil {
			log.Error().Err(qErr).Msg("render: persist retry")
		}
		return
	}

	log.Error().Err(err).Str("code", failure.Code).Msg("render: job failed")
	if qErr := e.queue.Fail(context.Background(), job.ID, failure); qErr != nil {
		log.Error().Err(qErr).Msg("render: persist failure")
	}
	e.notifyTerminal(job)
}

// notifyTerminal re-reads the job and delivers the webhook if it landed in
// a terminal state. Reading back avoids announcing a state a concurrent
// cancel already overwrote.
func (e *Executor) notifyTerminal(job *domain.Job) {
	if job.Payload.WebhookURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	current, err := e.queue.Get(ctx, job.ID)
	if err != nil || !current.State.Terminal() {
		return
	}
	e.hooks.Notify(ctx, job.Payload.WebhookURL, webhook.Event{
		JobID:      current.ID,
		State:      current.State,
		Result:     current.Result,
		Failure:    current.Failure,
		FinishedAt: current.UpdatedAt,
	})
}

// watchCancel polls the job state and aborts the attempt when a cancel
// request lands while the job is in flight.
func (e *Executor) watchCancel(ctx context.Context, cancel context.CancelFunc, jobID string) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cancelled, err := e.isCancelled(jobID); err == nil && cancelled {
				cancel()
				return
			}
		}
	}
}

func (e *Executor) isCancelled(jobID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := e.queue.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.State == domain.JobCancelled, nil
}

func (e *Executor) progress(jobID string, percent int, log zerolog.Logger) {
	if err := e.queue.Progress(context.Background(), jobID, percent); err != nil {
		log.Warn().Err(err).Int("percent", percent).Msg("render: persist progress")
	}
}

// Backoff yields the delay before the next attempt: base doubled per
// attempt already made, capped.
func Backoff(base, limit time.Duration, attemptsMade int) time.Duration {
	delay := base
	for i := 1; i < attemptsMade; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	if delay > limit {
		return limit
	}
	return delay
}

// classify maps a pipeline error to its failure code and retry class.
func classify(err error) (domain.Failure, bool) {
	var contract *mergefield.ContractError
	if errors.As(err, &contract) {
		if f := contract.First(); f != nil {
			return *f, false
		}
	}
	var invalid *timeline.ValidationError
	if errors.As(err, &invalid) {
		return domain.Failure{
			Code:    domain.CodeInvalidTimeline,
			Message: "timeline failed validation",
			Detail:  invalid.Error(),
		}, false
	}

	switch {
	case errors.Is(err, domain.ErrAssetUnavailable):
		return domain.Failure{
			Code:    domain.CodeAssetUnavailable,
			Message: "a referenced asset could not be fetched",
			Detail:  err.Error(),
		}, true
	case errors.Is(err, domain.ErrUnknownClipType),
		errors.Is(err, domain.ErrUnknownEffectType),
		errors.Is(err, domain.ErrUnknownTransition):
		return domain.Failure{
			Code:    domain.CodeCompilationFailed,
			Message: "timeline could not be compiled",
			Detail:  err.Error(),
		}, false
	case errors.Is(err, domain.ErrRendererFailed):
		return domain.Failure{
			Code:    domain.CodeExecutionFailed,
			Message: "renderer exited with an error",
			Detail:  err.Error(),
		}, true
	}

	return domain.Failure{
		Code:    domain.CodeExecutionFailed,
		Message: "render attempt failed",
		Detail:  err.Error(),
	}, true
}
