package service

import (
	"context"
	"errors"
	"time"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
)

// JobClient is the dataset service contract. Implementations make exactly one
// round trip per call and never retry.
type JobClient interface {
	Trigger(ctx context.Context, sourceURL string) (string, error)
	Poll(ctx context.Context, jobID string) (domain.JobStatus, error)
	FetchResult(ctx context.Context, jobID string) (map[string]interface{}, error)
}

// ScrapeOutcome is the terminal result of one scrape: Ready with a payload,
// Failed with a typed error, or TimedOut with a timeout error.
type ScrapeOutcome struct {
	Job     domain.ScrapeJob
	Payload map[string]interface{}
	Err     error
}

// State returns the terminal job status.
func (o *ScrapeOutcome) State() domain.JobStatus {
	return o.Job.Status
}

// ScrapeService drives trigger → poll-until-ready → fetch under a retry policy.
// It holds no per-job state; every Run owns its own job.
type ScrapeService struct {
	client JobClient
	policy RetryPolicy
}

// NewScrapeService creates a new scrape service.
// Parameters:
//   - client: dataset service client.
//   - policy: poll cadence, attempt budget and deadline.
// Returns:
//   - *ScrapeService: initialized service.
func NewScrapeService(client JobClient, policy RetryPolicy) *ScrapeService {
	return &ScrapeService{
		client: client,
		policy: policy,
	}
}

// errJobFailed marks a poll that reported the remote job as failed.
var errJobFailed = errors.New("scrape job reported failed")

// Run scrapes sourceURL and blocks until a terminal state is reached.
func (s *ScrapeService) Run(ctx context.Context, sourceURL string) *ScrapeOutcome {
	return s.RunWithEvents(ctx, sourceURL, nil)
}

// RunWithEvents is Run that also sends every transition to events.
// The channel, when non-nil, is closed before RunWithEvents returns.
func (s *ScrapeService) RunWithEvents(ctx context.Context, sourceURL string, events chan<- domain.JobEvent) *ScrapeOutcome {
	if events != nil {
		defer close(events)
	}

	run := &scrapeRun{
		job:    domain.ScrapeJob{SourceURL: sourceURL, StartedAt: time.Now()},
		events: events,
	}
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldComponent: "scrape",
		logger.FieldSourceURL: sourceURL,
	})
	run.transition(ctx, domain.JobStatusPending, "")

	jobID, err := s.client.Trigger(ctx, sourceURL)
	if err != nil {
		err = asKind(err, domain.KindTriggerFailed, "trigger failed")
		logger.CtxError(ctx, "Scrape trigger failed: %v", err)
		return run.finish(ctx, domain.JobStatusFailed, err)
	}
	run.job.JobID = jobID
	ctx = logger.SetJobID(ctx, jobID)
	run.transition(ctx, domain.JobStatusRunning, "")

	attempts, err := s.policy.Do(ctx, func(pctx context.Context, attempt int) (bool, error) {
		run.job.Attempts = attempt
		status, err := s.client.Poll(pctx, jobID)
		if err != nil {
			logger.CtxWarn(ctx, "Poll attempt %d failed, will retry: %v", attempt, err)
			return false, err
		}
		switch status {
		case domain.JobStatusReady:
			return true, nil
		case domain.JobStatusFailed:
			return true, errJobFailed
		default:
			logger.CtxDebug(ctx, "Poll attempt %d: job still %s", attempt, status)
			return false, nil
		}
	})
	run.job.Attempts = attempts

	if err != nil {
		status, perr := classifyPollError(err)
		return run.finish(ctx, status, perr)
	}

	payload, err := s.client.FetchResult(ctx, jobID)
	if err != nil {
		err = asKind(err, domain.KindFetchFailed, "fetch failed")
		logger.CtxError(ctx, "Scrape fetch failed: %v", err)
		return run.finish(ctx, domain.JobStatusFailed, err)
	}

	outcome := run.finish(ctx, domain.JobStatusReady, nil)
	outcome.Payload = payload
	return outcome
}

// classifyPollError maps a polling error onto a terminal status and typed error.
func classifyPollError(err error) (domain.JobStatus, error) {
	if errors.Is(err, errJobFailed) {
		return domain.JobStatusFailed, domain.NewError(domain.KindJobFailed, "scrape job failed at the dataset service")
	}

	var re *RetryError
	if !errors.As(err, &re) {
		return domain.JobStatusFailed, asKind(err, domain.KindPollFailed, "poll failed")
	}

	switch {
	case errors.Is(re.Reason, ErrDeadlineExceeded), errors.Is(re.Reason, context.DeadlineExceeded):
		return domain.JobStatusTimedOut, domain.WrapError(domain.KindTimeout, re, "scrape timed out")
	case errors.Is(re.Reason, ErrAttemptsExhausted) && re.Last == nil:
		return domain.JobStatusTimedOut, domain.WrapError(domain.KindTimeout, re, "scrape timed out")
	default:
		// budget spent while the status could not be checked, or the caller went away
		return domain.JobStatusFailed, domain.WrapError(domain.KindPollFailed, re, "poll failed")
	}
}

// asKind keeps typed errors and wraps anything else with the given kind.
func asKind(err error, kind domain.ErrorKind, msg string) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.WrapError(kind, err, "%s", msg)
}

type scrapeRun struct {
	job    domain.ScrapeJob
	events chan<- domain.JobEvent
}

// transition moves the job to status unless it is already terminal.
func (r *scrapeRun) transition(ctx context.Context, to domain.JobStatus, detail string) bool {
	if r.job.Status.IsTerminal() {
		return false
	}
	from := r.job.Status
	r.job.Status = to

	if to.IsTerminal() {
		now := time.Now()
		r.job.FinishedAt = &now
	}

	if r.events != nil {
		evt := domain.JobEvent{
			SourceURL: r.job.SourceURL,
			JobID:     r.job.JobID,
			From:      from,
			To:        to,
			Attempt:   r.job.Attempts,
			Detail:    detail,
			At:        time.Now(),
		}
		select {
		case r.events <- evt:
		case <-ctx.Done():
		}
	}
	return true
}

func (r *scrapeRun) finish(ctx context.Context, status domain.JobStatus, err error) *ScrapeOutcome {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	r.transition(ctx, status, detail)

	logger.With(logger.Fields{
		logger.FieldStatus:     string(r.job.Status),
		logger.FieldDurationMs: time.Since(r.job.StartedAt).Milliseconds(),
	}).WithAttempts(r.job.Attempts).Info(ctx, "Scrape finished: %s", r.job.Status)

	return &ScrapeOutcome{Job: r.job, Err: err}
}
