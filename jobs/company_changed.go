package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/biztime/internal/jobs"
	"github.com/odyssey-erp/biztime/internal/shared"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CacheBumper retires cached reads.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// CompanyJobs processes company tasks.
type CompanyJobs struct {
	audit   AuditRecorder
	cache   CacheBumper
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewCompanyJobs constructs the company task processors. cache and metrics may be nil.
func NewCompanyJobs(audit AuditRecorder, cache CacheBumper, logger *slog.Logger, metrics *jobmetrics.Metrics) *CompanyJobs {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompanyJobs{audit: audit, cache: cache, logger: logger, metrics: metrics}
}

// Handlers lists the task handlers to register on the worker.
func (j *CompanyJobs) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskCompanyChanged, Handler: j.HandleCompanyChanged},
		{Type: TaskCompanyCacheBump, Handler: j.HandleCacheBump},
	}
}

// HandleCompanyChanged writes the audit entry then bumps the cache. Both
// steps are idempotent so asynq retries are safe.
func (j *CompanyJobs) HandleCompanyChanged(ctx context.Context, t *asynq.Task) error {
	return j.metrics.Track(TaskCompanyChanged).End(j.handleCompanyChanged(ctx, t))
}

func (j *CompanyJobs) handleCompanyChanged(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeCompanyChanged(t)
	if err != nil {
		j.logger.Error("drop company change", slog.Any("error", err))
		return err
	}

	entry := shared.AuditLog{
		EventID:  payload.EventID,
		Action:   "company." + payload.Action,
		Entity:   "company",
		EntityID: payload.Code,
		Meta:     map[string]any{"source": "api"},
		At:       payload.At,
	}
	if j.audit != nil {
		if err := j.audit.Record(ctx, entry); err != nil {
			return fmt.Errorf("jobs: audit company %s: %w", payload.Code, err)
		}
		j.metrics.AddAudited()
	}
	if err := j.bump(ctx); err != nil {
		return err
	}
	j.logger.Info("company change processed",
		slog.String("event_id", payload.EventID),
		slog.String("action", payload.Action),
		slog.String("code", payload.Code))
	return nil
}

// HandleCacheBump retires every cached company read.
func (j *CompanyJobs) HandleCacheBump(ctx context.Context, _ *asynq.Task) error {
	return j.metrics.Track(TaskCompanyCacheBump).End(j.bump(ctx))
}

func (j *CompanyJobs) bump(ctx context.Context) error {
	if j.cache == nil {
		return nil
	}
	if err := j.cache.Bump(ctx); err != nil {
		return fmt.Errorf("jobs: bump company cache: %w", err)
	}
	return nil
}
