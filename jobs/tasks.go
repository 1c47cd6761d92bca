package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/biztime/internal/companies"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCompanyChanged records an audit entry and refreshes caches after a company write.
	TaskCompanyChanged = "company:changed"
	// TaskCompanyCacheBump retires every cached company read.
	TaskCompanyCacheBump = "company:cache_bump"

	companyChangedMaxRetry = 5
)

// CompanyChangedPayload is the wire form of companies.Change.
type CompanyChangedPayload struct {
	EventID string    `json:"event_id"`
	Action  string    `json:"action"`
	Code    string    `json:"code"`
	At      time.Time `json:"at"`
}

// NewCompanyChangedTask builds a task for change. The generated event id is
// also the asynq task id, so a duplicate enqueue is rejected by the broker.
func NewCompanyChangedTask(change companies.Change) (*asynq.Task, error) {
	if change.Action == "" || change.Code == "" {
		return nil, errors.New("jobs: company change requires action and code")
	}
	payload := CompanyChangedPayload{
		EventID: uuid.NewString(),
		Action:  change.Action,
		Code:    change.Code,
		At:      change.At,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal company change: %w", err)
	}
	return asynq.NewTask(TaskCompanyChanged, data,
		asynq.TaskID(payload.EventID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(companyChangedMaxRetry),
	), nil
}

// NewCompanyCacheBumpTask builds a cache invalidation task.
func NewCompanyCacheBumpTask() *asynq.Task {
	return asynq.NewTask(TaskCompanyCacheBump, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(3))
}

func decodeCompanyChanged(t *asynq.Task) (CompanyChangedPayload, error) {
	var payload CompanyChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("jobs: decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.EventID == "" || payload.Action == "" || payload.Code == "" {
		return payload, fmt.Errorf("jobs: incomplete %s payload: %w", t.Type(), asynq.SkipRetry)
	}
	return payload, nil
}
