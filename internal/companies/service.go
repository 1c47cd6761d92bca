package companies

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventPublisher announces committed company writes to background workers.
type EventPublisher interface {
	PublishCompanyChanged(ctx context.Context, change Change) error
}

// Service implements the companies use cases on top of a Repository.
type Service struct {
	repo    Repository
	cache   *Cache
	events  EventPublisher
	logger  *slog.Logger
	checker *validator.Validate
	now     func() time.Time
}

// NewService wires the service. cache and events may be nil.
func NewService(repo Repository, cache *Cache, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		events:  events,
		logger:  logger,
		checker: newValidator(),
		now:     time.Now,
	}
}

// List returns every company in insertion order.
func (s *Service) List(ctx context.Context) ([]Summary, error) {
	var summaries []Summary
	err := s.cached(ctx, &summaries, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx)
	}, "list")
	if err != nil {
		return nil, err
	}
	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Get returns the company with the given code and its invoice ids.
func (s *Service) Get(ctx context.Context, code string) (Detail, error) {
	var detail Detail
	err := s.cached(ctx, &detail, func(ctx context.Context) (any, error) {
		return s.loadDetail(ctx, code)
	}, "detail", code)
	if err != nil {
		return Detail{}, err
	}
	if detail.Invoices == nil {
		detail.Invoices = []int64{}
	}
	return detail, nil
}

// Create derives the code from the name and inserts the company.
func (s *Service) Create(ctx context.Context, in CompanyInput) (Company, error) {
	if err := s.validate(in); err != nil {
		return Company{}, err
	}
	code := Slugify(in.Name)
	if code == "" {
		return Company{}, fmt.Errorf("%w: name %q yields an empty code", ErrValidation, in.Name)
	}

	created, err := s.repo.Create(ctx, Company{Code: code, Name: in.Name, Description: in.Description})
	if err != nil {
		return Company{}, fmt.Errorf("create company %s: %w", code, err)
	}
	s.afterWrite(ctx, ActionCreated, created.Code)
	return created, nil
}

// Update replaces name and description of an existing company. Existence is
// checked before the input so unknown codes report not found.
func (s *Service) Update(ctx context.Context, code string, in CompanyInput) (Company, error) {
	exists, err := s.repo.Exists(ctx, code)
	if err != nil {
		return Company{}, err
	}
	if !exists {
		return Company{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err := s.validate(in); err != nil {
		return Company{}, err
	}

	updated, err := s.repo.Update(ctx, code, in)
	if err != nil {
		return Company{}, fmt.Errorf("update company %s: %w", code, err)
	}
	s.afterWrite(ctx, ActionUpdated, code)
	return updated, nil
}

// Delete removes the company. Its invoices go with it.
func (s *Service) Delete(ctx context.Context, code string) error {
	if err := s.repo.Delete(ctx, code); err != nil {
		return fmt.Errorf("delete company %s: %w", code, err)
	}
	s.afterWrite(ctx, ActionDeleted, code)
	return nil
}

func (s *Service) loadDetail(ctx context.Context, code string) (Detail, error) {
	company, err := s.repo.Get(ctx, code)
	if err != nil {
		return Detail{}, err
	}
	invoices, err := s.repo.InvoiceIDs(ctx, code)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Company: company, Invoices: invoices}, nil
}

// cached reads through the cache, falling back to the loader when the cache
// version cannot be read.
func (s *Service) cached(ctx context.Context, dest any, loader func(context.Context) (any, error), parts ...string) error {
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("company cache unavailable", slog.Any("error", err))
		return loadInto(ctx, dest, loader)
	}
	return s.cache.FetchJSON(ctx, key, dest, loader)
}

// afterWrite runs once a write has committed. Failures here are logged and
// never reported to the caller.
func (s *Service) afterWrite(ctx context.Context, action, code string) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("bump company cache", slog.String("code", code), slog.Any("error", err))
	}
	if s.events == nil {
		return
	}
	change := Change{Action: action, Code: code, At: s.now().UTC()}
	if err := s.events.PublishCompanyChanged(ctx, change); err != nil {
		s.logger.Warn("publish company change",
			slog.String("action", action),
			slog.String("code", code),
			slog.Any("error", err))
	}
}
