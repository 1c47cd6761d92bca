package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/biztime/internal/companies"
	"github.com/odyssey-erp/biztime/internal/observability"
	"github.com/odyssey-erp/biztime/jobs"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

// singleCompanyRepo serves one fixed company and rejects writes.
type singleCompanyRepo struct{}

var acme = companies.Company{Code: "acme", Name: "Acme", Description: "Anvils."}

func (singleCompanyRepo) List(context.Context) ([]companies.Summary, error) {
	return []companies.Summary{{Code: acme.Code, Name: acme.Name}}, nil
}

func (singleCompanyRepo) Get(_ context.Context, code string) (companies.Company, error) {
	if code != acme.Code {
		return companies.Company{}, companies.ErrNotFound
	}
	return acme, nil
}

func (singleCompanyRepo) InvoiceIDs(context.Context, string) ([]int64, error) {
	return []int64{7}, nil
}

func (singleCompanyRepo) Exists(_ context.Context, code string) (bool, error) {
	return code == acme.Code, nil
}

func (singleCompanyRepo) Create(context.Context, companies.Company) (companies.Company, error) {
	return companies.Company{}, companies.ErrDuplicate
}

func (singleCompanyRepo) Update(context.Context, string, companies.CompanyInput) (companies.Company, error) {
	return companies.Company{}, companies.ErrDuplicate
}

func (singleCompanyRepo) Delete(context.Context, string) error {
	return companies.ErrNotFound
}

func newRouterForTest(t *testing.T, db Pinger, cfg *Config) (http.Handler, *observability.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg == nil {
		cfg = &Config{AppEnv: "test", RateLimitPerMinute: 100}
	}
	service := companies.NewService(singleCompanyRepo{}, nil, nil, logger)
	metrics := observability.NewMetrics()
	return NewRouter(RouterParams{
		Logger:           logger,
		Config:           cfg,
		CompaniesHandler: companies.NewHandler(logger, service, cfg.StrictStatusCodes),
		JobHandler:       jobs.NewHandler(nil, logger),
		Metrics:          metrics,
		DB:               db,
	}), metrics
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthz(t *testing.T) {
	router, _ := newRouterForTest(t, fakePinger{}, nil)

	rr := serve(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("X-Frame-Options"))
}

func TestRouterHealthzReportsDatabaseOutage(t *testing.T) {
	router, _ := newRouterForTest(t, fakePinger{err: assert.AnError}, nil)

	rr := serve(router, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouterMountsCompanies(t *testing.T) {
	router, _ := newRouterForTest(t, fakePinger{}, nil)

	rr := serve(router, http.MethodGet, "/companies")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"companies":[{"code":"acme","name":"Acme"}]}`, rr.Body.String())

	rr = serve(router, http.MethodGet, "/companies/acme")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"company":{"code":"acme","name":"Acme","description":"Anvils.","invoices":[7]}}`, rr.Body.String())

	rr = serve(router, http.MethodDelete, "/companies/nobody")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterMountsJobsHealth(t *testing.T) {
	router, _ := newRouterForTest(t, fakePinger{}, nil)

	rr := serve(router, http.MethodGet, "/jobs/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"retry":0}`, rr.Body.String())
}

func TestRouterExposesMetrics(t *testing.T) {
	router, _ := newRouterForTest(t, fakePinger{}, nil)

	serve(router, http.MethodGet, "/companies/acme")
	rr := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `route="/companies/{code}/"`) ||
		strings.Contains(rr.Body.String(), `route="/companies/{code}"`))
}

func TestRouterRateLimit(t *testing.T) {
	router, _ := newRouterForTest(t, fakePinger{}, &Config{RateLimitPerMinute: 2})

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/healthz").Code)
}

func TestRouterUnknownPath(t *testing.T) {
	router, _ := newRouterForTest(t, nil, nil)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/invoices").Code)
}
