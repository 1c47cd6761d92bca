package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQL error codes surfaced as domain errors.
const (
	uniqueViolationCode  = "23505"
	notNullViolationCode = "23502"
)

// Repository persists companies.
type Repository interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, code string) (Company, error)
	InvoiceIDs(ctx context.Context, code string) ([]int64, error)
	Exists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, company Company) (Company, error)
	Update(ctx context.Context, code string, in CompanyInput) (Company, error)
	Delete(ctx context.Context, code string) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository returns a Repository backed by the pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// NewTxRepository binds a Repository to an open transaction.
func NewTxRepository(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

func (r *repository) List(ctx context.Context) ([]Summary, error) {
	rows, err := r.db.Query(ctx, `SELECT code, name FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Summary])
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return summaries, nil
}

func (r *repository) Get(ctx context.Context, code string) (Company, error) {
	var c Company
	err := r.db.QueryRow(ctx,
		`SELECT code, name, COALESCE(description, '') FROM companies WHERE code = $1`,
		code,
	).Scan(&c.Code, &c.Name, &c.Description)
	if err != nil {
		return Company{}, mapError(err)
	}
	return c, nil
}

func (r *repository) InvoiceIDs(ctx context.Context, code string) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM invoices WHERE comp_code = $1 ORDER BY id`, code)
	if err != nil {
		return nil, fmt.Errorf("list invoices of %s: %w", code, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("list invoices of %s: %w", code, err)
	}
	return ids, nil
}

func (r *repository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE code = $1)`, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("check company %s: %w", code, err)
	}
	return exists, nil
}

func (r *repository) Create(ctx context.Context, company Company) (Company, error) {
	var c Company
	err := r.db.QueryRow(ctx,
		`INSERT INTO companies (code, name, description)
		 VALUES ($1, $2, $3)
		 RETURNING code, name, COALESCE(description, '')`,
		company.Code, company.Name, company.Description,
	).Scan(&c.Code, &c.Name, &c.Description)
	if err != nil {
		return Company{}, mapError(err)
	}
	return c, nil
}

// Update rewrites name and description. The code is never changed.
func (r *repository) Update(ctx context.Context, code string, in CompanyInput) (Company, error) {
	var c Company
	err := r.db.QueryRow(ctx,
		`UPDATE companies SET name = $1, description = $2, updated_at = NOW()
		 WHERE code = $3
		 RETURNING code, name, COALESCE(description, '')`,
		in.Name, in.Description, code,
	).Scan(&c.Code, &c.Name, &c.Description)
	if err != nil {
		return Company{}, mapError(err)
	}
	return c, nil
}

func (r *repository) Delete(ctx context.Context, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM companies WHERE code = $1`, code)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return fmt.Errorf("%w (%s): %v", ErrDuplicate, pgErr.ConstraintName, err)
		case notNullViolationCode:
			return fmt.Errorf("%w: %s is required", ErrValidation, pgErr.ColumnName)
		}
	}
	return err
}
