package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/resilience"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	upsertBudgetSQL = `
INSERT INTO budgets (number, date, company, client, items, total)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (number) DO UPDATE SET
    date    = EXCLUDED.date,
    company = EXCLUDED.company,
    client  = EXCLUDED.client,
    items   = EXCLUDED.items,
    total   = EXCLUDED.total
RETURNING number`

	selectBudgetSQL = `
SELECT number, coalesce(date, ''), company, client, items, coalesce(total, 0)
FROM budgets
WHERE number = $1`

	listBudgetsSQL = `
SELECT number, coalesce(date, ''), company, client, items, coalesce(total, 0)
FROM budgets
ORDER BY date DESC NULLS LAST`
)

// UpsertBudget inserts the budget or replaces the row with the same number.
func (s *Store) UpsertBudget(ctx context.Context, b *domain.Budget) (string, error) {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.number", b.Number))

	company, client, items, err := encodeBudget(b)
	if err != nil {
		return "", &domain.ErrStore{Op: "upsert", Err: err}
	}

	number, err := resilience.Execute(s.cb, func() (string, error) {
		var n string
		err := s.pool.QueryRow(ctx, upsertBudgetSQL, b.Number, b.Date, company, client, items, b.Total).Scan(&n)
		return n, err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("postgres: upsert failed", zap.String("number", b.Number), zap.Error(err))
		return "", &domain.ErrStore{Op: "upsert", Err: storeMessage(err)}
	}
	return number, nil
}

// GetBudget fetches one budget by exact number.
func (s *Store) GetBudget(ctx context.Context, number string) (*domain.Budget, bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.number", number))

	b, err := resilience.Execute(s.cb, func() (*domain.Budget, error) {
		b, err := scanBudget(s.pool.QueryRow(ctx, selectBudgetSQL, number))
		if errors.Is(err, pgx.ErrNoRows) {
			// absence is not a store failure; keep it out of the breaker counts
			return nil, nil
		}
		return b, err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, false, &domain.ErrStore{Op: "get", Err: storeMessage(err)}
	}
	if b == nil {
		return nil, false, nil
	}
	return b, true, nil
}

// ListBudgets returns all budgets, newest date first.
func (s *Store) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListBudgets")
	defer span.End()

	budgets, err := resilience.Execute(s.cb, func() ([]domain.Budget, error) {
		rows, err := s.pool.Query(ctx, listBudgetsSQL)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make([]domain.Budget, 0)
		for rows.Next() {
			b, err := scanBudget(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, *b)
		}
		return out, rows.Err()
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &domain.ErrStore{Op: "list", Err: storeMessage(err)}
	}
	span.SetAttributes(attribute.Int("budgets.count", len(budgets)))
	return budgets, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &domain.ErrStore{Op: "ping", Err: storeMessage(err)}
	}
	return nil
}

func encodeBudget(b *domain.Budget) (company, client, items []byte, err error) {
	if b.Company != nil {
		if company, err = json.Marshal(b.Company); err != nil {
			return nil, nil, nil, fmt.Errorf("encode company: %w", err)
		}
	}
	if client, err = json.Marshal(b.Client); err != nil {
		return nil, nil, nil, fmt.Errorf("encode client: %w", err)
	}
	list := b.Items
	if list == nil {
		list = []domain.Item{}
	}
	if items, err = json.Marshal(list); err != nil {
		return nil, nil, nil, fmt.Errorf("encode items: %w", err)
	}
	return company, client, items, nil
}

func scanBudget(row pgx.Row) (*domain.Budget, error) {
	var (
		b                      domain.Budget
		company, client, items []byte
	)
	if err := row.Scan(&b.Number, &b.Date, &company, &client, &items, &b.Total); err != nil {
		return nil, err
	}
	if len(company) > 0 && string(company) != "null" {
		b.Company = &domain.Company{}
		if err := json.Unmarshal(company, b.Company); err != nil {
			return nil, fmt.Errorf("decode company: %w", err)
		}
	}
	if len(client) > 0 {
		if err := json.Unmarshal(client, &b.Client); err != nil {
			return nil, fmt.Errorf("decode client: %w", err)
		}
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &b.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	if b.Items == nil {
		b.Items = []domain.Item{}
	}
	return &b, nil
}

// storeMessage keeps the server's own message for Postgres errors.
func storeMessage(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errors.New(pgErr.Message)
	}
	return err
}
