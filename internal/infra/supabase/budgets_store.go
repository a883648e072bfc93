package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
	"github.com/boddenberg/budgets-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ============================================================
// Budgets: upsert / get / list via PostgREST
// ============================================================

const budgetsTable = "budgets"

// budgetRow maps the budgets table. company, client and items are jsonb.
type budgetRow struct {
	Number  string          `json:"number"`
	Date    string          `json:"date"`
	Company *domain.Company `json:"company"`
	Client  domain.Client   `json:"client"`
	Items   []domain.Item   `json:"items"`
	Total   float64         `json:"total"`
}

func (r budgetRow) toDomain() domain.Budget {
	items := r.Items
	if items == nil {
		items = []domain.Item{}
	}
	return domain.Budget{
		Number:  r.Number,
		Date:    r.Date,
		Company: r.Company,
		Client:  r.Client,
		Items:   items,
		Total:   r.Total,
	}
}

// UpsertBudget inserts the budget or replaces the row with the same number.
func (c *Client) UpsertBudget(ctx context.Context, b *domain.Budget) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.number", b.Number))

	row := budgetRow{
		Number:  b.Number,
		Date:    b.Date,
		Company: b.Company,
		Client:  b.Client,
		Items:   b.Items,
		Total:   b.Total,
	}

	number, err := resilience.Execute(c.cb, func() (string, error) {
		body, err := c.doPost(ctx, budgetsTable+"?on_conflict=number", row,
			"resolution=merge-duplicates,return=representation")
		if err != nil {
			return "", err
		}

		var rows []budgetRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return "", fmt.Errorf("decode budget: %w", err)
		}
		if len(rows) == 0 {
			return "", fmt.Errorf("no result from budgets upsert")
		}
		return rows[0].Number, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", &domain.ErrStore{Op: "upsert", Err: err}
	}
	return number, nil
}

// GetBudget fetches one budget by exact number.
func (c *Client) GetBudget(ctx context.Context, number string) (*domain.Budget, bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetBudget")
	defer span.End()
	span.SetAttributes(attribute.String("budget.number", number))

	rows, err := resilience.Execute(c.cb, func() ([]budgetRow, error) {
		path := fmt.Sprintf("%s?select=*&number=eq.%s&limit=1", budgetsTable, url.QueryEscape(number))
		return c.fetchRows(ctx, path)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, false, &domain.ErrStore{Op: "get", Err: err}
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	b := rows[0].toDomain()
	return &b, true, nil
}

// ListBudgets returns all budgets, newest date first.
func (c *Client) ListBudgets(ctx context.Context) ([]domain.Budget, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListBudgets")
	defer span.End()

	rows, err := resilience.Execute(c.cb, func() ([]budgetRow, error) {
		return c.fetchRows(ctx, budgetsTable+"?select=*&order=date.desc")
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, &domain.ErrStore{Op: "list", Err: err}
	}

	budgets := make([]domain.Budget, 0, len(rows))
	for _, r := range rows {
		budgets = append(budgets, r.toDomain())
	}
	span.SetAttributes(attribute.Int("budgets.count", len(budgets)))
	return budgets, nil
}

// Ping checks the budgets table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doRequest(ctx, http.MethodGet, budgetsTable+"?select=number&limit=1")
	if err != nil {
		return &domain.ErrStore{Op: "ping", Err: err}
	}
	return nil
}

func (c *Client) fetchRows(ctx context.Context, path string) ([]budgetRow, error) {
	body, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	var rows []budgetRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode budgets: %w", err)
	}
	return rows, nil
}
