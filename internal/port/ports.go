// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete store and webhook adapters.
package port

import (
	"context"
	"encoding/json"

	"github.com/boddenberg/budgets-bfa-go/internal/domain"
)

// BudgetStore persists budgets keyed by their number.
// Implemented by the Supabase adapter and the Postgres adapter.
// Every call is a single attempt; failures surface as *domain.ErrStore.
type BudgetStore interface {
	// UpsertBudget inserts or fully replaces the budget with the same number.
	UpsertBudget(ctx context.Context, b *domain.Budget) (string, error)
	// GetBudget returns found=false (and a nil error) when no budget matches.
	GetBudget(ctx context.Context, number string) (*domain.Budget, bool, error)
	// ListBudgets returns every budget ordered by date, newest first. Never nil.
	ListBudgets(ctx context.Context) ([]domain.Budget, error)
	Ping(ctx context.Context) error
}

// BudgetNotifier delivers budget notifications to the automation webhook.
type BudgetNotifier interface {
	Configured() bool
	Notify(ctx context.Context, b *domain.Budget, origin string) *domain.NotifyOutcome
	Ping(ctx context.Context, sample json.RawMessage) *domain.NotifyOutcome
}
