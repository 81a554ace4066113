// Package journal persists finished parent orders and their child orders.
package journal

import (
	"context"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
)

// Repository defines the interface for the execution journal. Records are
// append-only: a parent order is written once, when it completes.
type Repository interface {
	// Write side
	Record(ctx context.Context, report *types.ExecutionReport, children []types.ChildOrder) error

	// Read side
	GetReport(ctx context.Context, parentID string) (*types.ExecutionReport, error)
	ListReports(ctx context.Context, limit int) ([]types.ExecutionReport, error)
	GetChildOrders(ctx context.Context, parentID string) ([]types.ChildOrder, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
