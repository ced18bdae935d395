// internal/domain/runreport/repository.go
package runreport

import "context"

// Repository persists run reports. Reports are never updated or deleted.
type Repository interface {
	Insert(ctx context.Context, r *Report) error
	ListRecent(ctx context.Context, limit int) ([]*Report, error)
}
