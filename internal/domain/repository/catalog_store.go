package repository

import (
	"context"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

// CatalogStore opens the transaction an import run writes in.
type CatalogStore interface {
	// Begin yangi tranzaksiya ochish
	Begin(ctx context.Context) (CatalogTx, error)
}

// CatalogTx is the persistence capability the engine is handed. It never
// commits on its own; the owner of the run decides.
type CatalogTx interface {
	// FindExistingKeys returns business key -> surrogate ID for one kind in a
	// single query.
	FindExistingKeys(ctx context.Context, kind entity.Kind) (map[string]uint, error)

	// BulkInsert inserts rows of one kind atomically: either every row is
	// written or none is. IDs are returned in row order.
	BulkInsert(ctx context.Context, kind entity.Kind, rows []entity.Row) ([]uint, error)

	// Update overwrites the row with the given ID.
	Update(ctx context.Context, kind entity.Kind, id uint, row entity.Row) error

	// LinkCategoryParent sets parent_id of a category.
	LinkCategoryParent(ctx context.Context, id, parentID uint) error

	Commit() error
	Rollback() error
}
