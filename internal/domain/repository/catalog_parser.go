package repository

import (
	"context"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

// CatalogParser supplier XML feedni entity graphga aylantirish uchun interface
type CatalogParser interface {
	// Parse raw XML dan graph yaratish
	Parse(ctx context.Context, data []byte) (*entity.Graph, error)
}
