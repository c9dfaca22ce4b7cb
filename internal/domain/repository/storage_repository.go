package repository

import (
	"context"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

// StorageRepository baza hajmini o'lchash va tozalash uchun interface
type StorageRepository interface {
	// MeasureSize current size against the capacity ceiling
	MeasureSize(ctx context.Context) (entity.StorageSize, error)

	// WithinTx runs fn in its own transaction; fn's error rolls it back
	WithinTx(ctx context.Context, fn func(tx StorageTx) error) error

	// Vacuum compacts the database; must run outside any transaction
	Vacuum(ctx context.Context) error

	// SnapshotTables writes full row sets of allow-listed tables to a
	// timestamped artifact and returns its path
	SnapshotTables(ctx context.Context, tables []string) (string, error)

	// RestoreSnapshot re-inserts rows from an artifact, skipping conflicts
	RestoreSnapshot(ctx context.Context, artifactPath string) (*entity.RestoreResult, error)
}

// StorageTx cleanup tranzaksiyasi
type StorageTx interface {
	// DeleteRows qatorlarni o'chirish
	DeleteRows(ctx context.Context, criteria entity.DeleteCriteria) (int64, error)

	// TruncateDescriptions cuts product descriptions longer than maxLen
	TruncateDescriptions(ctx context.Context, maxLen int) (int64, error)
}

// ArtifactStore backup fayllarni tashqi joyga yuklash uchun interface
type ArtifactStore interface {
	// Upload returns the remote location of the uploaded file
	Upload(ctx context.Context, localPath string) (string, error)

	// Download fetches an artifact by its base name into localPath
	Download(ctx context.Context, name, localPath string) error
}
