package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
)

// seedCatalog writes n products, each with one variant, stock, price and image.
func seedCatalog(t *testing.T, db *gorm.DB, n int) []uint {
	t.Helper()
	ctx := context.Background()
	tx, err := NewSQLiteCatalogStore(db).Begin(ctx)
	require.NoError(t, err)

	var pids []uint
	for i := 0; i < n; i++ {
		code := string(rune('A' + i))
		ids, err := tx.BulkInsert(ctx, entity.KindProduct, []entity.Row{
			entity.Product{Code: code, Name: code, Description: strings.Repeat("d", 50)},
		})
		require.NoError(t, err)
		vids, err := tx.BulkInsert(ctx, entity.KindVariant, []entity.Row{entity.Variant{Code: "V" + code, ProductID: ids[0]}})
		require.NoError(t, err)
		_, err = tx.BulkInsert(ctx, entity.KindStock, []entity.Row{entity.Stock{VariantID: vids[0], Quantity: 1}})
		require.NoError(t, err)
		_, err = tx.BulkInsert(ctx, entity.KindPrice, []entity.Row{entity.Price{VariantID: vids[0], Type: "retail", Currency: "PLN"}})
		require.NoError(t, err)
		_, err = tx.BulkInsert(ctx, entity.KindImage, []entity.Row{entity.Image{ProductID: ids[0], URL: "https://cdn/" + code}})
		require.NoError(t, err)
		pids = append(pids, ids[0])
	}
	require.NoError(t, tx.Commit())
	return pids
}

func newTestStorage(t *testing.T) (*gorm.DB, repository.StorageRepository, string) {
	t.Helper()
	db := newTestDB(t)
	dir := filepath.Join(t.TempDir(), "backups")
	return db, NewSQLiteStorageRepository(db, 500<<20, dir), dir
}

func TestStorage_MeasureSize(t *testing.T) {
	_, repo, _ := newTestStorage(t)

	size, err := repo.MeasureSize(context.Background())
	require.NoError(t, err)
	assert.Positive(t, size.Bytes)
	assert.Equal(t, int64(500<<20), size.LimitBytes)
	assert.InDelta(t, float64(size.Bytes)/float64(500<<20)*100, size.PercentOfLimit, 1e-9)
}

func TestStorage_DeleteKeepsRecentProductsWithChildren(t *testing.T) {
	ctx := context.Background()
	db, repo, _ := newTestStorage(t)
	pids := seedCatalog(t, db, 3)

	var deleted int64
	err := repo.WithinTx(ctx, func(tx repository.StorageTx) error {
		var err error
		deleted, err = tx.DeleteRows(ctx, entity.DeleteCriteria{Table: TableProducts, KeepRecentProducts: 1})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var left []productModel
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, pids[2], left[0].ID)

	for _, table := range []string{TableVariants, TableStocks, TablePrices, TableImages} {
		assert.Equal(t, int64(1), countRows(t, db, table), table)
	}
}

func TestStorage_AgeRetentionExemptsKeptProducts(t *testing.T) {
	ctx := context.Background()
	db, repo, _ := newTestStorage(t)
	seedCatalog(t, db, 3)

	future := time.Now().Add(time.Hour)
	err := repo.WithinTx(ctx, func(tx repository.StorageTx) error {
		n, err := tx.DeleteRows(ctx, entity.DeleteCriteria{Table: TablePrices, OlderThan: future, KeepRecentProducts: 2})
		assert.Equal(t, int64(1), n)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), countRows(t, db, TablePrices))
}

func TestStorage_PurgeImagesAndTruncate(t *testing.T) {
	ctx := context.Background()
	db, repo, _ := newTestStorage(t)
	seedCatalog(t, db, 2)

	err := repo.WithinTx(ctx, func(tx repository.StorageTx) error {
		n, err := tx.DeleteRows(ctx, entity.DeleteCriteria{Table: TableImages})
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		n, err = tx.TruncateDescriptions(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, repo.Vacuum(ctx))

	assert.Zero(t, countRows(t, db, TableImages))
	var p productModel
	require.NoError(t, db.First(&p).Error)
	assert.Len(t, p.Description, 10)
}

func TestStorage_DeleteRejectsUnknownTable(t *testing.T) {
	ctx := context.Background()
	_, repo, _ := newTestStorage(t)

	err := repo.WithinTx(ctx, func(tx repository.StorageTx) error {
		_, err := tx.DeleteRows(ctx, entity.DeleteCriteria{Table: "sqlite_master"})
		return err
	})
	assert.Error(t, err)
}

func TestStorage_SnapshotAndRestore(t *testing.T) {
	ctx := context.Background()
	db, repo, dir := newTestStorage(t)
	seedCatalog(t, db, 3)

	path, err := repo.SnapshotTables(ctx, []string{TableProducts, TableVariants})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "backup_"))
	_, err = os.Stat(path)
	require.NoError(t, err)

	// lose two products, keep their variants
	require.NoError(t, db.Exec("DELETE FROM products WHERE code IN ('A', 'B')").Error)
	require.NoError(t, db.Exec("UPDATE products SET name = 'changed' WHERE code = 'C'").Error)

	res, err := repo.RestoreSnapshot(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted[TableProducts])
	assert.Equal(t, int64(1), res.Skipped[TableProducts])
	assert.Equal(t, int64(0), res.Inserted[TableVariants])
	assert.Equal(t, int64(3), res.Skipped[TableVariants])

	assert.Equal(t, int64(3), countRows(t, db, TableProducts))
	var c productModel
	require.NoError(t, db.Where("code = ?", "C").First(&c).Error)
	assert.Equal(t, "changed", c.Name, "restore never overwrites")

	var a productModel
	require.NoError(t, db.Where("code = ?", "A").First(&a).Error)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestStorage_SnapshotRejectsUnlistedTable(t *testing.T) {
	_, repo, _ := newTestStorage(t)
	_, err := repo.SnapshotTables(context.Background(), []string{"sqlite_master"})
	assert.Error(t, err)
}
