package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
)

const (
	backupTimeLayout = "20060102_150405"
	// sqliteTimeLayout is the first layout go-sqlite3 tries when reading
	// datetime columns back.
	sqliteTimeLayout   = "2006-01-02 15:04:05.999999999-07:00"
	restoreBatchSize   = 200
	snapshotFileFormat = 1
)

// keepRecentSQL selects the products a keep-N cleanup retains.
const keepRecentSQL = "SELECT id FROM products ORDER BY updated_at DESC, id DESC LIMIT ?"

type sqliteStorageRepository struct {
	db         *gorm.DB
	limitBytes int64
	backupDir  string
	log        *logrus.Entry
}

// NewSQLiteStorageRepository baza hajmini boshqarish uchun repository
func NewSQLiteStorageRepository(db *gorm.DB, limitBytes int64, backupDir string) repository.StorageRepository {
	return &sqliteStorageRepository{
		db:         db,
		limitBytes: limitBytes,
		backupDir:  backupDir,
		log:        logger.Component("storage"),
	}
}

// MeasureSize page_count * page_size
func (s *sqliteStorageRepository) MeasureSize(ctx context.Context) (entity.StorageSize, error) {
	var pageCount, pageSize int64
	db := s.db.WithContext(ctx)
	if err := db.Raw("PRAGMA page_count").Scan(&pageCount).Error; err != nil {
		return entity.StorageSize{}, fmt.Errorf("page_count: %w", err)
	}
	if err := db.Raw("PRAGMA page_size").Scan(&pageSize).Error; err != nil {
		return entity.StorageSize{}, fmt.Errorf("page_size: %w", err)
	}

	size := entity.StorageSize{Bytes: pageCount * pageSize, LimitBytes: s.limitBytes}
	if s.limitBytes > 0 {
		size.PercentOfLimit = float64(size.Bytes) / float64(s.limitBytes) * 100
	}
	return size, nil
}

// WithinTx cleanup tranzaksiyasi
func (s *sqliteStorageRepository) WithinTx(ctx context.Context, fn func(tx repository.StorageTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&sqliteStorageTx{tx: tx, log: s.log})
	})
}

// Vacuum bazani siqish
func (s *sqliteStorageRepository) Vacuum(ctx context.Context) error {
	return s.db.WithContext(ctx).Exec("VACUUM").Error
}

type snapshotFile struct {
	Format    int                         `json:"format"`
	CreatedAt time.Time                   `json:"created_at"`
	Tables    map[string][]map[string]any `json:"tables"`
}

// SnapshotTables writes backup_<timestamp>.json with the full row sets.
func (s *sqliteStorageRepository) SnapshotTables(ctx context.Context, tables []string) (string, error) {
	if len(tables) == 0 {
		return "", errors.New("backup uchun jadval ko'rsatilmagan")
	}
	snap := snapshotFile{
		Format:    snapshotFileFormat,
		CreatedAt: time.Now(),
		Tables:    make(map[string][]map[string]any, len(tables)),
	}

	db := s.db.WithContext(ctx)
	for _, table := range tables {
		if !isCatalogTable(table) {
			return "", fmt.Errorf("jadval backup ro'yxatida yo'q: %s", table)
		}
		var rows []map[string]any
		if err := db.Table(table).Order("id").Find(&rows).Error; err != nil {
			return "", fmt.Errorf("%s o'qilmadi: %w", table, err)
		}
		for _, row := range rows {
			for k, v := range row {
				switch tv := v.(type) {
				case time.Time:
					row[k] = tv.Format(sqliteTimeLayout)
				case []byte:
					row[k] = string(tv)
				}
			}
		}
		snap.Tables[table] = rows
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("backup papkasini yaratib bo'lmadi: %w", err)
	}
	f, path, err := createBackupFile(s.backupDir, snap.CreatedAt)
	if err != nil {
		return "", err
	}
	enc := json.NewEncoder(f)
	if err := enc.Encode(snap); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("backup yozilmadi: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{"path": path, "tables": len(tables)}).Info("Backup yaratildi")
	return path, nil
}

func createBackupFile(dir string, at time.Time) (*os.File, string, error) {
	base := "backup_" + at.Format(backupTimeLayout)
	for i := 0; i < 100; i++ {
		name := base + ".json"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.json", base, i)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("backup fayl nomi band: %s", base)
}

// RestoreSnapshot re-inserts snapshot rows, skipping every conflicting row.
func (s *sqliteStorageRepository) RestoreSnapshot(ctx context.Context, artifactPath string) (*entity.RestoreResult, error) {
	f, err := os.Open(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("backup ochilmadi: %w", err)
	}
	defer f.Close()

	var snap snapshotFile
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("backup o'qilmadi: %w", err)
	}

	res := &entity.RestoreResult{Inserted: map[string]int64{}, Skipped: map[string]int64{}}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// parents first so ids referenced by children exist
		for _, table := range Tables() {
			rows, ok := snap.Tables[table]
			if !ok {
				continue
			}
			for start := 0; start < len(rows); start += restoreBatchSize {
				end := min(start+restoreBatchSize, len(rows))
				batch := rows[start:end]
				for _, row := range batch {
					for k, v := range row {
						if n, ok := v.(json.Number); ok {
							row[k] = numberValue(n)
						}
					}
				}
				result := tx.Table(table).Clauses(clause.OnConflict{DoNothing: true}).Create(batch)
				if result.Error != nil {
					return fmt.Errorf("%s tiklanmadi: %w", table, result.Error)
				}
				res.Inserted[table] += result.RowsAffected
				res.Skipped[table] += int64(len(batch)) - result.RowsAffected
			}
		}
		for table := range snap.Tables {
			if !isCatalogTable(table) {
				s.log.WithField("table", table).Warn("Noma'lum jadval o'tkazib yuborildi")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"path": artifactPath, "inserted": res.Inserted}).Info("Backup tiklandi")
	return res, nil
}

// numberValue keeps integer ids exact instead of going through float64.
func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

type sqliteStorageTx struct {
	tx  *gorm.DB
	log *logrus.Entry
}

// productScoped returns the column expression tying a table's rows to a
// product, or "" for tables outside the product tree.
func productScoped(table string) string {
	switch table {
	case TableVariants, TableImages, TableDocuments, TableProperties:
		return "product_id"
	case TableStocks, TablePrices:
		return "variant_id IN (SELECT v.id FROM variants v WHERE v.product_id %s)"
	}
	return ""
}

// DeleteRows qatorlarni o'chirish
func (t *sqliteStorageTx) DeleteRows(ctx context.Context, c entity.DeleteCriteria) (int64, error) {
	if !isCatalogTable(c.Table) {
		return 0, fmt.Errorf("noma'lum jadval: %s", c.Table)
	}
	db := t.tx.WithContext(ctx)

	if c.Table == TableProducts && c.KeepRecentProducts > 0 {
		return t.deleteProductsOutside(db, c)
	}

	var (
		conds []string
		args  []any
	)
	if !c.OlderThan.IsZero() {
		conds = append(conds, "updated_at < ?")
		args = append(args, c.OlderThan)
	}
	if c.KeepRecentProducts > 0 {
		expr := productScoped(c.Table)
		if expr == "" {
			return 0, fmt.Errorf("%s mahsulotga bog'lanmagan", c.Table)
		}
		if strings.Contains(expr, "%s") {
			conds = append(conds, "NOT ("+fmt.Sprintf(expr, "IN ("+keepRecentSQL+")")+")")
		} else {
			conds = append(conds, expr+" NOT IN ("+keepRecentSQL+")")
		}
		args = append(args, c.KeepRecentProducts)
	}

	query := "DELETE FROM " + c.Table
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	res := db.Exec(query, args...)
	if res.Error != nil {
		return 0, fmt.Errorf("%s tozalanmadi: %w", c.Table, res.Error)
	}
	return res.RowsAffected, nil
}

// deleteProductsOutside drops every product outside the keep set together
// with its children, then the products themselves.
func (t *sqliteStorageTx) deleteProductsOutside(db *gorm.DB, c entity.DeleteCriteria) (int64, error) {
	outside := "NOT IN (" + keepRecentSQL + ")"
	if !c.OlderThan.IsZero() {
		outside = "IN (SELECT id FROM products WHERE updated_at < ? AND id NOT IN (" + keepRecentSQL + "))"
	}
	args := []any{c.KeepRecentProducts}
	if !c.OlderThan.IsZero() {
		args = []any{c.OlderThan, c.KeepRecentProducts}
	}

	cascade := []string{TableStocks, TablePrices, TableImages, TableDocuments, TableProperties, TableVariants}
	for _, table := range cascade {
		expr := productScoped(table)
		var query string
		if strings.Contains(expr, "%s") {
			query = "DELETE FROM " + table + " WHERE " + fmt.Sprintf(expr, outside)
		} else {
			query = "DELETE FROM " + table + " WHERE " + expr + " " + outside
		}
		res := db.Exec(query, args...)
		if res.Error != nil {
			return 0, fmt.Errorf("%s tozalanmadi: %w", table, res.Error)
		}
		if res.RowsAffected > 0 {
			t.log.WithFields(logrus.Fields{"table": table, "rows": res.RowsAffected}).Debug("Bog'liq qatorlar o'chirildi")
		}
	}

	res := db.Exec("DELETE FROM products WHERE id "+outside, args...)
	if res.Error != nil {
		return 0, fmt.Errorf("products tozalanmadi: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// TruncateDescriptions uzun tavsiflarni qisqartirish
func (t *sqliteStorageTx) TruncateDescriptions(ctx context.Context, maxLen int) (int64, error) {
	if maxLen <= 0 {
		return 0, nil
	}
	res := t.tx.WithContext(ctx).Exec(
		"UPDATE products SET description = substr(description, 1, ?) WHERE length(description) > ?", maxLen, maxLen)
	if res.Error != nil {
		return 0, fmt.Errorf("tavsiflar qisqartirilmadi: %w", res.Error)
	}
	return res.RowsAffected, nil
}
