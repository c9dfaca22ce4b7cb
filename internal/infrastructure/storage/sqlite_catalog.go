package storage

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
)

// insertBatchSize keeps multi-row INSERTs below sqlite's bound-variable limit.
const insertBatchSize = 200

type sqliteCatalogStore struct {
	db *gorm.DB
}

// NewSQLiteCatalogStore gorm asosidagi catalog store
func NewSQLiteCatalogStore(db *gorm.DB) repository.CatalogStore {
	return &sqliteCatalogStore{db: db}
}

// Begin yangi import tranzaksiyasi
func (s *sqliteCatalogStore) Begin(ctx context.Context) (repository.CatalogTx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, classify("begin", "", "", tx.Error)
	}
	// Statements after Begin must not be aborted by the job context; a
	// cancelled run is rolled back by its owner instead.
	return &sqliteCatalogTx{tx: tx.WithContext(context.WithoutCancel(ctx))}, nil
}

type sqliteCatalogTx struct {
	tx        *gorm.DB
	savepoint atomic.Uint64
}

// FindExistingKeys returns business key -> ID for every row of kind.
func (t *sqliteCatalogTx) FindExistingKeys(ctx context.Context, kind entity.Kind) (map[string]uint, error) {
	keys := make(map[string]uint)
	db := t.tx

	var err error
	switch kind {
	case entity.KindCategory:
		var rows []categoryModel
		err = db.Select("id", "external_id").Find(&rows).Error
		for _, r := range rows {
			keys[entity.CategoryKey(r.ExternalID)] = r.ID
		}
	case entity.KindProducer:
		var rows []producerModel
		err = db.Select("id", "name_key").Find(&rows).Error
		for _, r := range rows {
			keys[r.NameKey] = r.ID
		}
	case entity.KindUnit:
		var rows []unitModel
		err = db.Select("id", "external_id").Find(&rows).Error
		for _, r := range rows {
			keys[entity.UnitKey(r.ExternalID)] = r.ID
		}
	case entity.KindProduct:
		var rows []productModel
		err = db.Select("id", "code").Find(&rows).Error
		for _, r := range rows {
			keys[entity.ProductKey(r.Code)] = r.ID
		}
	case entity.KindVariant:
		var rows []variantModel
		err = db.Select("id", "code").Find(&rows).Error
		for _, r := range rows {
			keys[entity.VariantKey(r.Code)] = r.ID
		}
	case entity.KindStock:
		var rows []stockModel
		err = db.Select("id", "variant_id").Find(&rows).Error
		for _, r := range rows {
			keys[entity.StockKey(r.VariantID)] = r.ID
		}
	case entity.KindPrice:
		var rows []priceModel
		err = db.Select("id", "variant_id", "type", "currency").Find(&rows).Error
		for _, r := range rows {
			keys[entity.PriceKey(r.VariantID, r.Type, r.Currency)] = r.ID
		}
	case entity.KindImage:
		var rows []imageModel
		err = db.Select("id", "product_id", "url").Find(&rows).Error
		for _, r := range rows {
			keys[entity.ImageKey(r.ProductID, r.URL)] = r.ID
		}
	case entity.KindDocument:
		var rows []documentModel
		err = db.Select("id", "product_id", "url").Find(&rows).Error
		for _, r := range rows {
			keys[entity.DocumentKey(r.ProductID, r.URL)] = r.ID
		}
	case entity.KindProperty:
		var rows []propertyModel
		err = db.Select("id", "product_id", "name", "language").Find(&rows).Error
		for _, r := range rows {
			keys[entity.PropertyKey(r.ProductID, r.Name, r.Language)] = r.ID
		}
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		// a failed read leaves nothing to resolve against
		return nil, apperror.WrapRecord(apperror.TransactionFatal, "find keys", string(kind), "", err)
	}
	return keys, nil
}

// BulkInsert inserts rows under one savepoint so the call is all-or-nothing.
func (t *sqliteCatalogTx) BulkInsert(ctx context.Context, kind entity.Kind, rows []entity.Row) ([]uint, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	models := make([]any, len(rows))
	for i, r := range rows {
		m, err := toModel(r)
		if err != nil {
			return nil, apperror.WrapRecord(apperror.BatchWrite, "bulk insert", string(kind), "", err)
		}
		models[i] = m
	}

	var ids []uint
	err := t.withSavepoint(func(db *gorm.DB) error {
		var err error
		ids, err = insertModels(db, kind, models)
		return err
	})
	if err != nil {
		return nil, classify("bulk insert", string(kind), "", err)
	}
	return ids, nil
}

// Update overwrites every column of the row with the given ID.
func (t *sqliteCatalogTx) Update(ctx context.Context, kind entity.Kind, id uint, row entity.Row) error {
	m, err := toModel(row)
	if err != nil {
		return apperror.WrapRecord(apperror.BatchWrite, "update", string(kind), fmt.Sprint(id), err)
	}
	setModelID(m, id)

	err = t.withSavepoint(func(db *gorm.DB) error {
		return db.Model(m).Select("*").Omit("ID", "CreatedAt").Updates(m).Error
	})
	return classify("update", string(kind), fmt.Sprint(id), err)
}

// LinkCategoryParent kategoriya parent_id ni o'rnatish
func (t *sqliteCatalogTx) LinkCategoryParent(ctx context.Context, id, parentID uint) error {
	err := t.tx.Model(&categoryModel{}).Where("id = ?", id).Update("parent_id", parentID).Error
	return classify("link parent", string(entity.KindCategory), fmt.Sprint(id), err)
}

// Commit tranzaksiyani yakunlash
func (t *sqliteCatalogTx) Commit() error {
	return classify("commit", "", "", t.tx.Commit().Error)
}

// Rollback tranzaksiyani bekor qilish
func (t *sqliteCatalogTx) Rollback() error {
	return apperror.Wrap(apperror.TransactionFatal, "rollback", t.tx.Rollback().Error)
}

// withSavepoint runs fn under a savepoint and rolls back to it on failure,
// leaving the surrounding transaction usable.
func (t *sqliteCatalogTx) withSavepoint(fn func(db *gorm.DB) error) error {
	name := fmt.Sprintf("sp_%d", t.savepoint.Add(1))
	if err := t.tx.SavePoint(name).Error; err != nil {
		return err
	}
	if err := fn(t.tx); err != nil {
		if rbErr := t.tx.RollbackTo(name).Error; rbErr != nil {
			return apperror.Wrap(apperror.TransactionFatal, "rollback to savepoint",
				fmt.Errorf("%w (after %v)", rbErr, err))
		}
		_ = t.tx.Exec("RELEASE SAVEPOINT " + name).Error
		return err
	}
	return t.tx.Exec("RELEASE SAVEPOINT " + name).Error
}

func insertModels(db *gorm.DB, kind entity.Kind, models []any) ([]uint, error) {
	switch kind {
	case entity.KindCategory:
		return insertTyped[categoryModel](db, models)
	case entity.KindProducer:
		return insertTyped[producerModel](db, models)
	case entity.KindUnit:
		return insertTyped[unitModel](db, models)
	case entity.KindProduct:
		return insertTyped[productModel](db, models)
	case entity.KindVariant:
		return insertTyped[variantModel](db, models)
	case entity.KindStock:
		return insertTyped[stockModel](db, models)
	case entity.KindPrice:
		return insertTyped[priceModel](db, models)
	case entity.KindImage:
		return insertTyped[imageModel](db, models)
	case entity.KindDocument:
		return insertTyped[documentModel](db, models)
	case entity.KindProperty:
		return insertTyped[propertyModel](db, models)
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

func insertTyped[M any](db *gorm.DB, models []any) ([]uint, error) {
	typed := make([]*M, len(models))
	for i, m := range models {
		v, ok := m.(*M)
		if !ok {
			return nil, fmt.Errorf("row %d has type %T", i, m)
		}
		typed[i] = v
	}
	if err := db.CreateInBatches(typed, insertBatchSize).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, len(typed))
	for i, m := range typed {
		ids[i] = modelID(any(m))
	}
	return ids, nil
}
