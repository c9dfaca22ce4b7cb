package storage

import (
	"fmt"
	"time"

	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

// Table nomlari
const (
	TableCategories = "categories"
	TableProducers  = "producers"
	TableUnits      = "units"
	TableProducts   = "products"
	TableVariants   = "variants"
	TableStocks     = "stocks"
	TablePrices     = "prices"
	TableImages     = "product_images"
	TableDocuments  = "documents"
	TableProperties = "product_properties"
)

var tableOf = map[entity.Kind]string{
	entity.KindCategory: TableCategories,
	entity.KindProducer: TableProducers,
	entity.KindUnit:     TableUnits,
	entity.KindProduct:  TableProducts,
	entity.KindVariant:  TableVariants,
	entity.KindStock:    TableStocks,
	entity.KindPrice:    TablePrices,
	entity.KindImage:    TableImages,
	entity.KindDocument: TableDocuments,
	entity.KindProperty: TableProperties,
}

// TableName returns the table one kind is stored in.
func TableName(kind entity.Kind) string {
	return tableOf[kind]
}

// Tables returns every catalog table in dependency order.
func Tables() []string {
	out := make([]string, 0, len(entity.PersistOrder))
	for _, kind := range entity.PersistOrder {
		out = append(out, tableOf[kind])
	}
	return out
}

func isCatalogTable(name string) bool {
	for _, t := range tableOf {
		if t == name {
			return true
		}
	}
	return false
}

type categoryModel struct {
	ID               uint   `gorm:"primaryKey"`
	ExternalID       string `gorm:"uniqueIndex;not null"`
	Name             string `gorm:"not null"`
	Path             string
	ParentExternalID string
	ParentID         *uint `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (categoryModel) TableName() string { return TableCategories }

type producerModel struct {
	ID          uint   `gorm:"primaryKey"`
	NameKey     string `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
	Website     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (producerModel) TableName() string { return TableProducers }

type unitModel struct {
	ID         uint   `gorm:"primaryKey"`
	ExternalID string `gorm:"uniqueIndex;not null"`
	Name       string
	MOQ        float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (unitModel) TableName() string { return TableUnits }

type productModel struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
	Summary     string
	EAN         string
	VAT         float64
	CategoryID  *uint `gorm:"index"`
	ProducerID  *uint `gorm:"index"`
	UnitID      *uint
	CreatedAt   time.Time
	UpdatedAt   time.Time `gorm:"index"`
}

func (productModel) TableName() string { return TableProducts }

type variantModel struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;not null"`
	ProductID   uint   `gorm:"index;not null"`
	Name        string
	EAN         string
	Weight      float64
	GrossWeight float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (variantModel) TableName() string { return TableVariants }

type stockModel struct {
	ID          uint `gorm:"primaryKey"`
	VariantID   uint `gorm:"uniqueIndex;not null"`
	Quantity    float64
	Available   bool
	MinOrderQty float64
	CreatedAt   time.Time
	UpdatedAt   time.Time `gorm:"index"`
}

func (stockModel) TableName() string { return TableStocks }

type priceModel struct {
	ID         uint   `gorm:"primaryKey"`
	VariantID  uint   `gorm:"uniqueIndex:idx_price_key;not null"`
	Type       string `gorm:"uniqueIndex:idx_price_key;not null"`
	Currency   string `gorm:"uniqueIndex:idx_price_key;not null"`
	GrossPrice float64
	NetPrice   float64
	CreatedAt  time.Time
	UpdatedAt  time.Time `gorm:"index"`
}

func (priceModel) TableName() string { return TablePrices }

type imageModel struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID uint   `gorm:"uniqueIndex:idx_image_key;not null"`
	URL       string `gorm:"uniqueIndex:idx_image_key;not null"`
	IsMain    bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (imageModel) TableName() string { return TableImages }

type documentModel struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID uint   `gorm:"uniqueIndex:idx_document_key;not null"`
	URL       string `gorm:"uniqueIndex:idx_document_key;not null"`
	Type      string
	Title     string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (documentModel) TableName() string { return TableDocuments }

type propertyModel struct {
	ID           uint   `gorm:"primaryKey"`
	ProductID    uint   `gorm:"uniqueIndex:idx_property_key;not null"`
	Name         string `gorm:"uniqueIndex:idx_property_key;not null"`
	Language     string `gorm:"uniqueIndex:idx_property_key"`
	Value        string
	GroupName    string
	SortOrder    int
	IsFilterable bool
	IsPublic     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (propertyModel) TableName() string { return TableProperties }

func allModels() []any {
	return []any{
		&categoryModel{}, &producerModel{}, &unitModel{},
		&productModel{}, &variantModel{},
		&stockModel{}, &priceModel{},
		&imageModel{}, &documentModel{}, &propertyModel{},
	}
}

// toModel maps an entity row onto its table model. Foreign keys must already
// be resolved by the caller.
func toModel(row entity.Row) (any, error) {
	switch r := row.(type) {
	case entity.Category:
		return &categoryModel{ExternalID: r.ExternalID, Name: r.Name, Path: r.Path, ParentExternalID: r.ParentExternalID, ParentID: r.ParentID}, nil
	case entity.Producer:
		return &producerModel{NameKey: entity.ProducerKey(r.Name), Name: r.Name, Description: r.Description, Website: r.Website}, nil
	case entity.Unit:
		return &unitModel{ExternalID: r.ExternalID, Name: r.Name, MOQ: r.MOQ}, nil
	case entity.Product:
		return &productModel{
			Code: r.Code, Name: r.Name, Description: r.Description, Summary: r.Summary,
			EAN: r.EAN, VAT: r.VAT, CategoryID: r.CategoryID, ProducerID: r.ProducerID, UnitID: r.UnitID,
		}, nil
	case entity.Variant:
		return &variantModel{Code: r.Code, ProductID: r.ProductID, Name: r.Name, EAN: r.EAN, Weight: r.Weight, GrossWeight: r.GrossWeight}, nil
	case entity.Stock:
		return &stockModel{VariantID: r.VariantID, Quantity: r.Quantity, Available: r.Available, MinOrderQty: r.MinOrderQty}, nil
	case entity.Price:
		return &priceModel{VariantID: r.VariantID, Type: r.Type, Currency: r.Currency, GrossPrice: r.GrossPrice, NetPrice: r.NetPrice}, nil
	case entity.Image:
		return &imageModel{ProductID: r.ProductID, URL: r.URL, IsMain: r.IsMain, SortOrder: r.Order}, nil
	case entity.Document:
		return &documentModel{ProductID: r.ProductID, URL: r.URL, Type: r.Type, Title: r.Title, Language: r.Language}, nil
	case entity.ProductProperty:
		return &propertyModel{
			ProductID: r.ProductID, Name: r.Name, Language: r.Language, Value: r.Value, GroupName: r.Group,
			SortOrder: r.Order, IsFilterable: r.IsFilterable, IsPublic: r.IsPublic,
		}, nil
	}
	return nil, fmt.Errorf("unsupported row type %T", row)
}

// modelID reads the primary key gorm filled in after insert.
func modelID(m any) uint {
	switch v := m.(type) {
	case *categoryModel:
		return v.ID
	case *producerModel:
		return v.ID
	case *unitModel:
		return v.ID
	case *productModel:
		return v.ID
	case *variantModel:
		return v.ID
	case *stockModel:
		return v.ID
	case *priceModel:
		return v.ID
	case *imageModel:
		return v.ID
	case *documentModel:
		return v.ID
	case *propertyModel:
		return v.ID
	}
	return 0
}

func setModelID(m any, id uint) {
	switch v := m.(type) {
	case *categoryModel:
		v.ID = id
	case *producerModel:
		v.ID = id
	case *unitModel:
		v.ID = id
	case *productModel:
		v.ID = id
	case *variantModel:
		v.ID = id
	case *stockModel:
		v.ID = id
	case *priceModel:
		v.ID = id
	case *imageModel:
		v.ID = id
	case *documentModel:
		v.ID = id
	case *propertyModel:
		v.ID = id
	}
}
