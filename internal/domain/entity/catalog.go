package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind entity turi
type Kind string

const (
	KindCategory Kind = "categories"
	KindProducer Kind = "producers"
	KindUnit     Kind = "units"
	KindProduct  Kind = "products"
	KindVariant  Kind = "variants"
	KindStock    Kind = "stocks"
	KindPrice    Kind = "prices"
	KindImage    Kind = "images"
	KindDocument Kind = "documents"
	KindProperty Kind = "properties"
)

// PersistOrder is the dependency order every run writes in.
var PersistOrder = []Kind{
	KindCategory, KindProducer, KindUnit,
	KindProduct,
	KindVariant,
	KindStock, KindPrice,
	KindImage,
	KindDocument, KindProperty,
}

// Row is one entity prepared for persistence.
type Row interface {
	Kind() Kind
}

// Category supplier kategoriyasi
type Category struct {
	ExternalID       string
	Name             string
	Path             string
	ParentExternalID string
	ParentID         *uint
}

func (Category) Kind() Kind { return KindCategory }

// Producer ishlab chiqaruvchi
type Producer struct {
	Name        string
	Description string
	Website     string
}

func (Producer) Kind() Kind { return KindProducer }

// Unit o'lchov birligi
type Unit struct {
	ExternalID string
	Name       string
	MOQ        float64
}

func (Unit) Kind() Kind { return KindUnit }

// Product mahsulot entity
type Product struct {
	Code         string
	Name         string
	Description  string
	Summary      string
	EAN          string
	VAT          float64
	CategoryCode string
	ProducerName string
	UnitCode     string

	CategoryID *uint
	ProducerID *uint
	UnitID     *uint
}

func (Product) Kind() Kind { return KindProduct }

// Variant mahsulot varianti
type Variant struct {
	Code        string
	ProductCode string
	Name        string
	EAN         string
	Weight      float64
	GrossWeight float64

	ProductID uint
}

func (Variant) Kind() Kind { return KindVariant }

// Stock ombordagi qoldiq
type Stock struct {
	VariantCode string
	Quantity    float64
	Available   bool
	MinOrderQty float64

	VariantID uint
}

func (Stock) Kind() Kind { return KindStock }

// Price variant narxi
type Price struct {
	VariantCode string
	GrossPrice  float64
	NetPrice    float64
	Type        string
	Currency    string

	VariantID uint
}

func (Price) Kind() Kind { return KindPrice }

// Image mahsulot rasmi
type Image struct {
	ProductCode string
	URL         string
	IsMain      bool
	Order       int

	ProductID uint
}

func (Image) Kind() Kind { return KindImage }

// Document mahsulot hujjati
type Document struct {
	ProductCode string
	URL         string
	Type        string
	Title       string
	Language    string

	ProductID uint
}

func (Document) Kind() Kind { return KindDocument }

// ProductProperty erkin xususiyat
type ProductProperty struct {
	ProductCode  string
	Name         string
	Value        string
	Group        string
	Language     string
	Order        int
	IsFilterable bool
	IsPublic     bool

	ProductID uint
}

func (ProductProperty) Kind() Kind { return KindProperty }

// Business keys. Child keys are built from resolved parent IDs so the same
// function serves both the pre-fetch of existing rows and incoming rows.

func CategoryKey(externalID string) string { return strings.TrimSpace(externalID) }

func ProducerKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func UnitKey(externalID string) string { return strings.TrimSpace(externalID) }

func ProductKey(code string) string { return strings.TrimSpace(code) }

func VariantKey(code string) string { return strings.TrimSpace(code) }

func StockKey(variantID uint) string { return strconv.FormatUint(uint64(variantID), 10) }

func PriceKey(variantID uint, priceType, currency string) string {
	return fmt.Sprintf("%d|%s|%s", variantID, strings.ToLower(priceType), strings.ToUpper(currency))
}

func ImageKey(productID uint, url string) string { return fmt.Sprintf("%d|%s", productID, url) }

func DocumentKey(productID uint, url string) string { return fmt.Sprintf("%d|%s", productID, url) }

func PropertyKey(productID uint, name, language string) string {
	return fmt.Sprintf("%d|%s|%s", productID, strings.ToLower(name), strings.ToLower(language))
}
