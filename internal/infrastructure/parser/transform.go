package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
)

var (
	errMissingCode   = errors.New("product code is empty")
	errDuplicateCode = errors.New("duplicate code, first occurrence kept")
)

// graphBuilder fans product records out into entities, deduplicating shared
// dictionaries (categories, producers, units) by business key.
type graphBuilder struct {
	opts  Options
	log   *logrus.Entry
	graph *entity.Graph

	categories map[string]struct{}
	producers  map[string]struct{}
	units      map[string]struct{}
	products   map[string]struct{}
	variants   map[string]struct{}
}

func newGraphBuilder(opts Options, log *logrus.Entry) *graphBuilder {
	return &graphBuilder{
		opts:       opts,
		log:        log,
		graph:      entity.NewGraph(),
		categories: make(map[string]struct{}),
		producers:  make(map[string]struct{}),
		units:      make(map[string]struct{}),
		products:   make(map[string]struct{}),
		variants:   make(map[string]struct{}),
	}
}

func (b *graphBuilder) recordError(identifier string, err error) {
	b.graph.Errors.Add(entity.ErrorEntry{
		Type:       apperror.RecordTransform.String(),
		Entity:     string(entity.KindProduct),
		Identifier: identifier,
		Message:    err.Error(),
	})
	b.log.WithFields(logrus.Fields{"key": identifier, "error": err}).Warn("Mahsulot yozuvi o'tkazib yuborildi")
}

// addProduct transforms one record. A malformed record is logged and skipped;
// nothing it produced reaches the graph.
func (b *graphBuilder) addProduct(raw rawProduct, position int) {
	identifier := raw.Code
	if identifier == "" {
		identifier = fmt.Sprintf("#%d", position)
	}

	var staged *stagedProduct
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("transform panic: %v", r)
			}
		}()
		staged, err = b.transform(raw)
		return err
	}()
	if err != nil {
		b.recordError(identifier, apperror.WrapRecord(apperror.RecordTransform, "transform", "product", identifier, err))
		return
	}
	b.commit(staged)
}

// stagedProduct holds everything one record produces until it is known to be
// valid.
type stagedProduct struct {
	category   *entity.Category
	producer   *entity.Producer
	unit       *entity.Unit
	product    entity.Product
	variants   []entity.Variant
	stocks     []entity.Stock
	prices     []entity.Price
	images     []entity.Image
	documents  []entity.Document
	properties []entity.ProductProperty
	warnings   []error
}

func (b *graphBuilder) transform(raw rawProduct) (*stagedProduct, error) {
	code := entity.ProductKey(raw.Code)
	if code == "" {
		return nil, errMissingCode
	}
	if _, dup := b.products[code]; dup {
		return nil, errDuplicateCode
	}

	vat := parseFloat(raw.VAT, b.opts.DefaultVAT)
	if vat < 0 || vat >= 100 {
		return nil, fmt.Errorf("vat %q out of range", raw.VAT)
	}

	name := cleanText(raw.Name)
	if name == "" {
		name = code
	}

	s := &stagedProduct{
		product: entity.Product{
			Code:        code,
			Name:        name,
			Description: sanitizeHTML(raw.Description, b.opts.MaxTextLength),
			Summary:     sanitizeHTML(raw.Summary, b.opts.MaxTextLength),
			EAN:         cleanText(raw.EAN),
			VAT:         vat,
		},
	}

	if id := entity.CategoryKey(raw.CategoryID); id != "" {
		s.product.CategoryCode = id
		s.category = &entity.Category{
			ExternalID:       id,
			Name:             cleanText(first(raw.CategoryName, id)),
			Path:             cleanText(raw.CategoryPath),
			ParentExternalID: entity.CategoryKey(raw.CategoryParent),
		}
	}
	if pn := cleanText(raw.ProducerName); pn != "" {
		s.product.ProducerName = pn
		s.producer = &entity.Producer{
			Name:        pn,
			Description: sanitizeHTML(raw.ProducerDescription, b.opts.MaxTextLength),
			Website:     strings.TrimSpace(raw.ProducerWebsite),
		}
	}
	if uid := entity.UnitKey(first(raw.UnitID, raw.UnitName)); uid != "" {
		s.product.UnitCode = uid
		s.unit = &entity.Unit{
			ExternalID: uid,
			Name:       cleanText(first(raw.UnitName, uid)),
			MOQ:        parseFloat(raw.UnitMOQ, 1),
		}
	}

	seenVariants := make(map[string]struct{})
	for i, rv := range raw.Variants {
		vcode := entity.VariantKey(rv.Code)
		if vcode == "" {
			s.warnings = append(s.warnings, fmt.Errorf("variant #%d has no code", i+1))
			continue
		}
		_, dupRun := b.variants[vcode]
		_, dupHere := seenVariants[vcode]
		if dupRun || dupHere {
			s.warnings = append(s.warnings, fmt.Errorf("variant %q: %w", vcode, errDuplicateCode))
			continue
		}
		seenVariants[vcode] = struct{}{}

		s.variants = append(s.variants, entity.Variant{
			Code:        vcode,
			ProductCode: code,
			Name:        cleanText(first(rv.Name, name)),
			EAN:         cleanText(rv.EAN),
			Weight:      parseFloat(rv.Weight, 0),
			GrossWeight: parseFloat(rv.GrossWeight, 0),
		})

		// every variant gets a stock row, empty when the feed has none
		qty := parseFloat(rv.Quantity, 0)
		s.stocks = append(s.stocks, entity.Stock{
			VariantCode: vcode,
			Quantity:    qty,
			Available:   parseBool(rv.Available, qty > 0),
			MinOrderQty: parseFloat(rv.MinOrderQty, 1),
		})

		for _, rp := range rv.Prices {
			gross := parseFloat(rp.Gross, -1)
			if gross < 0 {
				s.warnings = append(s.warnings, fmt.Errorf("variant %q: invalid gross price %q", vcode, rp.Gross))
				continue
			}
			priceVAT := parseFloat(rp.VAT, vat)
			net := parseFloat(rp.Net, -1)
			if net < 0 {
				net = netFromGross(gross, priceVAT)
			}
			s.prices = append(s.prices, entity.Price{
				VariantCode: vcode,
				GrossPrice:  round2(gross),
				NetPrice:    round2(net),
				Type:        strings.ToLower(first(rp.Type, b.opts.DefaultPriceType)),
				Currency:    strings.ToUpper(first(rp.Currency, b.opts.DefaultCurrency)),
			})
		}
	}

	seenURLs := make(map[string]struct{})
	hasMain := false
	for i, ri := range raw.Images {
		url := strings.TrimSpace(ri.URL)
		if url == "" {
			continue
		}
		if _, dup := seenURLs[url]; dup {
			continue
		}
		seenURLs[url] = struct{}{}
		img := entity.Image{
			ProductCode: code,
			URL:         url,
			IsMain:      parseBool(ri.Main, false) && !hasMain,
			Order:       parseInt(ri.Order, i+1),
		}
		hasMain = hasMain || img.IsMain
		s.images = append(s.images, img)
	}
	if !hasMain && len(s.images) > 0 {
		s.images[0].IsMain = true
	}

	seenDocs := make(map[string]struct{})
	for _, rd := range raw.Documents {
		url := strings.TrimSpace(rd.URL)
		if url == "" {
			continue
		}
		if _, dup := seenDocs[url]; dup {
			continue
		}
		seenDocs[url] = struct{}{}
		s.documents = append(s.documents, entity.Document{
			ProductCode: code,
			URL:         url,
			Type:        strings.ToLower(first(rd.Type, "other")),
			Title:       cleanText(rd.Title),
			Language:    strings.ToLower(strings.TrimSpace(rd.Language)),
		})
	}

	seenProps := make(map[string]struct{})
	for i, rp := range raw.Properties {
		pname := cleanText(rp.Name)
		if pname == "" {
			continue
		}
		lang := strings.ToLower(strings.TrimSpace(rp.Language))
		key := strings.ToLower(pname) + "|" + lang
		if _, dup := seenProps[key]; dup {
			continue
		}
		seenProps[key] = struct{}{}
		s.properties = append(s.properties, entity.ProductProperty{
			ProductCode:  code,
			Name:         pname,
			Value:        sanitizeHTML(rp.Value, b.opts.MaxTextLength),
			Group:        cleanText(rp.Group),
			Language:     lang,
			Order:        parseInt(rp.Order, i+1),
			IsFilterable: parseBool(rp.Filterable, false),
			IsPublic:     parseBool(rp.Public, true),
		})
	}

	return s, nil
}

func (b *graphBuilder) commit(s *stagedProduct) {
	g := b.graph

	if s.category != nil {
		if _, ok := b.categories[s.category.ExternalID]; !ok {
			b.categories[s.category.ExternalID] = struct{}{}
			g.Categories = append(g.Categories, *s.category)
		}
	}
	if s.producer != nil {
		key := entity.ProducerKey(s.producer.Name)
		if _, ok := b.producers[key]; !ok {
			b.producers[key] = struct{}{}
			g.Producers = append(g.Producers, *s.producer)
		}
	}
	if s.unit != nil {
		if _, ok := b.units[s.unit.ExternalID]; !ok {
			b.units[s.unit.ExternalID] = struct{}{}
			g.Units = append(g.Units, *s.unit)
		}
	}

	b.products[s.product.Code] = struct{}{}
	g.Products = append(g.Products, s.product)
	for _, v := range s.variants {
		b.variants[v.Code] = struct{}{}
	}
	g.Variants = append(g.Variants, s.variants...)
	g.Stocks = append(g.Stocks, s.stocks...)
	g.Prices = append(g.Prices, s.prices...)
	g.Images = append(g.Images, s.images...)
	g.Documents = append(g.Documents, s.documents...)
	g.Properties = append(g.Properties, s.properties...)

	for _, w := range s.warnings {
		b.graph.Errors.Add(entity.ErrorEntry{
			Type:       apperror.RecordTransform.String(),
			Entity:     string(entity.KindVariant),
			Identifier: s.product.Code,
			Message:    w.Error(),
		})
		b.log.WithFields(logrus.Fields{"key": s.product.Code, "error": w}).Warn("Variant ma'lumoti o'tkazib yuborildi")
	}
}

// finish adds categories referenced only as parents, so parent links resolve
// within the run.
func (b *graphBuilder) finish() {
	for _, c := range b.graph.Categories {
		if c.ParentExternalID == "" {
			continue
		}
		if _, ok := b.categories[c.ParentExternalID]; ok {
			continue
		}
		b.categories[c.ParentExternalID] = struct{}{}
		b.graph.Categories = append(b.graph.Categories, entity.Category{
			ExternalID: c.ParentExternalID,
			Name:       c.ParentExternalID,
		})
	}
}
