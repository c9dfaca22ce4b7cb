package parser

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/domain/repository"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
)

// Root shapes. A document matches exactly one of them or is rejected.
const (
	ShapeOffer   = "offer"
	ShapeCatalog = "catalog"
)

type shape struct {
	root    string
	wrapper string
	element string
	decode  func(dec *xml.Decoder, start *xml.StartElement) (rawProduct, error)
}

var shapes = []shape{
	{
		root: ShapeOffer, wrapper: "products", element: "product",
		decode: func(dec *xml.Decoder, start *xml.StartElement) (rawProduct, error) {
			var p offerProduct
			if err := dec.DecodeElement(&p, start); err != nil {
				return rawProduct{}, err
			}
			return p.normalize(), nil
		},
	},
	{
		root: ShapeCatalog, wrapper: "items", element: "item",
		decode: func(dec *xml.Decoder, start *xml.StartElement) (rawProduct, error) {
			var it catalogItem
			if err := dec.DecodeElement(&it, start); err != nil {
				return rawProduct{}, err
			}
			return it.normalize(), nil
		},
	},
}

// Options transformer sozlamalari
type Options struct {
	DefaultCurrency  string
	DefaultPriceType string
	DefaultVAT       float64
	MaxTextLength    int
}

// DefaultOptions standart sozlamalar
func DefaultOptions() Options {
	return Options{
		DefaultCurrency:  "PLN",
		DefaultPriceType: "retail",
		DefaultVAT:       23,
		MaxTextLength:    MaxTextLength,
	}
}

type xmlParser struct {
	opts Options
	log  *logrus.Entry
}

// NewXMLParser yangi XML parser yaratish
func NewXMLParser(opts Options) repository.CatalogParser {
	def := DefaultOptions()
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = def.DefaultCurrency
	}
	if opts.DefaultPriceType == "" {
		opts.DefaultPriceType = def.DefaultPriceType
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = def.MaxTextLength
	}
	return &xmlParser{opts: opts, log: logger.Component("import")}
}

// Parse raw XML dan entity graph yaratish
func (p *xmlParser) Parse(ctx context.Context, data []byte) (*entity.Graph, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperror.Wrap(apperror.StructuralParse, "parse", apperror.ErrEmptyDocument)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	root, err := firstElement(dec)
	if err != nil {
		return nil, apperror.Wrap(apperror.StructuralParse, "parse", err)
	}

	var sh *shape
	for i := range shapes {
		if strings.EqualFold(root.Name.Local, shapes[i].root) {
			sh = &shapes[i]
			break
		}
	}
	if sh == nil {
		return nil, apperror.Wrap(apperror.StructuralParse, "parse",
			fmt.Errorf("%w <%s>, expected <%s> or <%s>", apperror.ErrUnsupportedRoot, root.Name.Local, ShapeOffer, ShapeCatalog))
	}

	b := newGraphBuilder(p.opts, p.log)
	b.graph.Shape = sh.root

	// depth 0 = direct child of root
	depth := 0
	inWrapper := false
	for {
		if err := apperror.CheckCancelled(ctx, "parse"); err != nil {
			return nil, err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperror.Wrap(apperror.StructuralParse, "parse", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			isProduct := strings.EqualFold(name, sh.element) && (depth == 0 || (depth == 1 && inWrapper))
			if isProduct {
				b.graph.SourceProducts++
				raw, err := sh.decode(dec, &t)
				if err != nil {
					var synErr *xml.SyntaxError
					if errors.As(err, &synErr) {
						return nil, apperror.Wrap(apperror.StructuralParse, "parse", err)
					}
					b.recordError(fmt.Sprintf("#%d", b.graph.SourceProducts), err)
					continue
				}
				b.addProduct(raw, b.graph.SourceProducts)
				continue
			}
			if depth == 0 && strings.EqualFold(name, sh.wrapper) {
				inWrapper = true
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				// closing root
				continue
			}
			depth--
			if depth == 0 {
				inWrapper = false
			}
		}
	}

	if b.graph.SourceProducts == 0 {
		return nil, apperror.Wrap(apperror.StructuralParse, "parse",
			fmt.Errorf("%w: <%s> has no <%s> elements", apperror.ErrNoProducts, sh.root, sh.element))
	}

	b.finish()
	p.log.WithFields(logrus.Fields{
		"shape":      sh.root,
		"products":   len(b.graph.Products),
		"source":     b.graph.SourceProducts,
		"variants":   len(b.graph.Variants),
		"categories": len(b.graph.Categories),
		"errors":     b.graph.Errors.Total(),
	}).Info("XML parse tugadi")

	return b.graph, nil
}

// firstElement returns the document root, skipping prolog tokens.
func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, apperror.ErrEmptyDocument
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}
