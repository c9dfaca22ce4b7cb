package parser

import "strings"

// rawProduct is the shape-independent product record every supported root
// shape decodes into before transformation.
type rawProduct struct {
	Code        string
	Name        string
	Description string
	Summary     string
	EAN         string
	VAT         string

	CategoryID     string
	CategoryName   string
	CategoryPath   string
	CategoryParent string

	ProducerName        string
	ProducerDescription string
	ProducerWebsite     string

	UnitID   string
	UnitName string
	UnitMOQ  string

	Variants   []rawVariant
	Images     []rawImage
	Documents  []rawDocument
	Properties []rawProperty
}

type rawVariant struct {
	Code        string
	Name        string
	EAN         string
	Weight      string
	GrossWeight string

	Quantity    string
	Available   string
	MinOrderQty string

	Prices []rawPrice
}

type rawPrice struct {
	Type     string
	Currency string
	Gross    string
	Net      string
	VAT      string
}

type rawImage struct {
	URL   string
	Main  string
	Order string
}

type rawDocument struct {
	URL      string
	Type     string
	Title    string
	Language string
}

type rawProperty struct {
	Name       string
	Value      string
	Group      string
	Language   string
	Order      string
	Filterable string
	Public     string
}

// first returns the first non-blank value.
func first(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// ---- Shape A: <offer><products><product> ----

type offerProduct struct {
	CodeAttr  string `xml:"code,attr"`
	IDAttr    string `xml:"id,attr"`
	Code      string `xml:"code"`
	Name      string `xml:"name"`
	NameAttr  string `xml:"name,attr"`
	EAN       string `xml:"ean"`
	VAT       string `xml:"vat"`
	VATAttr   string `xml:"vat,attr"`
	Desc      string `xml:"description"`
	ShortDesc string `xml:"short_description"`

	Category struct {
		ID     string `xml:"id,attr"`
		Path   string `xml:"path,attr"`
		Parent string `xml:"parent,attr"`
		Name   string `xml:"name,attr"`
		Text   string `xml:",chardata"`
	} `xml:"category"`

	Producer struct {
		Name    string `xml:"name,attr"`
		Website string `xml:"website,attr"`
		Text    string `xml:",chardata"`
		Desc    string `xml:"description"`
	} `xml:"producer"`

	Unit struct {
		ID   string `xml:"id,attr"`
		MOQ  string `xml:"moq,attr"`
		Name string `xml:"name,attr"`
		Text string `xml:",chardata"`
	} `xml:"unit"`

	// Wrapped and bare forms; a single child still decodes into a slice.
	Variants       []offerVariant  `xml:"variants>variant"`
	BareVariants   []offerVariant  `xml:"variant"`
	Images         []offerImage    `xml:"images>image"`
	BareImages     []offerImage    `xml:"image"`
	Documents      []offerDocument `xml:"documents>document"`
	BareDocuments  []offerDocument `xml:"document"`
	Properties     []offerProperty `xml:"properties>property"`
	BareProperties []offerProperty `xml:"property"`
}

type offerVariant struct {
	CodeAttr    string `xml:"code,attr"`
	Code        string `xml:"code"`
	Name        string `xml:"name"`
	EAN         string `xml:"ean"`
	Weight      string `xml:"weight"`
	GrossWeight string `xml:"gross_weight"`

	Stock *struct {
		Quantity     string `xml:"quantity,attr"`
		Available    string `xml:"available,attr"`
		MinOrder     string `xml:"min_order,attr"`
		QuantityElem string `xml:"quantity"`
		AvailElem    string `xml:"available"`
		MinOrderElem string `xml:"min_order"`
	} `xml:"stock"`

	Prices     []offerPrice `xml:"prices>price"`
	BarePrices []offerPrice `xml:"price"`
}

type offerPrice struct {
	Type     string `xml:"type,attr"`
	Currency string `xml:"currency,attr"`
	Gross    string `xml:"gross,attr"`
	Net      string `xml:"net,attr"`
	VAT      string `xml:"vat,attr"`
	Text     string `xml:",chardata"`
}

type offerImage struct {
	URL   string `xml:"url,attr"`
	Main  string `xml:"main,attr"`
	Order string `xml:"order,attr"`
	Text  string `xml:",chardata"`
}

type offerDocument struct {
	URL      string `xml:"url,attr"`
	Type     string `xml:"type,attr"`
	Language string `xml:"language,attr"`
	Title    string `xml:",chardata"`
}

type offerProperty struct {
	Name       string `xml:"name,attr"`
	Group      string `xml:"group,attr"`
	Language   string `xml:"language,attr"`
	Order      string `xml:"order,attr"`
	Filterable string `xml:"filterable,attr"`
	Public     string `xml:"public,attr"`
	Value      string `xml:",chardata"`
}

func (p *offerProduct) normalize() rawProduct {
	out := rawProduct{
		Code:                first(p.CodeAttr, p.Code, p.IDAttr),
		Name:                first(p.Name, p.NameAttr),
		Description:         p.Desc,
		Summary:             p.ShortDesc,
		EAN:                 first(p.EAN),
		VAT:                 first(p.VAT, p.VATAttr),
		CategoryID:          first(p.Category.ID),
		CategoryName:        first(p.Category.Name, p.Category.Text),
		CategoryPath:        first(p.Category.Path),
		CategoryParent:      first(p.Category.Parent),
		ProducerName:        first(p.Producer.Name, p.Producer.Text),
		ProducerDescription: first(p.Producer.Desc),
		ProducerWebsite:     first(p.Producer.Website),
		UnitID:              first(p.Unit.ID),
		UnitName:            first(p.Unit.Name, p.Unit.Text),
		UnitMOQ:             first(p.Unit.MOQ),
	}

	for _, v := range append(p.Variants, p.BareVariants...) {
		rv := rawVariant{
			Code:        first(v.CodeAttr, v.Code),
			Name:        first(v.Name),
			EAN:         first(v.EAN),
			Weight:      first(v.Weight),
			GrossWeight: first(v.GrossWeight),
		}
		if v.Stock != nil {
			rv.Quantity = first(v.Stock.Quantity, v.Stock.QuantityElem)
			rv.Available = first(v.Stock.Available, v.Stock.AvailElem)
			rv.MinOrderQty = first(v.Stock.MinOrder, v.Stock.MinOrderElem)
		}
		for _, pr := range append(v.Prices, v.BarePrices...) {
			rv.Prices = append(rv.Prices, rawPrice{
				Type:     first(pr.Type),
				Currency: first(pr.Currency),
				Gross:    first(pr.Gross, pr.Text),
				Net:      first(pr.Net),
				VAT:      first(pr.VAT),
			})
		}
		out.Variants = append(out.Variants, rv)
	}
	for _, img := range append(p.Images, p.BareImages...) {
		out.Images = append(out.Images, rawImage{URL: first(img.URL, img.Text), Main: img.Main, Order: img.Order})
	}
	for _, d := range append(p.Documents, p.BareDocuments...) {
		out.Documents = append(out.Documents, rawDocument{URL: first(d.URL), Type: d.Type, Title: first(d.Title), Language: d.Language})
	}
	for _, pp := range append(p.Properties, p.BareProperties...) {
		out.Properties = append(out.Properties, rawProperty{
			Name: first(pp.Name), Value: pp.Value, Group: pp.Group, Language: pp.Language,
			Order: pp.Order, Filterable: pp.Filterable, Public: pp.Public,
		})
	}
	return out
}

// ---- Shape B: <catalog><items><item> ----

type catalogItem struct {
	SKU       string `xml:"sku"`
	Title     string `xml:"title"`
	Desc      string `xml:"desc"`
	Summary   string `xml:"summary"`
	EAN       string `xml:"ean"`
	VATRate   string `xml:"vat_rate"`
	Brand     string `xml:"brand"`
	BrandURL  string `xml:"brand_url"`
	BrandInfo string `xml:"brand_info"`

	CategoryID     string `xml:"category_id"`
	CategoryName   string `xml:"category_name"`
	CategoryPath   string `xml:"category_path"`
	CategoryParent string `xml:"parent_category_id"`

	UnitID   string `xml:"unit_id"`
	UnitName string `xml:"unit_name"`
	MOQ      string `xml:"moq"`

	Sizes      []catalogSize      `xml:"sizes>size"`
	BareSizes  []catalogSize      `xml:"size"`
	Photos     []catalogPhoto     `xml:"photos>photo"`
	Files      []catalogFile      `xml:"files>file"`
	Attributes []catalogAttribute `xml:"attributes>attribute"`
}

type catalogSize struct {
	SKU         string         `xml:"sku"`
	Name        string         `xml:"name"`
	EAN         string         `xml:"ean"`
	Weight      string         `xml:"weight"`
	GrossWeight string         `xml:"gross_weight"`
	Qty         *string        `xml:"qty"`
	Available   string         `xml:"available"`
	MinQty      string         `xml:"min_qty"`
	Prices      []catalogPrice `xml:"price_list>price"`
}

type catalogPrice struct {
	Type     string `xml:"type,attr"`
	Currency string `xml:"currency,attr"`
	Gross    string `xml:"gross"`
	Net      string `xml:"net"`
	VAT      string `xml:"vat"`
}

type catalogPhoto struct {
	Main  string `xml:"main,attr"`
	Order string `xml:"order,attr"`
	URL   string `xml:",chardata"`
}

type catalogFile struct {
	Type  string `xml:"type,attr"`
	Lang  string `xml:"lang,attr"`
	Title string `xml:"title,attr"`
	URL   string `xml:",chardata"`
}

type catalogAttribute struct {
	Name       string `xml:"name,attr"`
	Group      string `xml:"group,attr"`
	Lang       string `xml:"lang,attr"`
	Order      string `xml:"order,attr"`
	Filterable string `xml:"filterable,attr"`
	Public     string `xml:"public,attr"`
	Value      string `xml:",chardata"`
}

func (it *catalogItem) normalize() rawProduct {
	out := rawProduct{
		Code:                first(it.SKU),
		Name:                first(it.Title),
		Description:         it.Desc,
		Summary:             it.Summary,
		EAN:                 first(it.EAN),
		VAT:                 first(it.VATRate),
		CategoryID:          first(it.CategoryID),
		CategoryName:        first(it.CategoryName),
		CategoryPath:        first(it.CategoryPath),
		CategoryParent:      first(it.CategoryParent),
		ProducerName:        first(it.Brand),
		ProducerDescription: first(it.BrandInfo),
		ProducerWebsite:     first(it.BrandURL),
		UnitID:              first(it.UnitID),
		UnitName:            first(it.UnitName),
		UnitMOQ:             first(it.MOQ),
	}
	for _, s := range append(it.Sizes, it.BareSizes...) {
		rv := rawVariant{
			Code:        first(s.SKU),
			Name:        first(s.Name),
			EAN:         first(s.EAN),
			Weight:      first(s.Weight),
			GrossWeight: first(s.GrossWeight),
			Available:   first(s.Available),
			MinOrderQty: first(s.MinQty),
		}
		if s.Qty != nil {
			rv.Quantity = first(*s.Qty)
		}
		for _, pr := range s.Prices {
			rv.Prices = append(rv.Prices, rawPrice{
				Type: first(pr.Type), Currency: first(pr.Currency),
				Gross: first(pr.Gross), Net: first(pr.Net), VAT: first(pr.VAT),
			})
		}
		out.Variants = append(out.Variants, rv)
	}
	for _, ph := range it.Photos {
		out.Images = append(out.Images, rawImage{URL: first(ph.URL), Main: ph.Main, Order: ph.Order})
	}
	for _, f := range it.Files {
		out.Documents = append(out.Documents, rawDocument{URL: first(f.URL), Type: f.Type, Title: f.Title, Language: f.Lang})
	}
	for _, a := range it.Attributes {
		out.Properties = append(out.Properties, rawProperty{
			Name: first(a.Name), Value: a.Value, Group: a.Group, Language: a.Lang,
			Order: a.Order, Filterable: a.Filterable, Public: a.Public,
		})
	}
	return out
}
