package entity

// Graph bitta parse natijasi: denormalized entity graph keyed by natural codes.
type Graph struct {
	Categories []Category
	Producers  []Producer
	Units      []Unit
	Products   []Product
	Variants   []Variant
	Stocks     []Stock
	Prices     []Price
	Images     []Image
	Documents  []Document
	Properties []ProductProperty

	// Shape is the detected document root ("offer" or "catalog").
	Shape string
	// SourceProducts counts product elements found in the document,
	// including the ones skipped as malformed.
	SourceProducts int
	Errors         *ErrorLog
}

// NewGraph bo'sh graph yaratish
func NewGraph() *Graph {
	return &Graph{Errors: NewErrorLog(DefaultErrorLimit)}
}

// Count returns the number of rows of one kind.
func (g *Graph) Count(kind Kind) int {
	switch kind {
	case KindCategory:
		return len(g.Categories)
	case KindProducer:
		return len(g.Producers)
	case KindUnit:
		return len(g.Units)
	case KindProduct:
		return len(g.Products)
	case KindVariant:
		return len(g.Variants)
	case KindStock:
		return len(g.Stocks)
	case KindPrice:
		return len(g.Prices)
	case KindImage:
		return len(g.Images)
	case KindDocument:
		return len(g.Documents)
	case KindProperty:
		return len(g.Properties)
	}
	return 0
}

// Total barcha qatorlar soni
func (g *Graph) Total() int {
	total := 0
	for _, kind := range PersistOrder {
		total += g.Count(kind)
	}
	return total
}
