package pricing

// Size labels as stored on an order line. Anything else is priced as normal.
const (
	SizeNormal = "normal"
	SizeLarge  = "large"
	SizeFamily = "family"
)

// Selection is a single add-on the customer attached to a line, with the
// price captured at selection time. Order matters: conditional pricing makes
// the first N selections free.
type Selection struct {
	AddOnID string
	Name    string
	Price   float64
}

// Rules carries the per-line pricing configuration supplied by the menu layer.
type Rules struct {
	ConditionalPricing bool
	IncludedFreeCount  int
}

// Input is everything the engine needs. No clock, no I/O.
type Input struct {
	BasePrice  float64
	Size       string
	Quantity   int
	Selections []Selection
	Rules      Rules

	// Surcharges is a flat table keyed by size label (family base upcharge,
	// drink-volume surcharge and so on). Missing label means no surcharge.
	Surcharges map[string]float64
}

// Breakdown is the authoritative monetary result for one order line.
type Breakdown struct {
	Base          float64
	SizeSurcharge float64
	AddOnTotal    float64
	FreeApplied   int
	Total         float64
}
