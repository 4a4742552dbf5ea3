package receipt

import "time"

// Dialect is the command language a registered printer declared.
type Dialect string

const (
	DialectESCPOS   Dialect = "escpos"
	DialectStarPRNT Dialect = "starprnt"
)

// Document is the renderer's input: the order data plus the priced line
// totals, already flattened by the order service. The renderer performs no
// lookups of its own so that identical documents always produce identical
// bytes.
type Document struct {
	OrderNumber string
	PlacedAt    time.Time

	CustomerName string
	Phone        string
	Fulfillment  string // "delivery" or "pickup"
	Address      string

	Lines []Line
	Total float64

	PaymentMethod string
	Paid          bool
}

// Line is one priced order line.
type Line struct {
	Name      string
	Quantity  int
	Size      string
	UnitPrice float64
	AddOns    []AddOn
	Notes     string
	LineTotal float64
}

// AddOn carries the captured price and whether the conditional-free tier
// applied to it.
type AddOn struct {
	Name  string
	Price float64
	Free  bool
}

// Options configures rendering. Header, footer and the QR URL come from the
// shop configuration; the QR payload is deliberately order-independent.
type Options struct {
	Dialect Dialect
	Header  string
	Footer  string
	QRURL   string

	// CharTable overrides the default code page substitution table.
	CharTable map[rune]byte

	// Width is the character width of the paper, 42 if zero.
	Width int
}
