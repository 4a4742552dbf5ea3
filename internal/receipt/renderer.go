package receipt

import (
	"fmt"
	"strings"
)

// builder is the per-dialect command emitter. The rendering walk is shared;
// only the byte sequences differ between printer languages.
type builder interface {
	init()
	alignCenter()
	alignLeft()
	bold(on bool)
	doubleSize(on bool)
	text(s string)
	feed(n int)
	qr(url string) error
	cut()
	bytes() []byte
}

// Render turns a priced document into the command stream for the target
// dialect. Output is byte-identical for identical input.
func Render(doc Document, opts Options) ([]byte, error) {
	if len(doc.Lines) == 0 {
		return nil, ErrEmptyDocument
	}
	if opts.Width <= 0 {
		opts.Width = 42
	}

	var b builder
	switch opts.Dialect {
	case DialectESCPOS, "":
		b = newESCPOSBuilder(opts.CharTable)
	case DialectStarPRNT:
		b = newStarBuilder(opts.CharTable)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, opts.Dialect)
	}

	return render(doc, opts, b)
}

func render(doc Document, opts Options, b builder) ([]byte, error) {
	divider := strings.Repeat("-", opts.Width)

	b.init()

	// Identity header
	b.alignCenter()
	b.doubleSize(true)
	b.text(opts.Header)
	b.doubleSize(false)
	b.feed(1)

	// Order number block
	b.bold(true)
	b.text("Bestellung " + doc.OrderNumber)
	b.bold(false)
	if !doc.PlacedAt.IsZero() {
		b.text(doc.PlacedAt.Format("02.01.2006 15:04"))
	}

	// Customer / fulfillment block
	b.alignLeft()
	b.text(divider)
	if doc.CustomerName != "" {
		b.text(doc.CustomerName)
	}
	if doc.Phone != "" {
		b.text("Tel: " + doc.Phone)
	}
	switch doc.Fulfillment {
	case "delivery":
		b.bold(true)
		b.text("LIEFERUNG")
		b.bold(false)
		if doc.Address != "" {
			b.text(doc.Address)
		}
	case "pickup":
		b.bold(true)
		b.text("ABHOLUNG")
		b.bold(false)
	}
	b.text(divider)

	// Itemized lines
	for _, line := range doc.Lines {
		name := fmt.Sprintf("%dx %s", line.Quantity, line.Name)
		if line.Size != "" && line.Size != "normal" {
			name += " (" + line.Size + ")"
		}
		b.text(priceLine(name, line.LineTotal, opts.Width))

		for _, a := range line.AddOns {
			if a.Free {
				b.text("  + " + a.Name + " (inklusive)")
			} else {
				b.text(priceLine("  + "+a.Name, a.Price, opts.Width))
			}
		}
		if line.Notes != "" {
			b.text("  \"" + line.Notes + "\"")
		}
	}

	// Totals
	b.text(divider)
	b.bold(true)
	b.doubleSize(true)
	b.text(priceLine("SUMME", doc.Total, opts.Width/2))
	b.doubleSize(false)
	b.bold(false)
	if doc.Paid {
		b.text("Bereits bezahlt (" + doc.PaymentMethod + ")")
	} else if doc.PaymentMethod != "" {
		b.text("Zahlung: " + doc.PaymentMethod)
	}
	b.feed(1)

	// Footer and scannable code
	b.alignCenter()
	if opts.Footer != "" {
		b.text(opts.Footer)
	}
	if opts.QRURL != "" {
		b.feed(1)
		if err := b.qr(opts.QRURL); err != nil {
			return nil, fmt.Errorf("embedding qr code: %w", err)
		}
	}

	b.feed(3)
	b.cut()

	return b.bytes(), nil
}

// priceLine right-aligns a euro amount against the text on a fixed-width
// paper line.
func priceLine(left string, amount float64, width int) string {
	right := fmt.Sprintf("€%.2f", amount)
	pad := width - len([]rune(left)) - len([]rune(right))
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}
