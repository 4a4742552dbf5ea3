package pricing

import (
	"math"

	"trattoria-be/internal/utils"
)

// Calculate computes the price breakdown for one order line. It is a pure
// function: the same input always yields the same breakdown.
func Calculate(in Input) Breakdown {
	freeCount := 0
	if in.Rules.ConditionalPricing && in.Rules.IncludedFreeCount > 0 {
		freeCount = in.Rules.IncludedFreeCount
	}

	addOnTotal := 0.0
	freeApplied := 0
	for i, sel := range in.Selections {
		// First-come allocation: the first freeCount selections in the
		// order the customer added them cost nothing, regardless of price.
		if i < freeCount {
			freeApplied++
			continue
		}
		addOnTotal += repriceForSize(sel.Price, in.Size)
	}

	qty := in.Quantity
	if qty < 1 {
		qty = 1
	}

	surcharge := in.Surcharges[in.Size]
	total := (in.BasePrice + surcharge + addOnTotal) * float64(qty)

	return Breakdown{
		Base:          in.BasePrice,
		SizeSurcharge: surcharge,
		AddOnTotal:    round(addOnTotal),
		FreeApplied:   freeApplied,
		Total:         round(total),
	}
}

// IsFree reports whether the selection at index i on a line with the given
// rules falls into the included-free tier. The renderer uses this to annotate
// receipt lines the same way the engine priced them.
func IsFree(i int, rules Rules) bool {
	return rules.ConditionalPricing && rules.IncludedFreeCount > 0 && i < rules.IncludedFreeCount
}

// repriceForSize applies the size-based add-on repricing rules:
// family doubles every listed price; large remaps a price of exactly 1.00
// (within a cent) to 2.00; every other size leaves the listed price alone.
func repriceForSize(price float64, size string) float64 {
	switch size {
	case SizeFamily:
		return price * 2
	case SizeLarge:
		if utils.NearlyEqual(price, 1.00) {
			return 2.00
		}
	}
	return price
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
