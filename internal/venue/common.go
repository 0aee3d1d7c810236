package venue

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// parseDecimalField extracts a numeric field that may arrive as either a
// JSON string or a JSON number, the common shape across these venues'
// wire formats, using shopspring/decimal to avoid float parsing error
// accumulation on price/size strings before the final float64 conversion
// the engine operates on.
func parseDecimalField(raw any) (float64, error) {
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return 0, fmt.Errorf("parsing decimal %q: %w", v, err)
		}
		return d.InexactFloat64(), nil
	case float64:
		return v, nil
	default:
		return 0, fmt.Errorf("unsupported decimal field type %T", raw)
	}
}

// normalizeTradeSide implements spec.md §4.4's trade-direction
// normalization: input may be a string ("buy"/"sell"/"b"/"s") or a
// "buyer is maker" boolean, where the actual taker direction is the
// negation of the maker flag. Output is exactly "buy" or "sell".
func normalizeTradeSide(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		switch v {
		case "buy", "b", "Buy", "BUY":
			return "buy", nil
		case "sell", "s", "Sell", "SELL":
			return "sell", nil
		default:
			return "", fmt.Errorf("unrecognized trade side %q", v)
		}
	case bool:
		// v == buyerIsMaker; the taker (aggressor) side is the opposite.
		if v {
			return "sell", nil
		}
		return "buy", nil
	default:
		return "", fmt.Errorf("unsupported trade side type %T", raw)
	}
}

// ContractSpec describes a futures venue's contract-size conversion.
// Spot venues use the zero value (Size == 0), which ContractsToBase
// treats as a pass-through.
type ContractSpec struct {
	Size    float64 // base-asset units per contract
	Inverse bool    // true for inverse contracts (quoted in USD, settled in base asset)
}

// ContractsToBase converts a quantity denominated in contracts into
// base-asset units, per spec.md §4.4. Inverse contracts additionally
// divide by the prevailing price, since their contract value is fixed in
// quote-currency terms.
func ContractsToBase(spec ContractSpec, contracts float64, price float64) float64 {
	if spec.Size == 0 {
		return contracts
	}
	base := contracts * spec.Size
	if spec.Inverse && price > 0 {
		base /= price
	}
	return base
}

func depthEntry(price, qty float64) map[string]any {
	return map[string]any{"price": price, "qty": qty}
}

func depthList(entries [][2]float64) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, depthEntry(e[0], e[1]))
	}
	return out
}
