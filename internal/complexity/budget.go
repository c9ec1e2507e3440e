package complexity

import "math"

// Budget is the required test-case count per type for one endpoint.
type Budget struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Boundary int `json:"boundary"`
}

// Total returns the overall case count the budget demands.
func (b Budget) Total() int {
	return b.Positive + b.Negative + b.Boundary
}

// BudgetFor maps a complexity score to a budget. DELETE endpoints receive
// the second-highest total within their tier.
func BudgetFor(score int, method string) Budget {
	isDelete := method == "DELETE"

	switch TierFor(score) {
	case TierSimple:
		if isDelete {
			return Budget{Positive: 2, Negative: 2, Boundary: 1} // 5
		}
		return Budget{Positive: 2, Negative: 3, Boundary: 1} // 6
	case TierMedium:
		if isDelete {
			return Budget{Positive: 3, Negative: 3, Boundary: 2} // 8
		}
		return Budget{Positive: 3, Negative: 4, Boundary: 2} // 9
	default:
		if isDelete {
			return Budget{Positive: 4, Negative: 4, Boundary: 3} // 11
		}
		return Budget{Positive: 4, Negative: 5, Boundary: 3} // 12
	}
}

// Priorities slices n cases of one type into P0/P1/P2 by position: the
// first 30% are P0, the next 40% P1, the remainder P2. Rounding guarantees
// at least one P0 and one P2 when the type has three or more cases.
func Priorities(n int) []string {
	if n <= 0 {
		return nil
	}

	p0End := int(math.Round(0.3 * float64(n)))
	p1End := int(math.Round(0.7 * float64(n)))

	if n >= 3 {
		if p0End < 1 {
			p0End = 1
		}
		if p1End >= n {
			p1End = n - 1
		}
	}
	if p1End < p0End {
		p1End = p0End
	}

	out := make([]string, n)
	for i := range out {
		switch {
		case i < p0End:
			out[i] = "P0"
		case i < p1End:
			out[i] = "P1"
		default:
			out[i] = "P2"
		}
	}
	return out
}
