package complexity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBudgetTable checks the tier table for every score from 0 through 20:
// simple 5–6 total, medium 7–9, complex 10–12, with the documented per-type
// ranges.
func TestBudgetTable(t *testing.T) {
	for score := 0; score <= 20; score++ {
		for _, method := range []string{"GET", "POST", "DELETE"} {
			b := BudgetFor(score, method)
			total := b.Total()

			switch {
			case score <= 5:
				assert.GreaterOrEqual(t, total, 5, "score %d %s", score, method)
				assert.LessOrEqual(t, total, 6, "score %d %s", score, method)
				assert.GreaterOrEqual(t, b.Positive, 2)
				assert.LessOrEqual(t, b.Negative, 3)
				assert.Equal(t, 1, b.Boundary)
			case score <= 10:
				assert.GreaterOrEqual(t, total, 7, "score %d %s", score, method)
				assert.LessOrEqual(t, total, 9, "score %d %s", score, method)
				assert.GreaterOrEqual(t, b.Positive, 2)
				assert.LessOrEqual(t, b.Positive, 3)
				assert.GreaterOrEqual(t, b.Negative, 3)
				assert.LessOrEqual(t, b.Negative, 4)
				assert.GreaterOrEqual(t, b.Boundary, 1)
				assert.LessOrEqual(t, b.Boundary, 2)
			default:
				assert.GreaterOrEqual(t, total, 10, "score %d %s", score, method)
				assert.LessOrEqual(t, total, 12, "score %d %s", score, method)
				assert.GreaterOrEqual(t, b.Positive, 3)
				assert.LessOrEqual(t, b.Positive, 4)
				assert.GreaterOrEqual(t, b.Negative, 4)
				assert.LessOrEqual(t, b.Negative, 5)
				assert.GreaterOrEqual(t, b.Boundary, 2)
				assert.LessOrEqual(t, b.Boundary, 3)
			}
		}
	}
}

// TestBudgetDeleteSecondHighest checks that DELETE endpoints sit one below
// the tier maximum.
func TestBudgetDeleteSecondHighest(t *testing.T) {
	for _, score := range []int{3, 8, 12} {
		get := BudgetFor(score, "GET")
		del := BudgetFor(score, "DELETE")
		assert.Equal(t, get.Total()-1, del.Total(), "score %d", score)
	}
}

func TestPrioritySlicing(t *testing.T) {
	count := func(ps []string, p string) int {
		n := 0
		for _, v := range ps {
			if v == p {
				n++
			}
		}
		return n
	}

	t.Run("ten cases split 3/4/3", func(t *testing.T) {
		ps := Priorities(10)
		require.Len(t, ps, 10)
		assert.Equal(t, 3, count(ps, "P0"))
		assert.Equal(t, 4, count(ps, "P1"))
		assert.Equal(t, 3, count(ps, "P2"))
	})

	t.Run("three cases split 1/1/1", func(t *testing.T) {
		ps := Priorities(3)
		require.Len(t, ps, 3)
		assert.Equal(t, []string{"P0", "P1", "P2"}, ps)
	})

	t.Run("ordering is P0 then P1 then P2", func(t *testing.T) {
		ps := Priorities(7)
		last := "P0"
		for _, p := range ps {
			assert.GreaterOrEqual(t, p, last)
			last = p
		}
	})

	t.Run("at least one P0 and P2 from three cases up", func(t *testing.T) {
		for n := 3; n <= 12; n++ {
			ps := Priorities(n)
			assert.GreaterOrEqual(t, count(ps, "P0"), 1, "n=%d", n)
			assert.GreaterOrEqual(t, count(ps, "P2"), 1, "n=%d", n)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, Priorities(0))
	})
}
