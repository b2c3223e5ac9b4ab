package lead

import (
	"regexp"
	"strconv"
)

// BudgetMultiplier scales the bare numbers customers type ("300-500") into
// pesos: amounts are quoted in millions.
const BudgetMultiplier = 1_000_000

var budgetDigits = regexp.MustCompile(`\d+`)

// ParseBudget extracts up to two integers from a free-text budget expression.
// One number is treated as a maximum, two as a min/max range. No numbers
// leaves both bounds at zero.
func ParseBudget(text string) (min, max int64) {
	numbers := budgetDigits.FindAllString(text, 2)
	switch len(numbers) {
	case 1:
		n, _ := strconv.ParseInt(numbers[0], 10, 64)
		return 0, n * BudgetMultiplier
	case 2:
		lo, _ := strconv.ParseInt(numbers[0], 10, 64)
		hi, _ := strconv.ParseInt(numbers[1], 10, 64)
		return lo * BudgetMultiplier, hi * BudgetMultiplier
	default:
		return 0, 0
	}
}
