package payment

import (
	"fmt"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/student"
)

// Allocation is the part of a payment settling the dues of one academic year.
type Allocation struct {
	Year   string     `json:"year" validate:"required,academicyear"`
	Amount core.Money `json:"amount" validate:"gt=0"`
}

type AllocationResult struct {
	Allocations []Allocation `json:"allocations"`
	Allocated   core.Money   `json:"allocated"`
	Unallocated core.Money   `json:"unallocated"` // part of paid + discount exceeding what is owed
}

// Allocate distributes paid + discount over the student's dues, oldest previous year first,
// then the current academic year. Whatever is left is reported as Unallocated.
func Allocate(s student.Student, currentYear string, paid, discount core.Money) AllocationResult {
	remaining := paid + discount
	res := AllocationResult{Allocations: make([]Allocation, 0, len(s.PreviousDues)+1)}

	s.PreviousDues = append([]student.PendingDue(nil), s.PreviousDues...)
	s.SortDues()
	for _, due := range s.PreviousDues {
		if remaining <= 0 {
			break
		}
		if due.Amount <= 0 {
			continue
		}
		amt := core.MinMoney(remaining, due.Amount)
		res.Allocations = append(res.Allocations, Allocation{Year: due.Year, Amount: amt})
		remaining -= amt
	}

	if outstanding := s.CurrentOutstanding(); remaining > 0 && outstanding > 0 {
		amt := core.MinMoney(remaining, outstanding)
		res.Allocations = append(res.Allocations, Allocation{Year: currentYear, Amount: amt})
		remaining -= amt
	}

	res.Allocated = TotalAllocated(res.Allocations)
	res.Unallocated = remaining
	return res
}

func TotalAllocated(allocs []Allocation) core.Money {
	var total core.Money
	for _, a := range allocs {
		total += a.Amount
	}
	return total
}

// checkConservation verifies that allocations add up to paid + discount within core.MoneyTolerance.
func checkConservation(allocs []Allocation, available core.Money, currency string) error {
	allocated := TotalAllocated(allocs)
	if diff := allocated - available; diff.Abs() > core.MoneyTolerance {
		if diff < 0 {
			return core.NewFieldError("amount", fmt.Sprintf(
				"amount plus discount (%s) exceeds the allocated dues (%s)",
				available.Format(currency), allocated.Format(currency)))
		}
		return core.NewFieldError("allocations", fmt.Sprintf(
			"allocations (%s) exceed amount plus discount (%s)",
			allocated.Format(currency), available.Format(currency)))
	}
	return nil
}

// checkManualAllocations verifies that each allocation targets a year the student owes, once,
// without exceeding what that year still owes.
func checkManualAllocations(s student.Student, currentYear string, allocs []Allocation, currency string) error {
	seen := make(map[string]bool, len(allocs))
	for _, a := range allocs {
		if seen[a.Year] {
			return core.NewFieldError("allocations", "duplicate year "+a.Year)
		}
		seen[a.Year] = true

		if a.Amount <= 0 {
			return core.NewFieldError("allocations", "allocation for "+a.Year+" must be positive")
		}
		if a.Year != currentYear && !hasDueYear(s, a.Year) {
			return core.NewFieldError("allocations", "no dues for "+a.Year)
		}
		if due := s.DueFor(a.Year, currentYear); a.Amount > due {
			return core.NewFieldError("allocations", fmt.Sprintf(
				"allocation for %s (%s) exceeds what is owed (%s)", a.Year, a.Amount.Format(currency), due.Format(currency)))
		}
	}
	return nil
}

func hasDueYear(s student.Student, year string) bool {
	for _, d := range s.PreviousDues {
		if d.Year == year {
			return true
		}
	}
	return false
}

// applyAllocations updates the student balances: previous years dues are reduced and
// the current year allocation is added to what was paid this year. Settled dues are dropped.
func applyAllocations(s *student.Student, currentYear string, allocs []Allocation) {
	for _, a := range allocs {
		if a.Year == currentYear {
			s.CurrentYearPaid += a.Amount
			continue
		}
		for i := range s.PreviousDues {
			if s.PreviousDues[i].Year == a.Year {
				s.PreviousDues[i].Amount -= a.Amount
				break
			}
		}
	}

	dues := s.PreviousDues[:0]
	for _, d := range s.PreviousDues {
		if d.Amount > 0 {
			dues = append(dues, d)
		}
	}
	s.PreviousDues = dues
}
