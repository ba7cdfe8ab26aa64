package fee

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edufee/core"
)

// ClassOrder is the display order of the school's classes.
var ClassOrder = []string{"LKG", "UKG", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}

var classRank = func() map[string]int {
	ranks := make(map[string]int, len(ClassOrder))
	for i, c := range ClassOrder {
		ranks[c] = i
	}
	return ranks
}()

// ClassLess orders known classes by ClassOrder and unknown classes after them, alphabetically.
func ClassLess(a, b string) bool {
	ra, okA := classRank[a]
	rb, okB := classRank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}

// SortClasses sorts class names in place.
func SortClasses(classes []string) {
	sort.SliceStable(classes, func(i, j int) bool { return ClassLess(classes[i], classes[j]) })
}

type FeeStructure struct {
	ClassName  string     `json:"class_name"`
	TuitionFee core.Money `json:"tuition_fee"`
	AnnualFee  core.Money `json:"annual_fee"`
	Total      core.Money `json:"total"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ComputeTotal sets Total from the fee components.
func (f *FeeStructure) ComputeTotal() {
	f.Total = f.TuitionFee + f.AnnualFee
}

func sortFees(fees []FeeStructure) {
	sort.SliceStable(fees, func(i, j int) bool { return ClassLess(fees[i].ClassName, fees[j].ClassName) })
}

// DefaultFees are the fee structures a new school starts with.
func DefaultFees() []FeeStructure {
	fees := []FeeStructure{
		{ClassName: "LKG", TuitionFee: core.FromMajor(10000), AnnualFee: core.FromMajor(5000)},
		{ClassName: "UKG", TuitionFee: core.FromMajor(10000), AnnualFee: core.FromMajor(5000)},
		{ClassName: "1", TuitionFee: core.FromMajor(12000), AnnualFee: core.FromMajor(6000)},
		{ClassName: "2", TuitionFee: core.FromMajor(12000), AnnualFee: core.FromMajor(6000)},
		{ClassName: "3", TuitionFee: core.FromMajor(13000), AnnualFee: core.FromMajor(6500)},
		{ClassName: "4", TuitionFee: core.FromMajor(13000), AnnualFee: core.FromMajor(6500)},
		{ClassName: "5", TuitionFee: core.FromMajor(14000), AnnualFee: core.FromMajor(7000)},
		{ClassName: "6", TuitionFee: core.FromMajor(14000), AnnualFee: core.FromMajor(7000)},
		{ClassName: "7", TuitionFee: core.FromMajor(15000), AnnualFee: core.FromMajor(7500)},
		{ClassName: "8", TuitionFee: core.FromMajor(15000), AnnualFee: core.FromMajor(7500)},
		{ClassName: "9", TuitionFee: core.FromMajor(18000), AnnualFee: core.FromMajor(8000)},
		{ClassName: "10", TuitionFee: core.FromMajor(20000), AnnualFee: core.FromMajor(8000)},
	}
	for i := range fees {
		fees[i].ComputeTotal()
	}
	return fees
}

// UpsertFee is the payload creating or replacing the fee structure of a class.
// Total is always computed server side.
type UpsertFee struct {
	ClassName  string     `json:"class_name" validate:"required,notblank,max=20"`
	TuitionFee core.Money `json:"tuition_fee" validate:"money"`
	AnnualFee  core.Money `json:"annual_fee" validate:"money"`
}

func (uf *UpsertFee) Validate(validate *validator.Validate) error {
	uf.ClassName = core.CleanString(uf.ClassName)
	return validate.Struct(uf)
}
