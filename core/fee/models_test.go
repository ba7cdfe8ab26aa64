package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/edufee/core"
)

func TestSortClasses(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "known", in: []string{"10", "2", "UKG", "1", "LKG"}, want: []string{"LKG", "UKG", "1", "2", "10"}},
		{name: "unknown last", in: []string{"Nursery", "5", "Alpha", "LKG"}, want: []string{"LKG", "5", "Alpha", "Nursery"}},
		{name: "empty", in: []string{}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortClasses(tt.in)
			assert.Equal(t, tt.want, tt.in)
		})
	}
}

func TestDefaultFees(t *testing.T) {
	fees := DefaultFees()
	assert.Len(t, fees, len(ClassOrder))
	for i, f := range fees {
		assert.Equal(t, ClassOrder[i], f.ClassName)
		assert.Equal(t, f.TuitionFee+f.AnnualFee, f.Total)
	}
	assert.Equal(t, core.FromMajor(15000), fees[0].Total)
	assert.Equal(t, core.FromMajor(28000), fees[len(fees)-1].Total)
}
