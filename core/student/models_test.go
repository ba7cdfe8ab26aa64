package student

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core"
)

func TestStudent_Balance(t *testing.T) {
	tests := []struct {
		name        string
		s           Student
		wantPrev    core.Money
		wantCurrent core.Money
		wantBalance core.Money
		wantStatus  string
	}{
		{
			name: "overdue",
			s: Student{
				PreviousDues:    []PendingDue{{Year: "2023-24", Amount: 200000}, {Year: "2024-25", Amount: 0}},
				CurrentYearFee:  1800000,
				CurrentYearPaid: 500000,
			},
			wantPrev: 200000, wantCurrent: 1300000, wantBalance: 1500000, wantStatus: StatusOverdue,
		},
		{
			name:     "due",
			s:        Student{CurrentYearFee: 1500000, CurrentYearPaid: 500000},
			wantPrev: 0, wantCurrent: 1000000, wantBalance: 1000000, wantStatus: StatusDue,
		},
		{
			name:     "paid",
			s:        Student{PreviousDues: []PendingDue{{Year: "2023-24", Amount: 0}}, CurrentYearFee: 1500000, CurrentYearPaid: 1500000},
			wantPrev: 0, wantCurrent: 0, wantBalance: 0, wantStatus: StatusPaid,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantPrev, tt.s.PreviousDueTotal())
			assert.Equal(t, tt.wantCurrent, tt.s.CurrentOutstanding())
			assert.Equal(t, tt.wantBalance, tt.s.Balance())
			assert.Equal(t, tt.wantStatus, tt.s.Status())
		})
	}
}

func TestStudent_MarshalJSON(t *testing.T) {
	s := Student{ID: "s1", Name: "Aarav Patel", ClassName: "1", CurrentYearFee: 1800000, CurrentYearPaid: 300000}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "Aarav Patel", got["name"])
	assert.Equal(t, []interface{}{}, got["previous_dues"])
	assert.EqualValues(t, 15000, got["balance"])
	assert.Equal(t, StatusDue, got["status"])
}

func TestNewStudent_Validate(t *testing.T) {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	tests := []struct {
		name      string
		ns        NewStudent
		wantErr   bool
		wantField string
	}{
		{name: "valid", ns: NewStudent{AdmissionNumber: " ADM001 ", Name: "Aarav", ClassName: "1"}},
		{name: "missing name", ns: NewStudent{AdmissionNumber: "ADM001", ClassName: "1"}, wantErr: true},
		{name: "bad dob", ns: NewStudent{AdmissionNumber: "ADM001", Name: "Aarav", ClassName: "1", DOB: "15/05/2018"}, wantErr: true},
		{
			name: "bad due year",
			ns: NewStudent{AdmissionNumber: "ADM001", Name: "Aarav", ClassName: "1",
				PreviousDues: []PendingDue{{Year: "2023-25", Amount: 100}}},
			wantErr: true,
		},
		{
			name: "duplicate due year",
			ns: NewStudent{AdmissionNumber: "ADM001", Name: "Aarav", ClassName: "1",
				PreviousDues: []PendingDue{{Year: "2023-24", Amount: 100}, {Year: "2023-24", Amount: 200}}},
			wantErr: true, wantField: "previous_dues",
		},
		{
			name: "current year as previous due",
			ns: NewStudent{AdmissionNumber: "ADM001", Name: "Aarav", ClassName: "1",
				PreviousDues: []PendingDue{{Year: "2025-26", Amount: 100}}},
			wantErr: true, wantField: "previous_dues",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ns.Validate(validate, "2025-26")
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantField != "" {
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok, "want *core.ValidationError, got %T", err)
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
			}
		})
	}
	ns := NewStudent{AdmissionNumber: " ADM001 ", Name: "Aarav", ClassName: "1"}
	require.NoError(t, ns.Validate(validate, "2025-26"))
	assert.Equal(t, "ADM001", ns.AdmissionNumber)
}
