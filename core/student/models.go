package student

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
)

// Statuses
const (
	StatusOverdue = "overdue" // has unpaid dues from previous years
	StatusDue     = "due"
	StatusPaid    = "paid"
)

// PendingDue is an amount still owed for a previous academic year.
type PendingDue struct {
	Year        string     `json:"year" validate:"required,academicyear"`
	Amount      core.Money `json:"amount" validate:"gt=0"`
	ClassName   string     `json:"class_name,omitempty"`
	Description string     `json:"description,omitempty"`
}

type Student struct {
	ID              string       `json:"id"`
	AdmissionNumber string       `json:"admission_number"`
	Name            string       `json:"name"`
	FatherName      string       `json:"father_name"`
	MotherName      string       `json:"mother_name"`
	DOB             string       `json:"dob"` // YYYY-MM-DD
	ClassName       string       `json:"class_name"`
	GuardianEmail   string       `json:"guardian_email"`
	PreviousDues    []PendingDue `json:"previous_dues"`
	CurrentYearFee  core.Money   `json:"current_year_fee"`
	CurrentYearPaid core.Money   `json:"current_year_paid"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"` // UTC
	UpdatedAt       time.Time    `json:"updated_at"` // UTC
}

// PreviousDueTotal is the sum of the remaining previous years dues.
func (s Student) PreviousDueTotal() core.Money {
	var total core.Money
	for _, d := range s.PreviousDues {
		if d.Amount > 0 {
			total += d.Amount
		}
	}
	return total
}

// CurrentOutstanding is what remains to be paid for the current academic year.
func (s Student) CurrentOutstanding() core.Money {
	return s.CurrentYearFee - s.CurrentYearPaid
}

// Balance is everything the student still owes.
func (s Student) Balance() core.Money {
	return s.PreviousDueTotal() + s.CurrentOutstanding()
}

func (s Student) Status() string {
	if s.PreviousDueTotal() > 0 {
		return StatusOverdue
	}
	if s.Balance() > 0 {
		return StatusDue
	}
	return StatusPaid
}

// DueFor returns what the student still owes for year.
func (s Student) DueFor(year, currentYear string) core.Money {
	if year == currentYear {
		return s.CurrentOutstanding()
	}
	for _, d := range s.PreviousDues {
		if d.Year == year {
			return d.Amount
		}
	}
	return 0
}

// SortDues orders previous dues from the oldest year to the newest.
func (s *Student) SortDues() {
	sort.SliceStable(s.PreviousDues, func(i, j int) bool { return s.PreviousDues[i].Year < s.PreviousDues[j].Year })
}

// MarshalJSON adds the derived balance fields.
func (s Student) MarshalJSON() ([]byte, error) {
	type student Student // drop methods
	dues := s.PreviousDues
	if dues == nil {
		dues = []PendingDue{}
	}
	st := student(s)
	st.PreviousDues = dues
	return json.Marshal(struct {
		student
		PreviousDueTotal   core.Money `json:"previous_due_total"`
		CurrentOutstanding core.Money `json:"current_outstanding"`
		Balance            core.Money `json:"balance"`
		Status             string     `json:"status"`
	}{
		student:            st,
		PreviousDueTotal:   s.PreviousDueTotal(),
		CurrentOutstanding: s.CurrentOutstanding(),
		Balance:            s.Balance(),
		Status:             s.Status(),
	})
}

// BalanceSummary details what a student owes.
type BalanceSummary struct {
	StudentID          string       `json:"student_id"`
	CurrentYear        string       `json:"current_year"`
	PreviousDues       []PendingDue `json:"previous_dues"`
	PreviousDueTotal   core.Money   `json:"previous_due_total"`
	CurrentYearFee     core.Money   `json:"current_year_fee"`
	CurrentYearPaid    core.Money   `json:"current_year_paid"`
	CurrentOutstanding core.Money   `json:"current_outstanding"`
	Balance            core.Money   `json:"balance"`
	Status             string       `json:"status"`
}

func NewBalanceSummary(s Student, currentYear string) BalanceSummary {
	dues := make([]PendingDue, 0, len(s.PreviousDues))
	for _, d := range s.PreviousDues {
		if d.Amount > 0 {
			dues = append(dues, d)
		}
	}
	return BalanceSummary{
		StudentID:          s.ID,
		CurrentYear:        currentYear,
		PreviousDues:       dues,
		PreviousDueTotal:   s.PreviousDueTotal(),
		CurrentYearFee:     s.CurrentYearFee,
		CurrentYearPaid:    s.CurrentYearPaid,
		CurrentOutstanding: s.CurrentOutstanding(),
		Balance:            s.Balance(),
		Status:             s.Status(),
	}
}

// NewStudent contains information needed to enrol a new Student.
// CurrentYearFee defaults to the fee total of the class.
type NewStudent struct {
	AdmissionNumber string       `json:"admission_number" validate:"required,notblank,max=30"`
	Name            string       `json:"name" validate:"required,notblank"`
	FatherName      string       `json:"father_name"`
	MotherName      string       `json:"mother_name"`
	DOB             string       `json:"dob" validate:"omitempty,date"`
	ClassName       string       `json:"class_name" validate:"required,notblank"`
	GuardianEmail   string       `json:"guardian_email" validate:"omitempty,email"`
	PreviousDues    []PendingDue `json:"previous_dues" validate:"dive"`
	CurrentYearFee  *core.Money  `json:"current_year_fee" validate:"omitempty,money"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, currentYear string) error {
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
	ns.Name = core.CleanString(ns.Name)
	ns.FatherName = core.CleanString(ns.FatherName)
	ns.MotherName = core.CleanString(ns.MotherName)
	ns.DOB = core.CleanString(ns.DOB)
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
	cleanDues(ns.PreviousDues)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return validateDues(ns.PreviousDues, currentYear)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Nil fields keep their current value.
type UpdateStudent struct {
	AdmissionNumber *string       `json:"admission_number" validate:"omitempty,notblank,max=30"`
	Name            *string       `json:"name" validate:"omitempty,notblank"`
	FatherName      *string       `json:"father_name"`
	MotherName      *string       `json:"mother_name"`
	DOB             *string       `json:"dob" validate:"omitempty,date"`
	ClassName       *string       `json:"class_name" validate:"omitempty,notblank"`
	GuardianEmail   *string       `json:"guardian_email" validate:"omitempty,email"`
	PreviousDues    *[]PendingDue `json:"previous_dues" validate:"omitempty,dive"`
	CurrentYearFee  *core.Money   `json:"current_year_fee" validate:"omitempty,money"`
	IsActive        *bool         `json:"is_active"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate, currentYear string) error {
	for _, field := range []*string{us.AdmissionNumber, us.Name, us.FatherName, us.MotherName, us.DOB, us.ClassName} {
		if field != nil {
			*field = core.CleanString(*field)
		}
	}
	if us.GuardianEmail != nil {
		*us.GuardianEmail = core.CleanString(*us.GuardianEmail, true /* lower */)
	}
	if us.PreviousDues != nil {
		cleanDues(*us.PreviousDues)
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.PreviousDues != nil {
		return validateDues(*us.PreviousDues, currentYear)
	}
	return nil
}

// apply patches s with the non-nil fields of us.
// classFee is the fee structure of *us.ClassName, when set.
func (us UpdateStudent) apply(s *Student, classFee *fee.FeeStructure) {
	if us.AdmissionNumber != nil {
		s.AdmissionNumber = *us.AdmissionNumber
	}
	if us.ClassName != nil && *us.ClassName != s.ClassName {
		s.ClassName = *us.ClassName
		if us.CurrentYearFee == nil && classFee != nil {
			s.CurrentYearFee = classFee.Total
		}
	}
	if us.Name != nil {
		s.Name = *us.Name
	}
	if us.FatherName != nil {
		s.FatherName = *us.FatherName
	}
	if us.MotherName != nil {
		s.MotherName = *us.MotherName
	}
	if us.DOB != nil {
		s.DOB = *us.DOB
	}
	if us.GuardianEmail != nil {
		s.GuardianEmail = *us.GuardianEmail
	}
	if us.PreviousDues != nil {
		s.PreviousDues = *us.PreviousDues
		s.SortDues()
	}
	if us.CurrentYearFee != nil {
		s.CurrentYearFee = *us.CurrentYearFee
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
}

func cleanDues(dues []PendingDue) {
	for i := range dues {
		dues[i].Year = core.CleanString(dues[i].Year)
		dues[i].ClassName = core.CleanString(dues[i].ClassName)
		dues[i].Description = core.CleanString(dues[i].Description)
	}
}

// validateDues checks that previous dues years are unique and older than the current academic year.
func validateDues(dues []PendingDue, currentYear string) error {
	seen := make(map[string]bool, len(dues))
	for _, d := range dues {
		if seen[d.Year] {
			return core.NewFieldError("previous_dues", "duplicate year "+d.Year)
		}
		seen[d.Year] = true
		if d.Year >= currentYear {
			return core.NewFieldError("previous_dues", errors.Errorf("%s is not a previous academic year", d.Year).Error())
		}
	}
	return nil
}

type QueryFilter struct {
	Search    string `query:"search"` // name, admission number or father name
	ClassName string `query:"class"`
	IsActive  string `query:"is_active"` // "true" | "false" | ""
	Status    string `query:"status"`    // overdue | due | paid
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassName = core.CleanString(qf.ClassName)
	qf.IsActive = core.CleanString(qf.IsActive, true /* lower */)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// Active returns the is_active filter; nil when absent or unparsable.
func (qf *QueryFilter) Active() *bool {
	switch qf.IsActive {
	case "true", "1":
		b := true
		return &b
	case "false", "0":
		b := false
		return &b
	}
	return nil
}
