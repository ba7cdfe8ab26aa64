package payment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edufee/core"
)

// Methods
const (
	MethodCash   = "CASH"
	MethodUPI    = "UPI"
	MethodCheque = "CHEQUE"
	MethodCard   = "CARD"
)

var AllMethods = []string{MethodCash, MethodUPI, MethodCheque, MethodCard}

func IsValidMethod(m string) bool {
	for _, method := range AllMethods {
		if m == method {
			return true
		}
	}
	return false
}

type RecordedBy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Payment struct {
	ID              string       `json:"id"`
	ReceiptNumber   string       `json:"receipt_number"`
	ReceiptSeq      int64        `json:"-"`
	StudentID       string       `json:"student_id"`
	StudentName     string       `json:"student_name"`
	AdmissionNumber string       `json:"admission_number"`
	StudentClass    string       `json:"student_class"` // class at the time of payment
	AcademicYear    string       `json:"academic_year"` // current academic year at the time of payment
	Date            string       `json:"date"`          // YYYY-MM-DD
	Amount          core.Money   `json:"amount"`
	Discount        core.Money   `json:"discount"`
	Method          string       `json:"method"`
	Note            string       `json:"note"`
	Allocations     []Allocation `json:"allocations"`
	RecordedBy      RecordedBy   `json:"recorded_by"`
	CreatedAt       time.Time    `json:"created_at"` // UTC
}

// NewPayment contains information needed to record a Payment.
// Allocations are computed automatically when omitted.
type NewPayment struct {
	StudentID   string       `json:"student_id" validate:"required"`
	Amount      core.Money   `json:"amount" validate:"money"`
	Discount    core.Money   `json:"discount" validate:"money"`
	Method      string       `json:"method" validate:"required,paymentmethod"`
	Date        string       `json:"date" validate:"omitempty,date"`
	Note        string       `json:"note" validate:"max=500"`
	Allocations []Allocation `json:"allocations" validate:"omitempty,dive"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.Method = core.CleanString(np.Method)
	np.Date = core.CleanString(np.Date)
	np.Note = core.CleanString(np.Note)
	for i := range np.Allocations {
		np.Allocations[i].Year = core.CleanString(np.Allocations[i].Year)
	}

	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.Amount == 0 && np.Discount == 0 {
		return core.NewFieldError("amount", "enter an amount or a discount")
	}
	return nil
}

// PreviewRequest asks for the automatic allocation of a payment that is not recorded.
type PreviewRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	Amount    core.Money `json:"amount" validate:"money"`
	Discount  core.Money `json:"discount" validate:"money"`
}

func (pr *PreviewRequest) Validate(validate *validator.Validate) error {
	pr.StudentID = core.CleanString(pr.StudentID)
	return validate.Struct(pr)
}

type Preview struct {
	AllocationResult
	StudentID     string     `json:"student_id"`
	Amount        core.Money `json:"amount"`
	Discount      core.Money `json:"discount"`
	BalanceBefore core.Money `json:"balance_before"`
	BalanceAfter  core.Money `json:"balance_after"`
}

type QueryFilter struct {
	StudentID  string `query:"student_id"`
	From       string `query:"from"` // YYYY-MM-DD, inclusive
	To         string `query:"to"`   // YYYY-MM-DD, inclusive
	ClassName  string `query:"class"`
	RecordedBy string `query:"recorded_by"` // user ID
	Staff      string `query:"staff"`       // name of the user who recorded the payment
	Method     string `query:"method"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.From = core.CleanString(qf.From)
	if !core.IsDate(qf.From) {
		qf.From = ""
	}
	qf.To = core.CleanString(qf.To)
	if !core.IsDate(qf.To) {
		qf.To = ""
	}
	qf.ClassName = core.CleanString(qf.ClassName)
	qf.RecordedBy = core.CleanString(qf.RecordedBy)
	qf.Staff = core.CleanString(qf.Staff)
	qf.Method = core.CleanString(qf.Method)
}

// Totals sums the payments matching a QueryFilter.
type Totals struct {
	Count    int        `json:"count" db:"count"`
	Amount   core.Money `json:"amount" db:"amount"`
	Discount core.Money `json:"discount" db:"discount"`
}

type ReceiptLine struct {
	Description string     `json:"description"`
	Year        string     `json:"year"`
	Amount      core.Money `json:"amount"`
}

// Receipt is the printable view of a Payment.
type Receipt struct {
	SchoolName      string        `json:"school_name"`
	Currency        string        `json:"currency"`
	ReceiptNumber   string        `json:"receipt_number"`
	Date            string        `json:"date"`
	StudentName     string        `json:"student_name"`
	AdmissionNumber string        `json:"admission_number"`
	FatherName      string        `json:"father_name"`
	ClassName       string        `json:"class_name"`
	Method          string        `json:"method"`
	Lines           []ReceiptLine `json:"lines"`
	Amount          core.Money    `json:"amount"`
	Discount        core.Money    `json:"discount"`
	Total           core.Money    `json:"total"` // amount + discount
	Note            string        `json:"note"`
	CollectedBy     string        `json:"collected_by"`
}

func receiptLineDescription(year, paymentYear string) string {
	if year == paymentYear {
		return "Tuition Fees (Current)"
	}
	return "Arrears (" + year + ")"
}
