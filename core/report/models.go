package report

import (
	"time"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/student"
)

// Kinds
const (
	KindOutstanding = "outstanding"
	KindCollection  = "collection"
	KindDaily       = "daily"
	KindLedger      = "ledger"
)

var AllKinds = []string{KindOutstanding, KindCollection, KindDaily, KindLedger}

func IsValidKind(k string) bool {
	for _, kind := range AllKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Defaulter chips
const (
	ChipAll     = "all"
	ChipOverdue = "overdue" // has unpaid dues from previous years
)

// DashboardStats are the figures shown on the home screen.
type DashboardStats struct {
	TotalStudents    int        `json:"total_students"` // active only
	TotalOutstanding core.Money `json:"total_outstanding"`
	CollectedToday   core.Money `json:"collected_today"`
	CollectedMonth   core.Money `json:"collected_month"`
	DiscountMonth    core.Money `json:"discount_month"`
	Date             string     `json:"date"`
	AcademicYear     string     `json:"academic_year"`
}

type DefaulterFilter struct {
	Search    string `query:"search"`
	Chip      string `query:"chip"`  // all | overdue
	ClassName string `query:"class"` // restricts to one class
}

func (df *DefaulterFilter) Clean() {
	df.Search = core.CleanString(df.Search)
	df.Chip = core.CleanString(df.Chip, true /* lower */)
	if df.Chip != ChipOverdue {
		df.Chip = ChipAll
	}
	df.ClassName = core.CleanString(df.ClassName)
}

// Defaulters lists the active students who still owe something, largest balance first.
type Defaulters struct {
	Students []student.Student `json:"students"`
	Classes  []string          `json:"classes"` // classes having defaulters, for the class chips
	Total    core.Money        `json:"total"`
}

// Request selects and filters a Report.
type Request struct {
	Kind      string `param:"kind" query:"kind"`
	From      string `query:"from"` // YYYY-MM-DD
	To        string `query:"to"`   // YYYY-MM-DD
	ClassName string `query:"class"`
	Staff     string `query:"staff"`
	StudentID string `query:"student_id"` // ledger only
	Format    string `query:"format"`     // json | csv | pdf
}

func (r *Request) Clean() {
	r.Kind = core.CleanString(r.Kind, true /* lower */)
	r.From = core.CleanString(r.From)
	if !core.IsDate(r.From) {
		r.From = ""
	}
	r.To = core.CleanString(r.To)
	if !core.IsDate(r.To) {
		r.To = ""
	}
	r.ClassName = core.CleanString(r.ClassName)
	if r.ClassName == "all" {
		r.ClassName = ""
	}
	r.Staff = core.CleanString(r.Staff)
	if r.Staff == "all" {
		r.Staff = ""
	}
	r.StudentID = core.CleanString(r.StudentID)
	r.Format = core.CleanString(r.Format, true /* lower */)
}

type Summary struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Report is a printable table; every cell is already formatted.
type Report struct {
	Kind        string     `json:"kind"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	SchoolName  string     `json:"school_name"`
	Summary     Summary    `json:"summary"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
	GeneratedAt time.Time  `json:"generated_at"` // UTC
}
