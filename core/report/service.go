package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/payment"
	"github.com/trezcool/edufee/core/student"
)

var (
	// errors
	ErrUnknownKind     = errors.New("unknown report kind")
	ErrStudentRequired = errors.New("select a student")

	dashboardKeyPrefix = "dashboard:stats:"
)

type (
	Service interface {
		Dashboard(ctx context.Context) (DashboardStats, error)
		// InvalidateDashboard drops the cached DashboardStats of the day.
		InvalidateDashboard(ctx context.Context)
		Defaulters(ctx context.Context, filter *DefaulterFilter) (Defaulters, error)
		Generate(ctx context.Context, req Request) (Report, error)
	}

	service struct {
		conf     *core.Config
		students student.Repository
		payments payment.Repository
		cache    core.Cache
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	students student.Repository,
	payments payment.Repository,
	cache core.Cache,
	logger core.Logger,
) Service {
	return &service{
		conf:     conf,
		students: students,
		payments: payments,
		cache:    cache,
		logger:   logger,
	}
}

func monthStart(date string) string {
	return date[:8] + "01"
}

func (svc *service) money(m core.Money) string {
	return m.Format(svc.conf.Currency)
}

func activeFilter() *student.QueryFilter {
	return &student.QueryFilter{IsActive: "true"}
}

func (svc *service) Dashboard(ctx context.Context) (DashboardStats, error) {
	today := core.Today()
	key := dashboardKeyPrefix + today

	var stats DashboardStats
	err := svc.cache.Get(ctx, key, &stats)
	if err == nil {
		return stats, nil
	}
	if errors.Cause(err) != core.ErrCacheMiss {
		svc.logger.Warn("reading dashboard stats from cache", err)
	}

	if stats, err = svc.computeDashboard(ctx, today); err != nil {
		return DashboardStats{}, err
	}
	if err := svc.cache.Set(ctx, key, stats, svc.conf.Cache.TTL); err != nil {
		svc.logger.Warn("caching dashboard stats", err)
	}
	return stats, nil
}

func (svc *service) computeDashboard(ctx context.Context, today string) (DashboardStats, error) {
	stats := DashboardStats{Date: today, AcademicYear: svc.conf.CurrentAcademicYear}

	students, err := svc.students.QueryStudents(ctx, activeFilter(), nil)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "querying students")
	}
	stats.TotalStudents = len(students)
	for _, s := range students {
		if bal := s.Balance(); bal > 0 {
			stats.TotalOutstanding += bal
		}
	}

	day, err := svc.payments.SumPayments(ctx, &payment.QueryFilter{From: today, To: today})
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "summing today's payments")
	}
	stats.CollectedToday = day.Amount

	month, err := svc.payments.SumPayments(ctx, &payment.QueryFilter{From: monthStart(today), To: today})
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "summing this month's payments")
	}
	stats.CollectedMonth = month.Amount
	stats.DiscountMonth = month.Discount
	return stats, nil
}

func (svc *service) InvalidateDashboard(ctx context.Context) {
	if err := svc.cache.Delete(ctx, dashboardKeyPrefix+core.Today()); err != nil {
		svc.logger.Warn("invalidating dashboard stats", err)
	}
}

func (svc *service) Defaulters(ctx context.Context, filter *DefaulterFilter) (Defaulters, error) {
	filter.Clean()
	qf := activeFilter()
	qf.Search = filter.Search

	students, err := svc.students.QueryStudents(ctx, qf, nil)
	if err != nil {
		return Defaulters{}, errors.Wrap(err, "querying students")
	}

	res := Defaulters{Students: make([]student.Student, 0), Classes: make([]string, 0)}
	seenClasses := make(map[string]bool)
	for _, s := range students {
		if s.Balance() <= 0 {
			continue
		}
		if !seenClasses[s.ClassName] {
			seenClasses[s.ClassName] = true
			res.Classes = append(res.Classes, s.ClassName)
		}
		if filter.Chip == ChipOverdue && s.PreviousDueTotal() <= 0 {
			continue
		}
		if filter.ClassName != "" && s.ClassName != filter.ClassName {
			continue
		}
		res.Students = append(res.Students, s)
		res.Total += s.Balance()
	}

	fee.SortClasses(res.Classes)
	sort.SliceStable(res.Students, func(i, j int) bool { return res.Students[i].Balance() > res.Students[j].Balance() })
	return res, nil
}

// Generate builds the Report of req.Kind.
func (svc *service) Generate(ctx context.Context, req Request) (Report, error) {
	req.Clean()
	var (
		rep Report
		err error
	)
	switch req.Kind {
	case KindOutstanding:
		rep, err = svc.outstanding(ctx, req)
	case KindCollection, KindDaily:
		rep, err = svc.collection(ctx, req)
	case KindLedger:
		if req.StudentID != "" {
			rep, err = svc.studentLedger(ctx, req)
		} else {
			rep, err = svc.generalLedger(ctx, req)
		}
	default:
		return Report{}, core.NewValidationError(ErrUnknownKind, core.FieldError{Field: "kind", Error: ErrUnknownKind.Error()})
	}
	if err != nil {
		return Report{}, err
	}

	rep.Kind = req.Kind
	rep.SchoolName = svc.conf.SchoolName
	rep.GeneratedAt = time.Now().UTC()
	if rep.Rows == nil {
		rep.Rows = [][]string{}
	}
	return rep, nil
}

func (svc *service) outstanding(ctx context.Context, req Request) (Report, error) {
	students, err := svc.students.QueryStudents(ctx, &student.QueryFilter{ClassName: req.ClassName}, nil)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying students")
	}

	owing := students[:0]
	for _, s := range students {
		if s.Balance() > 0 {
			owing = append(owing, s)
		}
	}
	sort.SliceStable(owing, func(i, j int) bool { return owing[i].Balance() > owing[j].Balance() })

	var total core.Money
	rows := make([][]string, 0, len(owing))
	for _, s := range owing {
		total += s.Balance()
		rows = append(rows, []string{s.AdmissionNumber, s.Name, s.ClassName, s.FatherName, svc.money(s.Balance())})
	}

	class := req.ClassName
	if class == "" {
		class = "All Classes"
	}
	return Report{
		Title:    "Outstanding Fees Report",
		Subtitle: fmt.Sprintf("As of %s • %s", core.Today(), class),
		Summary:  Summary{Label: "Total Outstanding", Value: svc.money(total)},
		Headers:  []string{"Adm No", "Name", "Class", "Father Name", "Amount Due"},
		Rows:     rows,
	}, nil
}

// period fills the default date range of a report kind.
func period(req Request) (from, to string) {
	today := core.Today()
	from, to = req.From, req.To
	if to == "" {
		to = today
	}
	if from == "" {
		if req.Kind == KindDaily {
			from = to
		} else {
			from = monthStart(to)
		}
	}
	return from, to
}

func (svc *service) queryPayments(ctx context.Context, qf *payment.QueryFilter) ([]payment.Payment, core.Money, error) {
	payments, err := svc.payments.QueryPayments(ctx, qf, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying payments")
	}
	var total core.Money
	for _, p := range payments {
		total += p.Amount
	}
	return payments, total, nil
}

func (svc *service) collection(ctx context.Context, req Request) (Report, error) {
	from, to := period(req)
	payments, total, err := svc.queryPayments(ctx, &payment.QueryFilter{
		From:      from,
		To:        to,
		ClassName: req.ClassName,
		Staff:     req.Staff,
	})
	if err != nil {
		return Report{}, err
	}

	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, []string{
			p.Date, p.ReceiptNumber, p.StudentName, p.StudentClass, p.Method, p.RecordedBy.Name, svc.money(p.Amount),
		})
	}

	title := "Fee Collection Report"
	if req.Kind == KindDaily {
		title = "Daily Collection Report"
	}
	subtitle := fmt.Sprintf("Period: %s to %s", from, to)
	if req.Staff != "" {
		subtitle += " • Staff: " + req.Staff
	}
	return Report{
		Title:    title,
		Subtitle: subtitle,
		Summary:  Summary{Label: "Total Collection", Value: svc.money(total)},
		Headers:  []string{"Date", "Receipt", "Student", "Class", "Mode", "Recorded By", "Amount"},
		Rows:     rows,
	}, nil
}

func (svc *service) studentLedger(ctx context.Context, req Request) (Report, error) {
	s, err := svc.students.GetStudent(ctx, req.StudentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Report{}, core.NewValidationError(ErrStudentRequired, core.FieldError{Field: "student_id", Error: student.ErrNotFound.Error()})
		}
		return Report{}, errors.Wrap(err, "getting student")
	}

	payments, total, err := svc.queryPayments(ctx, &payment.QueryFilter{StudentID: s.ID, From: req.From, To: req.To, Staff: req.Staff})
	if err != nil {
		return Report{}, err
	}

	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		allocs := make([]string, 0, len(p.Allocations))
		for _, a := range p.Allocations {
			allocs = append(allocs, a.Year+": "+svc.money(a.Amount))
		}
		rows = append(rows, []string{
			p.Date, p.ReceiptNumber, p.Method, strings.Join(allocs, ", "), p.RecordedBy.Name, svc.money(p.Amount),
		})
	}

	return Report{
		Title:    "Student Ledger",
		Subtitle: fmt.Sprintf("%s (Class %s)", s.Name, s.ClassName),
		Summary:  Summary{Label: "Total Paid by Student", Value: svc.money(total)},
		Headers:  []string{"Date", "Receipt", "Type", "Allocations", "Recorded By", "Amount"},
		Rows:     rows,
	}, nil
}

func (svc *service) generalLedger(ctx context.Context, req Request) (Report, error) {
	from, to := period(req)
	payments, total, err := svc.queryPayments(ctx, &payment.QueryFilter{
		From:      from,
		To:        to,
		ClassName: req.ClassName,
		Staff:     req.Staff,
	})
	if err != nil {
		return Report{}, err
	}

	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, []string{p.Date, p.ReceiptNumber, p.StudentName, p.StudentClass, p.Method, svc.money(p.Amount)})
	}

	return Report{
		Title:    "Transaction Ledger",
		Subtitle: fmt.Sprintf("Transactions from %s to %s", from, to),
		Summary:  Summary{Label: "Ledger Total", Value: svc.money(total)},
		Headers:  []string{"Date", "Receipt", "Student", "Class", "Mode", "Amount"},
		Rows:     rows,
	}, nil
}
