package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/payment"
)

const paymentColumns = "p.id, p.receipt_seq, p.receipt_no, p.student_id, p.date, p.amount, p.discount, p.method, p.note, " +
	"p.student_class, p.academic_year, p.recorded_by_id, p.recorded_by_name, p.created_at, " +
	"COALESCE(s.name, '') AS student_name, COALESCE(s.admission_no, '') AS admission_no"

var paymentOrderings = map[string]string{
	"date":       "p.date",
	"receipt":    "p.receipt_seq",
	"amount":     "p.amount",
	"created_at": "p.created_at",
}

type paymentRow struct {
	ID              string      `db:"id"`
	ReceiptSeq      int64       `db:"receipt_seq"`
	ReceiptNumber   string      `db:"receipt_no"`
	StudentID       string      `db:"student_id"`
	Date            string      `db:"date"`
	Amount          core.Money  `db:"amount"`
	Discount        core.Money  `db:"discount"`
	Method          string      `db:"method"`
	Note            null.String `db:"note"`
	StudentClass    string      `db:"student_class"`
	AcademicYear    string      `db:"academic_year"`
	RecordedByID    string      `db:"recorded_by_id"`
	RecordedByName  string      `db:"recorded_by_name"`
	CreatedAt       time.Time   `db:"created_at"`
	StudentName     string      `db:"student_name"`
	AdmissionNumber string      `db:"admission_no"`
}

type allocationRow struct {
	PaymentID string     `db:"payment_id"`
	Year      string     `db:"year"`
	Amount    core.Money `db:"amount"`
}

func toPaymentRow(p payment.Payment) paymentRow {
	return paymentRow{
		ID:             p.ID,
		ReceiptSeq:     p.ReceiptSeq,
		ReceiptNumber:  p.ReceiptNumber,
		StudentID:      p.StudentID,
		Date:           p.Date,
		Amount:         p.Amount,
		Discount:       p.Discount,
		Method:         p.Method,
		Note:           null.NewString(p.Note, p.Note != ""),
		StudentClass:   p.StudentClass,
		AcademicYear:   p.AcademicYear,
		RecordedByID:   p.RecordedBy.ID,
		RecordedByName: p.RecordedBy.Name,
		CreatedAt:      p.CreatedAt.UTC(),
	}
}

func (row paymentRow) toPayment(allocs []allocationRow) payment.Payment {
	p := payment.Payment{
		ID:              row.ID,
		ReceiptNumber:   row.ReceiptNumber,
		ReceiptSeq:      row.ReceiptSeq,
		StudentID:       row.StudentID,
		StudentName:     row.StudentName,
		AdmissionNumber: row.AdmissionNumber,
		StudentClass:    row.StudentClass,
		AcademicYear:    row.AcademicYear,
		Date:            row.Date,
		Amount:          row.Amount,
		Discount:        row.Discount,
		Method:          row.Method,
		Note:            row.Note.String,
		Allocations:     make([]payment.Allocation, 0, len(allocs)),
		RecordedBy:      payment.RecordedBy{ID: row.RecordedByID, Name: row.RecordedByName},
		CreatedAt:       row.CreatedAt.UTC(),
	}
	for _, a := range allocs {
		p.Allocations = append(p.Allocations, payment.Allocation{Year: a.Year, Amount: a.Amount})
	}
	return p
}

type paymentRepository struct {
	baseRepository
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(exec core.DBExecutor) *paymentRepository {
	return &paymentRepository{baseRepository{exec: exec}}
}

// NextReceiptSeq returns the next receipt sequence number; run it inside the transaction creating the payment.
func (repo paymentRepository) NextReceiptSeq(ctx context.Context, exec ...core.DBExecutor) (int64, error) {
	var seq int64
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &seq, "SELECT COALESCE(MAX(receipt_seq), 0) + 1 FROM payments"); err != nil {
		return 0, errors.Wrap(err, "computing receipt sequence")
	}
	return seq, nil
}

// CreatePayment inserts p and its allocations; run it inside a transaction.
func (repo paymentRepository) CreatePayment(ctx context.Context, p payment.Payment, exec ...core.DBExecutor) (payment.Payment, error) {
	exe := repo.getExec(exec)
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	q := `INSERT INTO payments (id, receipt_seq, receipt_no, student_id, date, amount, discount, method, note,
			student_class, academic_year, recorded_by_id, recorded_by_name, created_at)
		VALUES (:id, :receipt_seq, :receipt_no, :student_id, :date, :amount, :discount, :method, :note,
			:student_class, :academic_year, :recorded_by_id, :recorded_by_name, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exe, q, toPaymentRow(p)); err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}

	q = "INSERT INTO payment_allocations (payment_id, year, amount) VALUES (:payment_id, :year, :amount)"
	for _, a := range p.Allocations {
		if _, err := sqlx.NamedExecContext(ctx, exe, q, allocationRow{PaymentID: p.ID, Year: a.Year, Amount: a.Amount}); err != nil {
			return payment.Payment{}, errors.Wrapf(err, "inserting allocation of %s", a.Year)
		}
	}
	return repo.GetPayment(ctx, p.ID, exe)
}

func (repo paymentRepository) loadAllocations(ctx context.Context, exe core.DBExecutor, ids []string) (map[string][]allocationRow, error) {
	allocs := make(map[string][]allocationRow, len(ids))
	if len(ids) == 0 {
		return allocs, nil
	}
	q, args, err := sqlx.In("SELECT payment_id, year, amount FROM payment_allocations WHERE payment_id IN (?) ORDER BY year", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building allocations query")
	}

	var rows []allocationRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying allocations")
	}
	for _, row := range rows {
		allocs[row.PaymentID] = append(allocs[row.PaymentID], row)
	}
	return allocs, nil
}

func (repo paymentRepository) GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (payment.Payment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return payment.Payment{}, payment.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row paymentRow
	q := "SELECT " + paymentColumns + " FROM payments p LEFT JOIN students s ON s.id = p.student_id WHERE p.id = ?"
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), id); err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrNotFound, "finding payment")
	}
	allocs, err := repo.loadAllocations(ctx, exe, []string{id})
	if err != nil {
		return payment.Payment{}, err
	}
	return row.toPayment(allocs[id]), nil
}

func paymentsWhere(filter *payment.QueryFilter) *whereClause {
	where := &whereClause{}
	if filter == nil {
		return where
	}
	if filter.StudentID != "" {
		where.add("p.student_id = ?", filter.StudentID)
	}
	if filter.From != "" {
		where.add("p.date >= ?", filter.From)
	}
	if filter.To != "" {
		where.add("p.date <= ?", filter.To)
	}
	if filter.ClassName != "" {
		where.add("p.student_class = ?", filter.ClassName)
	}
	if filter.RecordedBy != "" {
		where.add("p.recorded_by_id = ?", filter.RecordedBy)
	}
	if filter.Staff != "" {
		where.add("p.recorded_by_name = ?", filter.Staff)
	}
	if filter.Method != "" {
		where.add("p.method = ?", filter.Method)
	}
	return where
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]payment.Payment, error) {
	exe := repo.getExec(exec)
	where := paymentsWhere(filter)

	var rows []paymentRow
	q := "SELECT " + paymentColumns + " FROM payments p LEFT JOIN students s ON s.id = p.student_id" +
		where.String() + orderBy(ordering, paymentOrderings, "p.date DESC, p.receipt_seq DESC")
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	allocs, err := repo.loadAllocations(ctx, exe, ids)
	if err != nil {
		return nil, err
	}

	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.toPayment(allocs[row.ID]))
	}
	return payments, nil
}

func (repo paymentRepository) SumPayments(ctx context.Context, filter *payment.QueryFilter, exec ...core.DBExecutor) (payment.Totals, error) {
	exe := repo.getExec(exec)
	where := paymentsWhere(filter)

	var totals payment.Totals
	q := "SELECT COUNT(*) AS count, COALESCE(SUM(p.amount), 0) AS amount, COALESCE(SUM(p.discount), 0) AS discount FROM payments p" +
		where.String()
	if err := sqlx.GetContext(ctx, exe, &totals, exe.Rebind(q), where.args...); err != nil {
		return payment.Totals{}, errors.Wrap(err, "summing payments")
	}
	return totals, nil
}
