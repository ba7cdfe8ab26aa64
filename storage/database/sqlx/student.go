package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/student"
)

const studentColumns = "id, admission_no, name, father_name, mother_name, dob, class_name, guardian_email, " +
	"current_year_fee, current_year_paid, is_active, created_at, updated_at"

var studentOrderings = map[string]string{
	"name":             "name",
	"admission_number": "admission_no",
	"class_name":       "class_name",
	"created_at":       "created_at",
	"updated_at":       "updated_at",
}

type studentRow struct {
	ID              string      `db:"id"`
	AdmissionNumber string      `db:"admission_no"`
	Name            string      `db:"name"`
	FatherName      string      `db:"father_name"`
	MotherName      string      `db:"mother_name"`
	DOB             string      `db:"dob"`
	ClassName       string      `db:"class_name"`
	GuardianEmail   null.String `db:"guardian_email"`
	CurrentYearFee  core.Money  `db:"current_year_fee"`
	CurrentYearPaid core.Money  `db:"current_year_paid"`
	IsActive        bool        `db:"is_active"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

type dueRow struct {
	StudentID   string      `db:"student_id"`
	Year        string      `db:"year"`
	Amount      core.Money  `db:"amount"`
	ClassName   null.String `db:"class_name"`
	Description null.String `db:"description"`
}

func toStudentRow(s student.Student) studentRow {
	return studentRow{
		ID:              s.ID,
		AdmissionNumber: s.AdmissionNumber,
		Name:            s.Name,
		FatherName:      s.FatherName,
		MotherName:      s.MotherName,
		DOB:             s.DOB,
		ClassName:       s.ClassName,
		GuardianEmail:   null.NewString(s.GuardianEmail, s.GuardianEmail != ""),
		CurrentYearFee:  s.CurrentYearFee,
		CurrentYearPaid: s.CurrentYearPaid,
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAt.UTC(),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}
}

func (row studentRow) toStudent(dues []dueRow) student.Student {
	s := student.Student{
		ID:              row.ID,
		AdmissionNumber: row.AdmissionNumber,
		Name:            row.Name,
		FatherName:      row.FatherName,
		MotherName:      row.MotherName,
		DOB:             row.DOB,
		ClassName:       row.ClassName,
		GuardianEmail:   row.GuardianEmail.String,
		PreviousDues:    make([]student.PendingDue, 0, len(dues)),
		CurrentYearFee:  row.CurrentYearFee,
		CurrentYearPaid: row.CurrentYearPaid,
		IsActive:        row.IsActive,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	for _, d := range dues {
		s.PreviousDues = append(s.PreviousDues, student.PendingDue{
			Year:        d.Year,
			Amount:      d.Amount,
			ClassName:   d.ClassName.String,
			Description: d.Description.String,
		})
	}
	s.SortDues()
	return s
}

type studentRepository struct {
	baseRepository
}

var (
	// interface compliance checks
	_ student.Repository = (*studentRepository)(nil)
	_ fee.ClassCounter   = (*studentRepository)(nil)
)

func NewStudentRepository(exec core.DBExecutor) *studentRepository {
	return &studentRepository{baseRepository{exec: exec}}
}

func (repo studentRepository) CheckAdmissionNumberUniqueness(ctx context.Context, admissionNumber string, excludedIDs []string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)

	where := &whereClause{}
	where.add("LOWER(admission_no) = ?", core.CleanString(admissionNumber, true /* lower */))
	if len(excludedIDs) > 0 {
		where.add("id NOT IN (?)", excludedIDs)
	}
	q, args, err := sqlx.In("SELECT COUNT(*) FROM students"+where.String(), where.args...)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}

	var cnt int
	if err := sqlx.GetContext(ctx, exe, &cnt, exe.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking admission number uniqueness")
	}
	if cnt > 0 {
		return student.ErrAdmissionNumberExists
	}
	return nil
}

func (repo studentRepository) insertDues(ctx context.Context, exe core.DBExecutor, s student.Student) error {
	q := `INSERT INTO student_dues (student_id, year, amount, class_name, description)
		VALUES (:student_id, :year, :amount, :class_name, :description)`
	for _, d := range s.PreviousDues {
		if d.Amount <= 0 {
			continue
		}
		row := dueRow{
			StudentID:   s.ID,
			Year:        d.Year,
			Amount:      d.Amount,
			ClassName:   null.NewString(d.ClassName, d.ClassName != ""),
			Description: null.NewString(d.Description, d.Description != ""),
		}
		if _, err := sqlx.NamedExecContext(ctx, exe, q, row); err != nil {
			return errors.Wrapf(err, "inserting due of %s", d.Year)
		}
	}
	return nil
}

// CreateStudent inserts s and its previous dues; run it inside a transaction.
func (repo studentRepository) CreateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	exe := repo.getExec(exec)
	if s.ID == "" {
		s.ID = uuid.New().String()
	}

	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :admission_no, :name, :father_name, :mother_name, :dob, :class_name, :guardian_email,
			:current_year_fee, :current_year_paid, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exe, q, toStudentRow(s)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	if err := repo.insertDues(ctx, exe, s); err != nil {
		return student.Student{}, err
	}
	return repo.GetStudent(ctx, s.ID, exe)
}

// loadDues fetches the previous dues of the given students, keyed by student ID.
func (repo studentRepository) loadDues(ctx context.Context, exe core.DBExecutor, ids []string) (map[string][]dueRow, error) {
	dues := make(map[string][]dueRow, len(ids))
	if len(ids) == 0 {
		return dues, nil
	}
	q, args, err := sqlx.In(
		"SELECT student_id, year, amount, class_name, description FROM student_dues WHERE student_id IN (?) AND amount > 0",
		ids,
	)
	if err != nil {
		return nil, errors.Wrap(err, "building dues query")
	}

	var rows []dueRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying dues")
	}
	for _, row := range rows {
		dues[row.StudentID] = append(dues[row.StudentID], row)
	}
	return dues, nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	exe := repo.getExec(exec)

	where := &whereClause{}
	if filter != nil {
		// students with Name, AdmissionNumber or FatherName matching the search keyword
		if filter.Search != "" {
			val := likePattern(filter.Search)
			where.add("(LOWER(name) LIKE ? OR LOWER(admission_no) LIKE ? OR LOWER(father_name) LIKE ?)", val, val, val)
		}
		if filter.ClassName != "" {
			where.add("class_name = ?", filter.ClassName)
		}
		if active := filter.Active(); active != nil {
			where.add("is_active = ?", *active)
		}
	}

	var rows []studentRow
	q := "SELECT " + studentColumns + " FROM students" + where.String() + orderBy(ordering, studentOrderings, "name ASC")
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), where.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	dues, err := repo.loadDues(ctx, exe, ids)
	if err != nil {
		return nil, err
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toStudent(dues[row.ID]))
	}
	return students, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	exe := repo.getExec(exec)

	var row studentRow
	q := "SELECT " + studentColumns + " FROM students WHERE id = ?"
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	dues, err := repo.loadDues(ctx, exe, []string{id})
	if err != nil {
		return student.Student{}, err
	}
	return row.toStudent(dues[id]), nil
}

// LockStudent reads a student inside a transaction, holding its row lock until commit on postgres.
// SQLite takes the database write lock on the first write of the transaction instead.
func (repo studentRepository) LockStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	exe := repo.getExec(exec)

	if exe.DriverName() == "postgres" {
		var locked string
		if err := sqlx.GetContext(ctx, exe, &locked, exe.Rebind("SELECT id FROM students WHERE id = ? FOR UPDATE"), id); err != nil {
			return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "locking student")
		}
	}
	return repo.GetStudent(ctx, id, exe)
}

// UpdateStudent saves the profile and fee of s and replaces its previous dues; run it inside a transaction.
// The paid amount is left untouched: only UpdateBalances writes it.
func (repo studentRepository) UpdateStudent(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	q := `UPDATE students SET
		admission_no = :admission_no, name = :name, father_name = :father_name, mother_name = :mother_name,
		dob = :dob, class_name = :class_name, guardian_email = :guardian_email,
		current_year_fee = :current_year_fee, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	return repo.save(ctx, repo.getExec(exec), q, s)
}

// UpdateBalances saves the paid amount of s and replaces its previous dues; run it inside a transaction.
func (repo studentRepository) UpdateBalances(ctx context.Context, s student.Student, exec ...core.DBExecutor) (student.Student, error) {
	q := `UPDATE students SET current_year_paid = :current_year_paid, updated_at = :updated_at WHERE id = :id`
	return repo.save(ctx, repo.getExec(exec), q, s)
}

func (repo studentRepository) save(ctx context.Context, exe core.DBExecutor, q string, s student.Student) (student.Student, error) {
	res, err := sqlx.NamedExecContext(ctx, exe, q, toStudentRow(s))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}

	if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM student_dues WHERE student_id = ?"), s.ID); err != nil {
		return student.Student{}, errors.Wrap(err, "clearing dues")
	}
	if err := repo.insertDues(ctx, exe, s); err != nil {
		return student.Student{}, err
	}
	return repo.GetStudent(ctx, s.ID, exe)
}

func (repo studentRepository) DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM student_dues WHERE student_id = ?"), id); err != nil {
		return errors.Wrap(err, "deleting dues")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM students WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) CountActiveInClass(ctx context.Context, className string, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	var cnt int
	q := "SELECT COUNT(*) FROM students WHERE class_name = ? AND is_active = ?"
	if err := sqlx.GetContext(ctx, exe, &cnt, exe.Rebind(q), className, true); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return cnt, nil
}

func (repo studentRepository) HasPayments(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	exe := repo.getExec(exec)
	var cnt int
	if err := sqlx.GetContext(ctx, exe, &cnt, exe.Rebind("SELECT COUNT(*) FROM payments WHERE student_id = ?"), id); err != nil {
		return false, errors.Wrap(err, "counting payments")
	}
	return cnt > 0, nil
}
