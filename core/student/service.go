package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
)

var (
	// errors
	ErrNotFound              = errors.New("student not found")
	ErrAdmissionNumberExists = errors.New("a student with this admission number already exists")
	ErrHasPayments           = errors.New("this student has recorded payments; deactivate them instead")
	ErrUnknownClass          = errors.New("no fee structure is configured for this class")
)

type (
	Repository interface {
		CheckAdmissionNumberUniqueness(ctx context.Context, admissionNumber string, excludedIDs []string, exec ...core.DBExecutor) error
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields, except Status which is derived.
		// QueryFilter.Search does a case-insensitive match on one of Name, AdmissionNumber or FatherName.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// LockStudent is GetStudent holding the student's row until the transaction ends.
		LockStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		// UpdateStudent saves the profile and fee of s, replacing its previous dues. CurrentYearPaid is not written.
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		// UpdateBalances saves CurrentYearPaid of s, replacing its previous dues.
		UpdateBalances(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudent(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountActiveInClass(ctx context.Context, className string, exec ...core.DBExecutor) (int, error)
		HasPayments(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		Get(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, s Student, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, id string) error
		Balance(ctx context.Context, id string) (BalanceSummary, error)
	}

	service struct {
		db          core.DB
		repo        Repository
		fees        fee.Repository
		currentYear string
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, db core.DB, repo Repository, fees fee.Repository) Service {
	return &service{
		db:          db,
		repo:        repo,
		fees:        fees,
		currentYear: conf.CurrentAcademicYear,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, admNo string, exclIDs ...string) error {
	if err := svc.repo.CheckAdmissionNumberUniqueness(ctx, admNo, exclIDs); err != nil {
		if errors.Cause(err) == ErrAdmissionNumberExists {
			return core.NewValidationError(ErrAdmissionNumberExists, core.FieldError{Field: "admission_number", Error: ErrAdmissionNumberExists.Error()})
		}
		return errors.Wrap(err, "checking admission number uniqueness")
	}
	return nil
}

func (svc *service) classFee(ctx context.Context, className string) (fee.FeeStructure, error) {
	f, err := svc.fees.GetFee(ctx, className)
	if err != nil {
		if errors.Cause(err) == fee.ErrNotFound {
			return fee.FeeStructure{}, core.NewValidationError(ErrUnknownClass, core.FieldError{Field: "class_name", Error: ErrUnknownClass.Error()})
		}
		return fee.FeeStructure{}, errors.Wrap(err, "getting class fee")
	}
	return f, nil
}

// Create enrols a validated NewStudent.
func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := svc.checkUniqueness(ctx, ns.AdmissionNumber); err != nil {
		return Student{}, err
	}
	classFee, err := svc.classFee(ctx, ns.ClassName)
	if err != nil {
		return Student{}, err
	}

	now := time.Now().UTC()
	s := Student{
		AdmissionNumber: ns.AdmissionNumber,
		Name:            ns.Name,
		FatherName:      ns.FatherName,
		MotherName:      ns.MotherName,
		DOB:             ns.DOB,
		ClassName:       ns.ClassName,
		GuardianEmail:   ns.GuardianEmail,
		PreviousDues:    ns.PreviousDues,
		CurrentYearFee:  classFee.Total,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ns.CurrentYearFee != nil {
		s.CurrentYearFee = *ns.CurrentYearFee
	}
	s.SortDues()

	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		s, err = svc.repo.CreateStudent(ctx, s, tx)
		return err
	})
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	return s, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	students, err := svc.repo.QueryStudents(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	if filter == nil || filter.Status == "" {
		return students, nil
	}

	filtered := make([]Student, 0, len(students))
	for _, s := range students {
		if s.Status() == filter.Status {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func (svc *service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// Update applies a validated UpdateStudent on the stored version of s, re-read inside the transaction
// so that payments recorded since s was loaded are kept.
// Moving a student to another class without an explicit fee re-snapshots the class fee.
func (svc *service) Update(ctx context.Context, s Student, us UpdateStudent) (Student, error) {
	if us.AdmissionNumber != nil && *us.AdmissionNumber != s.AdmissionNumber {
		if err := svc.checkUniqueness(ctx, *us.AdmissionNumber, s.ID); err != nil {
			return Student{}, err
		}
	}
	var classFee *fee.FeeStructure
	if us.ClassName != nil {
		f, err := svc.classFee(ctx, *us.ClassName)
		if err != nil {
			return Student{}, err
		}
		classFee = &f
	}

	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		fresh, err := svc.repo.LockStudent(ctx, s.ID, tx)
		if err != nil {
			return err
		}
		us.apply(&fresh, classFee)
		fresh.UpdatedAt = time.Now().UTC()
		s, err = svc.repo.UpdateStudent(ctx, fresh, tx)
		return err
	})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Student{}, ErrNotFound
		}
		return Student{}, errors.Wrap(err, "updating student")
	}
	return s, nil
}

// Delete removes a student without any recorded payment.
func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetStudent(ctx, id); err != nil {
		return err
	}
	paid, err := svc.repo.HasPayments(ctx, id)
	if err != nil {
		return errors.Wrap(err, "checking student payments")
	}
	if paid {
		return core.NewValidationError(ErrHasPayments)
	}
	return svc.repo.DeleteStudent(ctx, id)
}

func (svc *service) Balance(ctx context.Context, id string) (BalanceSummary, error) {
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return BalanceSummary{}, err
	}
	return NewBalanceSummary(s, svc.currentYear), nil
}
