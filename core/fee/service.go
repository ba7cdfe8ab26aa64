package fee

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
)

var (
	// errors
	ErrNotFound   = errors.New("fee structure not found")
	ErrClassInUse = errors.New("this class still has active students")
)

type (
	Repository interface {
		QueryFees(ctx context.Context, exec ...core.DBExecutor) ([]FeeStructure, error)
		GetFee(ctx context.Context, className string, exec ...core.DBExecutor) (FeeStructure, error)
		UpsertFee(ctx context.Context, fee FeeStructure, exec ...core.DBExecutor) (FeeStructure, error)
		DeleteFee(ctx context.Context, className string, exec ...core.DBExecutor) error
	}

	// ClassCounter counts the active students of a class.
	ClassCounter interface {
		CountActiveInClass(ctx context.Context, className string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		List(ctx context.Context) ([]FeeStructure, error)
		Get(ctx context.Context, className string) (FeeStructure, error)
		Upsert(ctx context.Context, data UpsertFee) (FeeStructure, error)
		Delete(ctx context.Context, className string) error
		Seed(ctx context.Context) (int, error)
	}

	service struct {
		repo     Repository
		students ClassCounter
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, students ClassCounter) Service {
	return &service{repo: repo, students: students}
}

// List returns every fee structure sorted by class order.
func (svc *service) List(ctx context.Context) ([]FeeStructure, error) {
	fees, err := svc.repo.QueryFees(ctx)
	if err != nil {
		return nil, err
	}
	sortFees(fees)
	return fees, nil
}

func (svc *service) Get(ctx context.Context, className string) (FeeStructure, error) {
	return svc.repo.GetFee(ctx, core.CleanString(className))
}

func (svc *service) Upsert(ctx context.Context, data UpsertFee) (FeeStructure, error) {
	fee := FeeStructure{
		ClassName:  data.ClassName,
		TuitionFee: data.TuitionFee,
		AnnualFee:  data.AnnualFee,
		UpdatedAt:  time.Now().UTC(),
	}
	fee.ComputeTotal()
	return svc.repo.UpsertFee(ctx, fee)
}

// Delete removes the fee structure of a class that has no active student left.
func (svc *service) Delete(ctx context.Context, className string) error {
	className = core.CleanString(className)
	if _, err := svc.repo.GetFee(ctx, className); err != nil {
		return err
	}
	n, err := svc.students.CountActiveInClass(ctx, className)
	if err != nil {
		return errors.Wrap(err, "counting active students")
	}
	if n > 0 {
		return core.NewValidationError(ErrClassInUse)
	}
	return svc.repo.DeleteFee(ctx, className)
}

// Seed creates the default fee structures missing from the database.
// Existing classes are left untouched. It returns the number of created classes.
func (svc *service) Seed(ctx context.Context) (int, error) {
	existing, err := svc.repo.QueryFees(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(existing))
	for _, f := range existing {
		known[f.ClassName] = true
	}

	var created int
	for _, f := range DefaultFees() {
		if known[f.ClassName] {
			continue
		}
		f.UpdatedAt = time.Now().UTC()
		if _, err := svc.repo.UpsertFee(ctx, f); err != nil {
			return created, errors.Wrapf(err, "seeding class %s", f.ClassName)
		}
		created++
	}
	return created, nil
}
