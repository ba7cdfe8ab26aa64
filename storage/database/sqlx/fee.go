package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
)

type feeRow struct {
	ClassName  string     `db:"class_name"`
	TuitionFee core.Money `db:"tuition_fee"`
	AnnualFee  core.Money `db:"annual_fee"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

func (row feeRow) toFee() fee.FeeStructure {
	f := fee.FeeStructure{
		ClassName:  row.ClassName,
		TuitionFee: row.TuitionFee,
		AnnualFee:  row.AnnualFee,
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
	f.ComputeTotal()
	return f
}

type feeRepository struct {
	baseRepository
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{baseRepository{exec: exec}}
}

func (repo feeRepository) QueryFees(ctx context.Context, exec ...core.DBExecutor) ([]fee.FeeStructure, error) {
	var rows []feeRow
	q := "SELECT class_name, tuition_fee, annual_fee, updated_at FROM fee_structures"
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	fees := make([]fee.FeeStructure, 0, len(rows))
	for _, row := range rows {
		fees = append(fees, row.toFee())
	}
	return fees, nil
}

func (repo feeRepository) GetFee(ctx context.Context, className string, exec ...core.DBExecutor) (fee.FeeStructure, error) {
	exe := repo.getExec(exec)
	var row feeRow
	q := "SELECT class_name, tuition_fee, annual_fee, updated_at FROM fee_structures WHERE class_name = ?"
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), className); err != nil {
		return fee.FeeStructure{}, trapNoRowsErr(err, fee.ErrNotFound, "finding fee structure")
	}
	return row.toFee(), nil
}

func (repo feeRepository) UpsertFee(ctx context.Context, f fee.FeeStructure, exec ...core.DBExecutor) (fee.FeeStructure, error) {
	q := `INSERT INTO fee_structures (class_name, tuition_fee, annual_fee, updated_at)
		VALUES (:class_name, :tuition_fee, :annual_fee, :updated_at)
		ON CONFLICT (class_name) DO UPDATE SET
			tuition_fee = excluded.tuition_fee, annual_fee = excluded.annual_fee, updated_at = excluded.updated_at`
	row := feeRow{ClassName: f.ClassName, TuitionFee: f.TuitionFee, AnnualFee: f.AnnualFee, UpdatedAt: f.UpdatedAt.UTC()}
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return fee.FeeStructure{}, errors.Wrap(err, "saving fee structure")
	}
	return row.toFee(), nil
}

func (repo feeRepository) DeleteFee(ctx context.Context, className string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM fee_structures WHERE class_name = ?"), className)
	if err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fee.ErrNotFound
	}
	return nil
}
