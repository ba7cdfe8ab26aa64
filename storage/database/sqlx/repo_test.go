package sqlxrepos_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/payment"
	"github.com/trezcool/edufee/core/student"
	"github.com/trezcool/edufee/core/user"
	sqlxrepos "github.com/trezcool/edufee/storage/database/sqlx"
	"github.com/trezcool/edufee/tests"
)

func major(v float64) core.Money { return core.FromMajor(v) }

func TestUserRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	admin := testutil.CreateUser(t, repo, "Admin", "admin", "admin@example.com", "", user.RoleAdmin, true)
	clerk := testutil.CreateUser(t, repo, "Meena Clerk", "meena", "", "", user.RoleAccountant, true)
	testutil.CreateUser(t, repo, "Old Teacher", "oldie", "oldie@example.com", "", user.RoleTeacher, false)

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(ctx, "admin", "new@example.com", nil))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(ctx, "someone", "admin@example.com", nil))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "admin", "admin@example.com", []user.User{admin}))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "nobody", "", nil))
	})

	t.Run("query", func(t *testing.T) {
		users, err := repo.QueryUsers(ctx, &user.QueryFilter{Search: "MEENA"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, clerk.ID, users[0].ID)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{IsActive: "false"}, nil)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "oldie", users[0].Username)

		users, err = repo.QueryUsers(ctx, &user.QueryFilter{Role: user.RoleAdmin}, []core.DBOrdering{{Field: "username"}})
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("get", func(t *testing.T) {
		usr, err := repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "admin@example.com"})
		require.NoError(t, err)
		assert.Equal(t, admin.ID, usr.ID)

		_, err = repo.GetUser(ctx, user.GetFilter{ID: "not-a-uuid"})
		assert.Equal(t, user.ErrNotFound, err)
		_, err = repo.GetUser(ctx, user.GetFilter{Username: "ghost"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("update", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		clerk.LastLogin = now
		clerk.Name = "Meena"
		_, err := repo.UpdateUser(ctx, clerk)
		require.NoError(t, err)

		usr, err := repo.GetUser(ctx, user.GetFilter{ID: clerk.ID})
		require.NoError(t, err)
		assert.Equal(t, "Meena", usr.Name)
		assert.True(t, now.Equal(usr.LastLogin))
	})

	t.Run("delete", func(t *testing.T) {
		n, err := repo.DeleteUsersByID(ctx, []string{clerk.ID, "missing"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestFeeRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewFeeRepository(db)
	ctx := context.Background()

	testutil.CreateFee(t, repo, "5", 14000, 7000)
	f := testutil.CreateFee(t, repo, "5", 15000, 7000) // upsert
	assert.Equal(t, major(22000), f.Total)

	got, err := repo.GetFee(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, major(15000), got.TuitionFee)

	fees, err := repo.QueryFees(ctx)
	require.NoError(t, err)
	assert.Len(t, fees, 1)

	require.NoError(t, repo.DeleteFee(ctx, "5"))
	_, err = repo.GetFee(ctx, "5")
	assert.Equal(t, fee.ErrNotFound, err)
	assert.Equal(t, fee.ErrNotFound, repo.DeleteFee(ctx, "5"))
}

func TestStudentRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewStudentRepository(db)
	ctx := context.Background()

	aarav := testutil.CreateStudent(t, repo, student.Student{
		AdmissionNumber: "ADM001",
		Name:            "Aarav Sharma",
		FatherName:      "Rajesh Sharma",
		ClassName:       "5",
		PreviousDues: []student.PendingDue{
			{Year: "2024-25", Amount: major(3000), ClassName: "4"},
			{Year: "2023-24", Amount: major(2000), Description: "carried over"},
		},
		CurrentYearFee: major(21000),
	})
	diya := testutil.CreateStudent(t, repo, student.Student{AdmissionNumber: "ADM002", Name: "Diya Patel", ClassName: "LKG"})

	t.Run("dues are loaded oldest first", func(t *testing.T) {
		s, err := repo.GetStudent(ctx, aarav.ID)
		require.NoError(t, err)
		require.Len(t, s.PreviousDues, 2)
		assert.Equal(t, "2023-24", s.PreviousDues[0].Year)
		assert.Equal(t, "carried over", s.PreviousDues[0].Description)
		assert.Equal(t, "4", s.PreviousDues[1].ClassName)
		assert.Equal(t, major(26000), s.Balance())
	})

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, student.ErrAdmissionNumberExists, repo.CheckAdmissionNumberUniqueness(ctx, "adm001", nil))
		assert.NoError(t, repo.CheckAdmissionNumberUniqueness(ctx, "ADM001", []string{aarav.ID}))
	})

	t.Run("query", func(t *testing.T) {
		students, err := repo.QueryStudents(ctx, &student.QueryFilter{Search: "rajesh"}, nil)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, aarav.ID, students[0].ID)

		students, err = repo.QueryStudents(ctx, &student.QueryFilter{ClassName: "LKG"}, nil)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, diya.ID, students[0].ID)
		assert.Equal(t, []student.PendingDue{}, students[0].PreviousDues)
	})

	t.Run("update replaces dues", func(t *testing.T) {
		aarav.PreviousDues = []student.PendingDue{{Year: "2024-25", Amount: major(1000)}}
		aarav.CurrentYearPaid = major(500)
		s, err := repo.UpdateStudent(ctx, aarav)
		require.NoError(t, err)
		assert.Equal(t, []student.PendingDue{{Year: "2024-25", Amount: major(1000)}}, s.PreviousDues)
		assert.Zero(t, s.CurrentYearPaid, "profile updates never write the paid amount")
	})

	t.Run("update balances", func(t *testing.T) {
		aarav.Name = "Not Saved"
		aarav.PreviousDues = []student.PendingDue{{Year: "2024-25", Amount: major(400)}}
		aarav.CurrentYearPaid = major(500)
		s, err := repo.UpdateBalances(ctx, aarav)
		require.NoError(t, err)
		assert.Equal(t, []student.PendingDue{{Year: "2024-25", Amount: major(400)}}, s.PreviousDues)
		assert.Equal(t, major(500), s.CurrentYearPaid)
		assert.Equal(t, "Aarav Sharma", s.Name)
	})

	t.Run("lock", func(t *testing.T) {
		s, err := repo.LockStudent(ctx, aarav.ID)
		require.NoError(t, err)
		assert.Equal(t, major(500), s.CurrentYearPaid)
		_, err = repo.LockStudent(ctx, "nope")
		assert.Equal(t, student.ErrNotFound, err)
	})

	t.Run("count active in class", func(t *testing.T) {
		testutil.DeactivateStudent(t, repo, testutil.CreateStudent(t, repo, student.Student{ClassName: "LKG"}))
		n, err := repo.CountActiveInClass(ctx, "LKG")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteStudent(ctx, diya.ID))
		_, err := repo.GetStudent(ctx, diya.ID)
		assert.Equal(t, student.ErrNotFound, err)
	})
}

func TestPaymentRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	students := sqlxrepos.NewStudentRepository(db)
	repo := sqlxrepos.NewPaymentRepository(db)
	ctx := context.Background()

	aarav := testutil.CreateStudent(t, students, student.Student{Name: "Aarav Sharma", ClassName: "5", CurrentYearFee: major(21000)})
	diya := testutil.CreateStudent(t, students, student.Student{Name: "Diya Patel", ClassName: "LKG", CurrentYearFee: major(15000)})

	create := func(s student.Student, date string, amount, discount float64, by string, allocs ...payment.Allocation) payment.Payment {
		seq, err := repo.NextReceiptSeq(ctx)
		require.NoError(t, err)
		p, err := repo.CreatePayment(ctx, payment.Payment{
			ReceiptSeq:    seq,
			ReceiptNumber: fmt.Sprintf("REC-%d", 1000+seq),
			StudentID:     s.ID,
			StudentClass:  s.ClassName,
			AcademicYear:  "2025-26",
			Date:          date,
			Amount:        major(amount),
			Discount:      major(discount),
			Method:        payment.MethodCash,
			Allocations:   allocs,
			RecordedBy:    payment.RecordedBy{ID: "u1", Name: by},
			CreatedAt:     time.Now().UTC(),
		})
		require.NoError(t, err)
		return p
	}

	p1 := create(aarav, "2025-06-01", 1000, 0, "Admin", payment.Allocation{Year: "2025-26", Amount: major(1000)})
	p2 := create(diya, "2025-06-15", 2000, 500, "Meena",
		payment.Allocation{Year: "2024-25", Amount: major(500)}, payment.Allocation{Year: "2025-26", Amount: major(2000)})
	create(aarav, "2025-07-01", 3000, 0, "Meena")

	assert.Equal(t, int64(1), p1.ReceiptSeq)
	assert.Equal(t, int64(2), p2.ReceiptSeq)

	t.Run("get joins the student", func(t *testing.T) {
		p, err := repo.GetPayment(ctx, p2.ID)
		require.NoError(t, err)
		assert.Equal(t, "Diya Patel", p.StudentName)
		assert.Equal(t, diya.AdmissionNumber, p.AdmissionNumber)
		assert.Equal(t, []payment.Allocation{{Year: "2024-25", Amount: major(500)}, {Year: "2025-26", Amount: major(2000)}}, p.Allocations)

		_, err = repo.GetPayment(ctx, "nope")
		assert.Equal(t, payment.ErrNotFound, err)
	})

	t.Run("query newest first", func(t *testing.T) {
		payments, err := repo.QueryPayments(ctx, &payment.QueryFilter{From: "2025-06-01", To: "2025-06-30"}, nil)
		require.NoError(t, err)
		require.Len(t, payments, 2)
		assert.Equal(t, p2.ID, payments[0].ID)
		assert.Equal(t, p1.ID, payments[1].ID)

		payments, err = repo.QueryPayments(ctx, &payment.QueryFilter{Staff: "Meena", ClassName: "5"}, nil)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
	})

	t.Run("sum", func(t *testing.T) {
		totals, err := repo.SumPayments(ctx, &payment.QueryFilter{StudentID: aarav.ID})
		require.NoError(t, err)
		assert.Equal(t, payment.Totals{Count: 2, Amount: major(4000)}, totals)

		totals, err = repo.SumPayments(ctx, &payment.QueryFilter{From: "2030-01-01"})
		require.NoError(t, err)
		assert.Equal(t, payment.Totals{}, totals)
	})

	t.Run("student has payments", func(t *testing.T) {
		paid, err := students.HasPayments(ctx, aarav.ID)
		require.NoError(t, err)
		assert.True(t, paid)
	})
}
