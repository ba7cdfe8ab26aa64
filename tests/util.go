package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/student"
	"github.com/trezcool/edufee/core/user"
	"github.com/trezcool/edufee/storage/database"
)

// PrepareDB opens a migrated, empty in-memory database closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	conf := core.NewTestConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateFee(t *testing.T, repo fee.Repository, className string, tuition, annual float64) fee.FeeStructure {
	f, err := repo.UpsertFee(context.Background(), fee.FeeStructure{
		ClassName:  className,
		TuitionFee: core.FromMajor(tuition),
		AnnualFee:  core.FromMajor(annual),
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateFee() failed: %v", err)
	}
	return f
}

// CreateStudent saves an active student; zero fields of s get sensible defaults.
func CreateStudent(t *testing.T, repo student.Repository, s student.Student) student.Student {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.AdmissionNumber == "" {
		s.AdmissionNumber = "ADM-" + s.ID[:8]
	}
	if s.Name == "" {
		s.Name = "Student " + s.ID[:4]
	}
	if s.ClassName == "" {
		s.ClassName = "5"
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	s.IsActive = true

	s, err := repo.CreateStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func DeactivateStudent(t *testing.T, repo student.Repository, s student.Student) student.Student {
	s.IsActive = false
	s, err := repo.UpdateStudent(context.Background(), s)
	if err != nil {
		t.Fatalf("DeactivateStudent() failed: %v", err)
	}
	return s
}
