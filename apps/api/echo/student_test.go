package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/student"
	"github.com/trezcool/edufee/core/user"
	"github.com/trezcool/edufee/tests"
)

func Test_studentApi_access(t *testing.T) {
	env := setup(t)
	parent := testutil.CreateUser(t, env.usrRepo, "Parent", "parent", "", "", user.RoleParent, true)
	teacher := testutil.CreateUser(t, env.usrRepo, "Ravi", "ravi", "", "", user.RoleTeacher, true)
	testutil.CreateFee(t, env.feeRepo, "5", 14000, 7000)

	body := marchallObj(t, student.NewStudent{AdmissionNumber: "ADM001", Name: "Aarav", ClassName: "5"})

	runHTTPTests(t, env, []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "parents see nothing", path: "/v1/students", token: getToken(t, env.conf, parent), wantCode: http.StatusForbidden},
		{name: "teachers can list", path: "/v1/students", token: getToken(t, env.conf, teacher), wantData: []byte("[]")},
		{
			name: "teachers cannot enrol", method: http.MethodPost, path: "/v1/students",
			token: getToken(t, env.conf, teacher), body: body, wantCode: http.StatusForbidden,
		},
	})
}

func Test_studentApi_create(t *testing.T) {
	env := setup(t)
	clerk := testutil.CreateUser(t, env.usrRepo, "Meena", "meena", "", "", user.RoleAccountant, true)
	token := getToken(t, env.conf, clerk)
	testutil.CreateFee(t, env.feeRepo, "5", 14000, 7000)
	testutil.CreateStudent(t, env.studentRepo, student.Student{AdmissionNumber: "ADM001", ClassName: "5"})

	post := func(ns student.NewStudent) []byte { return marchallObj(t, ns) }
	custom := core.FromMajor(18000)

	runHTTPTests(t, env, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/v1/students", token: token, body: post(student.NewStudent{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"admission_number": "this field is required",
				"name":             "this field is required",
				"class_name":       "this field is required",
			}),
		},
		{
			name: "duplicate admission number", method: http.MethodPost, path: "/v1/students", token: token,
			body: post(student.NewStudent{AdmissionNumber: "adm001", Name: "Diya", ClassName: "5"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"admission_number": student.ErrAdmissionNumberExists.Error()}),
		},
		{
			name: "unknown class", method: http.MethodPost, path: "/v1/students", token: token,
			body: post(student.NewStudent{AdmissionNumber: "ADM002", Name: "Diya", ClassName: "11"}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"class_name": student.ErrUnknownClass.Error()}),
		},
		{
			name: "future due year", method: http.MethodPost, path: "/v1/students", token: token,
			body: post(student.NewStudent{
				AdmissionNumber: "ADM002", Name: "Diya", ClassName: "5",
				PreviousDues: []student.PendingDue{{Year: env.conf.CurrentAcademicYear, Amount: core.FromMajor(100)}},
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "custom fee", method: http.MethodPost, path: "/v1/students", token: token,
			body: post(student.NewStudent{AdmissionNumber: "ADM003", Name: "Kabir", ClassName: "5", CurrentYearFee: &custom}),
			wantCode: http.StatusCreated,
		},
	})

	t.Run("class fee snapshot and dues", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", token, post(student.NewStudent{
			AdmissionNumber: " ADM002 ", Name: "Diya Patel", ClassName: "5", GuardianEmail: "Parent@Mail.in",
			PreviousDues: []student.PendingDue{{Year: "2024-25", Amount: core.FromMajor(3000)}},
		}))
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got map[string]interface{}
		unmarshall(t, rec, &got)
		assert.Equal(t, "ADM002", got["admission_number"])
		assert.Equal(t, "parent@mail.in", got["guardian_email"])
		assert.Equal(t, 21000.0, got["current_year_fee"])
		assert.Equal(t, 24000.0, got["balance"])
		assert.Equal(t, "overdue", got["status"])
	})
}

func Test_studentApi_queryAndDetail(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	clerk := testutil.CreateUser(t, env.usrRepo, "Meena", "meena", "", "", user.RoleAccountant, true)
	adminToken := getToken(t, env.conf, admin)
	clerkToken := getToken(t, env.conf, clerk)
	testutil.CreateFee(t, env.feeRepo, "5", 14000, 7000)
	testutil.CreateFee(t, env.feeRepo, "6", 16000, 7000)

	aarav := testutil.CreateStudent(t, env.studentRepo, student.Student{
		AdmissionNumber: "ADM001", Name: "Aarav Sharma", FatherName: "Rajesh", ClassName: "5",
		PreviousDues:   []student.PendingDue{{Year: "2024-25", Amount: core.FromMajor(3000)}},
		CurrentYearFee: core.FromMajor(21000),
	})
	diya := testutil.CreateStudent(t, env.studentRepo, student.Student{
		AdmissionNumber: "ADM002", Name: "Diya Patel", ClassName: "6",
		CurrentYearFee: core.FromMajor(23000), CurrentYearPaid: core.FromMajor(23000),
	})
	kabir := testutil.CreateStudent(t, env.studentRepo, student.Student{
		AdmissionNumber: "ADM003", Name: "Kabir Khan", ClassName: "5", CurrentYearFee: core.FromMajor(21000),
	})

	names := func(path string) []string {
		req, rec := newAuthRequest(http.MethodGet, path, clerkToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []struct {
			Name string `json:"name"`
		}
		unmarshall(t, rec, &students)
		res := make([]string, 0, len(students))
		for _, s := range students {
			res = append(res, s.Name)
		}
		return res
	}

	t.Run("query", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"Aarav Sharma", "Diya Patel", "Kabir Khan"}, names("/v1/students"))
		assert.Equal(t, []string{"Aarav Sharma"}, names("/v1/students?search=rajesh"))
		assert.ElementsMatch(t, []string{"Aarav Sharma", "Kabir Khan"}, names("/v1/students?class=5"))
		assert.Equal(t, []string{"Aarav Sharma"}, names("/v1/students?status=overdue"))
		assert.Equal(t, []string{"Kabir Khan"}, names("/v1/students?status=due"))
		assert.Equal(t, []string{"Diya Patel"}, names("/v1/students?status=paid"))
		assert.Equal(t, []string{"Kabir Khan", "Diya Patel", "Aarav Sharma"}, names("/v1/students?ordering=-name"))
	})

	t.Run("balance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students/"+aarav.ID+"/balance", clerkToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)

		var got student.BalanceSummary
		unmarshall(t, rec, &got)
		assert.Equal(t, core.FromMajor(3000), got.PreviousDueTotal)
		assert.Equal(t, core.FromMajor(24000), got.Balance)
		assert.Equal(t, env.conf.CurrentAcademicYear, got.CurrentYear)
	})

	t.Run("move class re-snapshots the fee", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+kabir.ID, clerkToken, []byte(`{"class_name": "6"}`))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got map[string]interface{}
		unmarshall(t, rec, &got)
		assert.Equal(t, "6", got["class_name"])
		assert.Equal(t, 23000.0, got["current_year_fee"])
	})

	runHTTPTests(t, env, []httpTest{
		{name: "unknown", path: "/v1/students/nope", token: clerkToken, wantCode: http.StatusNotFound},
		{name: "payments of student", path: "/v1/students/" + diya.ID + "/payments", token: clerkToken, wantData: []byte("[]")},
		{name: "delete is admin only", method: http.MethodDelete, path: "/v1/students/" + diya.ID, token: clerkToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: "/v1/students/" + diya.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", path: "/v1/students/" + diya.ID, token: clerkToken, wantCode: http.StatusNotFound},
	})
}
