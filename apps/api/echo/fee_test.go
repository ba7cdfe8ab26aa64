package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/student"
	"github.com/trezcool/edufee/core/user"
	"github.com/trezcool/edufee/tests"
)

func Test_feeApi(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "", "", user.RoleAdmin, true)
	clerk := testutil.CreateUser(t, env.usrRepo, "Meena", "meena", "", "", user.RoleAccountant, true)
	adminToken := getToken(t, env.conf, admin)
	clerkToken := getToken(t, env.conf, clerk)

	five := testutil.CreateFee(t, env.feeRepo, "5", 14000, 7000)
	testutil.CreateFee(t, env.feeRepo, "LKG", 10000, 5000)
	testutil.CreateStudent(t, env.studentRepo, student.Student{ClassName: "5"})

	upsert := func(tuition, annual float64) []byte {
		return marchallObj(t, map[string]interface{}{"tuition_fee": tuition, "annual_fee": annual, "total": 1})
	}

	runHTTPTests(t, env, []httpTest{
		{name: "auth required", path: "/v1/fees", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "get", path: "/v1/fees/LKG", token: clerkToken},
		{name: "get unknown", path: "/v1/fees/12", token: clerkToken, wantCode: http.StatusNotFound},
		{name: "admin only", method: http.MethodPut, path: "/v1/fees/6", token: clerkToken, body: upsert(1, 1), wantCode: http.StatusForbidden},
		{
			name: "negative fee", method: http.MethodPut, path: "/v1/fees/6", token: adminToken, body: upsert(-1, 0),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"tuition_fee": "amount cannot be negative"}),
		},
		{name: "upsert", method: http.MethodPut, path: "/v1/fees/6", token: adminToken, body: upsert(16000, 7500.5)},
		{
			name: "class in use", method: http.MethodDelete, path: "/v1/fees/5", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: fee.ErrClassInUse.Error()}),
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/fees/LKG", token: adminToken, wantCode: http.StatusNoContent},
		{name: "delete unknown", method: http.MethodDelete, path: "/v1/fees/LKG", token: adminToken, wantCode: http.StatusNotFound},
	})

	t.Run("class order", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees", clerkToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var fees []fee.FeeStructure
		unmarshall(t, rec, &fees)
		require.Len(t, fees, 2)
		assert.Equal(t, []string{"5", "6"}, []string{fees[0].ClassName, fees[1].ClassName})
		assert.Equal(t, five.Total, fees[0].Total)
	})

	f, err := env.feeRepo.GetFee(context.Background(), "6")
	require.NoError(t, err)
	assert.Equal(t, core.FromMajor(23500.5), f.Total)
}
