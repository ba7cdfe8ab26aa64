package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/edufee/apps/api/echo"
	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/fee"
	"github.com/trezcool/edufee/core/payment"
	"github.com/trezcool/edufee/core/report"
	"github.com/trezcool/edufee/core/student"
	"github.com/trezcool/edufee/core/user"
	cachesvc "github.com/trezcool/edufee/services/cache"
	emailsvc "github.com/trezcool/edufee/services/email"
	exportsvc "github.com/trezcool/edufee/services/export"
	logsvc "github.com/trezcool/edufee/services/logger"
	sqlxrepos "github.com/trezcool/edufee/storage/database/sqlx"
	"github.com/trezcool/edufee/tests"
)

// testEnv is a server wired to a fresh in-memory database.
type testEnv struct {
	conf        *core.Config
	app         Server
	metrics     *Metrics
	usrRepo     user.Repository
	feeRepo     fee.Repository
	studentRepo student.Repository
	paymentRepo payment.Repository
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()

	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepos.NewUserRepository(db)
	feeRepo := sqlxrepos.NewFeeRepository(db)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	paymentRepo := sqlxrepos.NewPaymentRepository(db)

	logger := logsvc.NewRollbarLogger(zerolog.Nop(), conf)
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	payment.RegisterValidators(validate, translator)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	renderer := exportsvc.NewPDFRenderer(conf)
	metrics := NewMetrics(conf)
	paymentSvc := payment.NewService(conf, db, paymentRepo, studentRepo, renderer, mailSvc, logger)
	reportSvc := report.NewService(conf, studentRepo, paymentRepo, cachesvc.NewMemoryCache(), logger)
	paymentSvc.OnRecorded(
		func(ctx context.Context, _ payment.Payment) { reportSvc.InvalidateDashboard(ctx) },
		metrics.PaymentRecorded,
	)

	// set up server
	app := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Metrics:        metrics,
		Renderer:       renderer,
		UserSvc:        user.NewService(conf, usrRepo, mailSvc),
		FeeSvc:         fee.NewService(feeRepo, studentRepo),
		StudentSvc:     student.NewService(conf, db, studentRepo, feeRepo),
		PaymentSvc:     paymentSvc,
		ReportSvc:      reportSvc,
	})

	return &testEnv{
		conf:        conf,
		app:         app,
		metrics:     metrics,
		usrRepo:     usrRepo,
		feeRepo:     feeRepo,
		studentRepo: studentRepo,
		paymentRepo: paymentRepo,
	}
}

func (env *testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	env.app.ServeHTTP(rec, req)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, NewUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshall(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
