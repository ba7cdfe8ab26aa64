package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/edufee/apps/api/echo"
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
	"github.com/trezcool/edufee/storage/database"
	sqlxrepos "github.com/trezcool/edufee/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParams gathers the dependencies of the API server.
type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Metrics    *echoapi.Metrics
	Renderer   *exportsvc.PDFRenderer

	UserSvc    user.Service
	FeeSvc     fee.Service
	StudentSvc student.Service
	PaymentSvc payment.Service
	ReportSvc  report.Service
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZerolog(os.Stdout, conf, "API"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZerolog(os.Stdout, conf, "DB"), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newCache uses redis when configured, falling back to the in-process cache.
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if conf.Cache.RedisAddr == "" {
		return cachesvc.NewMemoryCache()
	}
	client, err := cachesvc.NewRedisClient(context.Background(), conf)
	if err != nil {
		logger.Error(fmt.Sprintf("connecting to redis, using the memory cache: %v", err), err)
		return cachesvc.NewMemoryCache()
	}
	return cachesvc.NewRedisCache(client, conf)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	payment.RegisterValidators(validate, translator)
	return validate
}

func newUserRepository(db *sqlx.DB) user.Repository       { return sqlxrepos.NewUserRepository(db) }
func newFeeRepository(db *sqlx.DB) fee.Repository         { return sqlxrepos.NewFeeRepository(db) }
func newStudentRepository(db *sqlx.DB) student.Repository { return sqlxrepos.NewStudentRepository(db) }
func newPaymentRepository(db *sqlx.DB) payment.Repository { return sqlxrepos.NewPaymentRepository(db) }

func newFeeService(repo fee.Repository, students student.Repository) fee.Service {
	return fee.NewService(repo, students)
}

// newPaymentService also registers the hooks run after each recorded payment.
func newPaymentService(
	conf *core.Config,
	db core.DB,
	repo payment.Repository,
	students student.Repository,
	renderer *exportsvc.PDFRenderer,
	mailSvc core.EmailService,
	logger core.Logger,
	reportSvc report.Service,
	metrics *echoapi.Metrics,
) payment.Service {
	svc := payment.NewService(conf, db, repo, students, renderer, mailSvc, logger)
	svc.OnRecorded(
		func(ctx context.Context, _ payment.Payment) { reportSvc.InvalidateDashboard(ctx) },
		metrics.PaymentRecorded,
	)
	return svc
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Address:    p.Conf.Server.Host,
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Metrics:    p.Metrics,
		Renderer:   p.Renderer,
		UserSvc:    p.UserSvc,
		FeeSvc:     p.FeeSvc,
		StudentSvc: p.StudentSvc,
		PaymentSvc: p.PaymentSvc,
		ReportSvc:  p.ReportSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newCache))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(exportsvc.NewPDFRenderer))
	must(c.Provide(echoapi.NewMetrics))

	must(c.Provide(newUserRepository))
	must(c.Provide(newFeeRepository))
	must(c.Provide(newStudentRepository))
	must(c.Provide(newPaymentRepository))

	must(c.Provide(user.NewService))
	must(c.Provide(newFeeService))
	must(c.Provide(student.NewService))
	must(c.Provide(report.NewService))
	must(c.Provide(newPaymentService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
