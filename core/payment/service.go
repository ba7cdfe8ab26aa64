package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"sort"
	"sync"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core"
	"github.com/trezcool/edufee/core/student"
	"github.com/trezcool/edufee/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("payment not found")
	ErrStudentNotFound   = errors.New("student not found")
	ErrStudentInactive   = errors.New("student is inactive")
	ErrDiscountForbidden = errors.New("only admins can grant a discount")

	paymentMethodTag  = "paymentmethod"
	paymentMethodText = "method must be one of CASH, UPI, CHEQUE or CARD"
)

// RegisterValidators registers the payment validations & their translations on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paymentMethodTag, func(fl validator.FieldLevel) bool {
		return IsValidMethod(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, paymentMethodTag, paymentMethodText)
}

type (
	Repository interface {
		NextReceiptSeq(ctx context.Context, exec ...core.DBExecutor) (int64, error)
		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (Payment, error)
		// QueryPayments applies AND operation on available QueryFilter fields; newest first by default.
		QueryPayments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Payment, error)
		SumPayments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (Totals, error)
	}

	// ReceiptRenderer renders a Receipt as a PDF document.
	ReceiptRenderer interface {
		RenderReceipt(w io.Writer, r Receipt) error
	}

	// RecordedHook is called after a payment has been committed.
	RecordedHook func(ctx context.Context, p Payment)

	Service interface {
		Preview(ctx context.Context, req PreviewRequest) (Preview, error)
		Record(ctx context.Context, actor user.User, np NewPayment) (Payment, error)
		Get(ctx context.Context, id string) (Payment, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error)
		Sum(ctx context.Context, filter *QueryFilter) (Totals, error)
		Receipt(ctx context.Context, id string) (Receipt, error)
		ReceiptPDF(ctx context.Context, id string, w io.Writer) (Receipt, error)
		OnRecorded(hooks ...RecordedHook)
	}

	service struct {
		conf     *core.Config
		db       core.DB
		repo     Repository
		students student.Repository
		renderer ReceiptRenderer
		mailSvc  core.EmailService
		logger   core.Logger

		mu    sync.Mutex // serializes receipt numbering
		hooks []RecordedHook
	}
)

var _ Service = (*service)(nil)

func NewService(
	conf *core.Config,
	db core.DB,
	repo Repository,
	students student.Repository,
	renderer ReceiptRenderer,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		conf:     conf,
		db:       db,
		repo:     repo,
		students: students,
		renderer: renderer,
		mailSvc:  mailSvc,
		logger:   logger,
	}
}

func (svc *service) OnRecorded(hooks ...RecordedHook) {
	svc.hooks = append(svc.hooks, hooks...)
}

func (svc *service) getStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	get := svc.students.GetStudent
	if len(exec) > 0 {
		get = svc.students.LockStudent
	}
	s, err := get(ctx, id, exec...)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return student.Student{}, core.NewValidationError(ErrStudentNotFound, core.FieldError{Field: "student_id", Error: ErrStudentNotFound.Error()})
		}
		return student.Student{}, errors.Wrap(err, "getting student")
	}
	return s, nil
}

// Preview computes the automatic allocation of a payment without recording it.
func (svc *service) Preview(ctx context.Context, req PreviewRequest) (Preview, error) {
	s, err := svc.getStudent(ctx, req.StudentID)
	if err != nil {
		return Preview{}, err
	}
	res := Allocate(s, svc.conf.CurrentAcademicYear, req.Amount, req.Discount)
	return Preview{
		AllocationResult: res,
		StudentID:        s.ID,
		Amount:           req.Amount,
		Discount:         req.Discount,
		BalanceBefore:    s.Balance(),
		BalanceAfter:     s.Balance() - res.Allocated,
	}, nil
}

// Record allocates and saves a validated NewPayment, then updates the student balances,
// all in one transaction. The guardian is emailed a receipt once committed.
func (svc *service) Record(ctx context.Context, actor user.User, np NewPayment) (Payment, error) {
	if np.Discount > 0 && !actor.IsAdmin() {
		return Payment{}, core.NewValidationError(ErrDiscountForbidden, core.FieldError{Field: "discount", Error: ErrDiscountForbidden.Error()})
	}

	currentYear := svc.conf.CurrentAcademicYear
	date := np.Date
	if date == "" {
		date = core.Today()
	}

	var (
		p Payment
		s student.Student
	)

	svc.mu.Lock()
	err := core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if s, err = svc.getStudent(ctx, np.StudentID, tx); err != nil {
			return err
		}
		if !s.IsActive {
			return core.NewValidationError(ErrStudentInactive, core.FieldError{Field: "student_id", Error: ErrStudentInactive.Error()})
		}

		allocs := np.Allocations
		if len(allocs) > 0 {
			if err = checkManualAllocations(s, currentYear, allocs, svc.conf.Currency); err != nil {
				return err
			}
		} else {
			allocs = Allocate(s, currentYear, np.Amount, np.Discount).Allocations
		}
		if err = checkConservation(allocs, np.Amount+np.Discount, svc.conf.Currency); err != nil {
			return err
		}
		sort.SliceStable(allocs, func(i, j int) bool { return allocs[i].Year < allocs[j].Year })

		applyAllocations(&s, currentYear, allocs)
		s.UpdatedAt = time.Now().UTC()
		if s, err = svc.students.UpdateBalances(ctx, s, tx); err != nil {
			return errors.Wrap(err, "updating student balances")
		}

		seq, err := svc.repo.NextReceiptSeq(ctx, tx)
		if err != nil {
			return errors.Wrap(err, "getting next receipt number")
		}
		p = Payment{
			ID:              uuid.New().String(),
			ReceiptSeq:      seq,
			ReceiptNumber:   fmt.Sprintf("REC-%d", 1000+seq),
			StudentID:       s.ID,
			StudentName:     s.Name,
			AdmissionNumber: s.AdmissionNumber,
			StudentClass:    s.ClassName,
			AcademicYear:    currentYear,
			Date:            date,
			Amount:          np.Amount,
			Discount:        np.Discount,
			Method:          np.Method,
			Note:            np.Note,
			Allocations:     allocs,
			RecordedBy:      RecordedBy{ID: actor.ID, Name: actor.Name},
			CreatedAt:       time.Now().UTC(),
		}
		if p, err = svc.repo.CreatePayment(ctx, p, tx); err != nil {
			return errors.Wrap(err, "creating payment")
		}
		return nil
	})
	svc.mu.Unlock()
	if err != nil {
		return Payment{}, err
	}

	for _, hook := range svc.hooks {
		hook(ctx, p)
	}
	if s.GuardianEmail != "" {
		svc.sendReceiptMail(s, p)
	}
	return p, nil
}

func (svc *service) Get(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter, ordering)
}

func (svc *service) Sum(ctx context.Context, filter *QueryFilter) (Totals, error) {
	return svc.repo.SumPayments(ctx, filter)
}

func (svc *service) Receipt(ctx context.Context, id string) (Receipt, error) {
	p, err := svc.repo.GetPayment(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	s, err := svc.students.GetStudent(ctx, p.StudentID)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "getting student")
	}
	return svc.newReceipt(s, p), nil
}

func (svc *service) ReceiptPDF(ctx context.Context, id string, w io.Writer) (Receipt, error) {
	r, err := svc.Receipt(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if err := svc.renderer.RenderReceipt(w, r); err != nil {
		return Receipt{}, errors.Wrap(err, "rendering receipt")
	}
	return r, nil
}

func (svc *service) newReceipt(s student.Student, p Payment) Receipt {
	lines := make([]ReceiptLine, 0, len(p.Allocations))
	for _, a := range p.Allocations {
		lines = append(lines, ReceiptLine{
			Description: receiptLineDescription(a.Year, p.AcademicYear),
			Year:        a.Year,
			Amount:      a.Amount,
		})
	}
	return Receipt{
		SchoolName:      svc.conf.SchoolName,
		Currency:        svc.conf.Currency,
		ReceiptNumber:   p.ReceiptNumber,
		Date:            p.Date,
		StudentName:     s.Name,
		AdmissionNumber: s.AdmissionNumber,
		FatherName:      s.FatherName,
		ClassName:       p.StudentClass,
		Method:          p.Method,
		Lines:           lines,
		Amount:          p.Amount,
		Discount:        p.Discount,
		Total:           p.Amount + p.Discount,
		Note:            p.Note,
		CollectedBy:     p.RecordedBy.Name,
	}
}

func (svc *service) sendReceiptMail(s student.Student, p Payment) {
	r := svc.newReceipt(s, p)
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: s.FatherName, Address: s.GuardianEmail}},
		Subject:      "Fee receipt " + p.ReceiptNumber,
		TemplateName: "receipt",
		TemplateData: r,
	}

	var buf bytes.Buffer
	if err := svc.renderer.RenderReceipt(&buf, r); err != nil {
		svc.logger.Error("rendering receipt PDF", errors.Wrap(err, p.ReceiptNumber))
	} else if err := msg.Attach(&buf, p.ReceiptNumber+".pdf", "application/pdf"); err != nil {
		svc.logger.Error("attaching receipt PDF", errors.Wrap(err, p.ReceiptNumber))
	}
	svc.mailSvc.SendMessages(msg)
}
