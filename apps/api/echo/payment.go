package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core/payment"
	"github.com/trezcool/edufee/core/user"
)

type paymentApi struct {
	svc      payment.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc payment.Service, validate *validator.Validate) {
	api := paymentApi{svc: svc, auth: auth, validate: validate}

	pg := g.Group("/payments", jwt, roleMiddleware(auth, user.CashierRoles...))
	pg.POST("/preview", api.preview)
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/:id", api.retrieve)
	pg.GET("/:id/receipt", api.receipt)
}

func (api *paymentApi) preview(ctx echo.Context) error {
	var data payment.PreviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PreviewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	preview, err := api.svc.Preview(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "previewing payment")
	}
	return ctx.JSON(http.StatusOK, preview)
}

func (api *paymentApi) create(ctx echo.Context) error {
	var data payment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Record(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) query(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	payments, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

// receipt renders the receipt of a payment as JSON, or as a PDF with ?format=pdf.
func (api *paymentApi) receipt(ctx echo.Context) error {
	if exportFormat(ctx) != formatPDF {
		r, err := api.svc.Receipt(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting receipt")
		}
		return ctx.JSON(http.StatusOK, r)
	}

	var buf bytes.Buffer
	r, err := api.svc.ReceiptPDF(ctx.Request().Context(), ctx.Param("id"), &buf)
	if err != nil {
		return errors.Wrap(err, "rendering receipt")
	}
	return attachment(ctx, "application/pdf", fmt.Sprintf("Receipt_%s.pdf", r.ReceiptNumber), buf.Bytes())
}

// attachment sends b as a downloadable file.
func attachment(ctx echo.Context, contentType, filename string, b []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, contentType, b)
}
