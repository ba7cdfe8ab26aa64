package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core/fee"
)

type feeApi struct {
	svc      fee.Service
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc fee.Service, validate *validator.Validate) {
	api := feeApi{svc: svc, validate: validate}

	fg := g.Group("/fees", jwt)
	fg.GET("", api.list)
	fg.GET("/:class", api.retrieve)
	fg.PUT("/:class", api.upsert, adminMiddleware(auth))
	fg.DELETE("/:class", api.destroy, adminMiddleware(auth))
}

func (api *feeApi) list(ctx echo.Context) error {
	fees, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing fee structures")
	}
	if fees == nil {
		fees = []fee.FeeStructure{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	f, err := api.svc.Get(ctx.Request().Context(), ctx.Param("class"))
	if err != nil {
		return errors.Wrap(err, "getting fee structure")
	}
	return ctx.JSON(http.StatusOK, f)
}

// upsert creates or replaces the fee structure of the class in the path.
func (api *feeApi) upsert(ctx echo.Context) error {
	var data fee.UpsertFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertFee")
	}
	data.ClassName = ctx.Param("class")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Upsert(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving fee structure")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *feeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("class")); err != nil {
		return errors.Wrap(err, "deleting fee structure")
	}
	return ctx.NoContent(http.StatusNoContent)
}
