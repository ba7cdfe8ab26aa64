package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/edufee/core/report"
	exportsvc "github.com/trezcool/edufee/services/export"
)

type reportApi struct {
	svc      report.Service
	renderer *exportsvc.PDFRenderer
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc report.Service, renderer *exportsvc.PDFRenderer) {
	api := reportApi{svc: svc, renderer: renderer}

	dg := g.Group("/dashboard", jwt)
	dg.GET("", api.dashboard)
	dg.GET("/defaulters", api.defaulters)

	g.GET("/reports/:kind", api.generate, jwt)
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	stats, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *reportApi) defaulters(ctx echo.Context) error {
	filter := new(report.DefaulterFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to DefaulterFilter")
	}
	filter.Clean()

	res, err := api.svc.Defaulters(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing defaulters")
	}
	return ctx.JSON(http.StatusOK, res)
}

// generate builds a report and exports it as JSON, CSV or PDF according to ?format=.
func (api *reportApi) generate(ctx echo.Context) error {
	var req report.Request
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to report Request")
	}
	req.Kind = ctx.Param("kind")

	rep, err := api.svc.Generate(ctx.Request().Context(), req)
	if err != nil {
		return errors.Wrap(err, "generating report")
	}

	filename := reportFilename(rep)
	switch exportFormat(ctx) {
	case formatCSV:
		var buf bytes.Buffer
		if err := exportsvc.WriteCSV(&buf, rep); err != nil {
			return errors.Wrap(err, "writing CSV")
		}
		return attachment(ctx, "text/csv; charset=utf-8", filename+".csv", buf.Bytes())
	case formatPDF:
		var buf bytes.Buffer
		if err := api.renderer.RenderReport(&buf, rep); err != nil {
			return errors.Wrap(err, "rendering PDF")
		}
		return attachment(ctx, "application/pdf", filename+".pdf", buf.Bytes())
	default:
		return ctx.JSON(http.StatusOK, rep)
	}
}

// reportFilename is e.g. "Fee_Collection_Report_2025-06-30".
func reportFilename(rep report.Report) string {
	return fmt.Sprintf("%s_%s", strings.ReplaceAll(rep.Title, " ", "_"), rep.GeneratedAt.Format("2006-01-02"))
}
