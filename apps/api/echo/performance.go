package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/momentum-academy/portal/core/performance"
	"github.com/momentum-academy/portal/core/user"
)

type performanceApi struct {
	svc    performance.Service
	usrSvc user.Service
}

func registerPerformanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc performance.Service,
	usrSvc user.Service,
) {
	api := performanceApi{svc: svc, usrSvc: usrSvc}

	pg := g.Group("/performance", jwt)
	pg.GET("/me", api.myStats, studentMiddleware())
	pg.GET("/me/results", api.myResults, studentMiddleware())
	pg.GET("/students/:id", api.studentStats, teacherMiddleware())
	pg.GET("/students/:id/results", api.studentResults, teacherMiddleware())

	g.GET("/assignments/:id/leaderboard", api.leaderboard, jwt)
}

// Handlers

func (api *performanceApi) myStats(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *performanceApi) studentStats(ctx echo.Context) error {
	// 404s on unknown students rather than returning empty stats
	usr, err := api.usrSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *performanceApi) myResults(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.renderResults(ctx, claims.Subject)
}

func (api *performanceApi) studentResults(ctx echo.Context) error {
	usr, err := api.usrSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return api.renderResults(ctx, usr.ID)
}

func (api *performanceApi) renderResults(ctx echo.Context, studentID string) error {
	results, err := api.svc.Results(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "computing test results")
	}
	if results == nil {
		results = []performance.Result{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *performanceApi) leaderboard(ctx echo.Context) error {
	entries, err := api.svc.Leaderboard(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing leaderboard")
	}
	if entries == nil {
		entries = []performance.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}
