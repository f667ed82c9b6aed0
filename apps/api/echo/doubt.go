package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/momentum-academy/portal/core/doubt"
	"github.com/momentum-academy/portal/core/user"
)

type doubtApi struct {
	svc      doubt.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerDoubtAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc doubt.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := doubtApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	dg := g.Group("/doubts", jwt)
	dg.POST("", api.ask, studentMiddleware())
	dg.GET("/me", api.queryMine, studentMiddleware())
	dg.GET("/incoming", api.queryIncoming, teacherMiddleware())
	dg.POST("/:id/reply", api.reply, teacherMiddleware())
}

// Handlers

func (api *doubtApi) ask(ctx echo.Context) error {
	var data doubt.NewDoubt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDoubt")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	d, err := api.svc.Ask(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *doubtApi) queryMine(ctx echo.Context) error {
	filter := new(doubt.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []doubt.Doubt{})
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	doubts, err := api.svc.QueryByStudent(ctx.Request().Context(), ctxUsr.ID, *filter)
	if err != nil {
		return errors.Wrap(err, "querying doubts")
	}
	if doubts == nil {
		doubts = []doubt.Doubt{}
	}
	return ctx.JSON(http.StatusOK, doubts)
}

func (api *doubtApi) queryIncoming(ctx echo.Context) error {
	filter := new(doubt.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []doubt.Doubt{})
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	doubts, err := api.svc.QueryIncoming(ctx.Request().Context(), ctxUsr.ID, *filter)
	if err != nil {
		return errors.Wrap(err, "querying incoming doubts")
	}
	if doubts == nil {
		doubts = []doubt.Doubt{}
	}
	return ctx.JSON(http.StatusOK, doubts)
}

func (api *doubtApi) reply(ctx echo.Context) error {
	var data doubt.ReplyDoubt
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReplyDoubt")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	d, err := api.svc.Reply(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}
