package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/user"
)

type enrollApi struct {
	svc    enroll.Service
	usrSvc user.Service
}

func registerEnrollAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := enrollApi{
		svc:    deps.EnrollSvc,
		usrSvc: deps.UserSvc,
	}

	fg := g.Group("/formations", jwt)
	fg.POST("/:id/buy", api.buy, studentMiddleware())
	fg.GET("/:id/students", api.roster)

	pg := g.Group("/payments", jwt)
	pg.GET("/success", api.paymentSuccess, studentMiddleware())
	pg.GET("/cancel", api.paymentCancel, studentMiddleware())
}

// Handlers

func (api *enrollApi) buy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.Enroll(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

// paymentSuccess is the provider's success callback; it may be replayed and
// must settle to the same state every time.
func (api *enrollApi) paymentSuccess(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.svc.ConfirmPayment(ctx.Request().Context(), usr, ctx.QueryParam("formation_id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *enrollApi) paymentCancel(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, api.svc.CancelPayment(ctx.Request().Context(), usr))
}

func (api *enrollApi) roster(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	roster, err := api.svc.Roster(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if roster == nil {
		roster = []enroll.StudentRoster{}
	}
	return ctx.JSON(http.StatusOK, roster)
}
