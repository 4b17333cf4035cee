package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/submission"
	"github.com/trezcool/academia/core/user"
)

type submissionApi struct {
	conf    *core.Config
	svc     submission.Service
	usrSvc  user.Service
	storage core.FileStorage
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := submissionApi{
		conf:    deps.Conf,
		svc:     deps.SubmissionSvc,
		usrSvc:  deps.UserSvc,
		storage: deps.Storage,
	}

	cg := g.Group("/courses", jwt)
	cg.POST("/:id/submissions", api.submit, studentMiddleware())
	cg.GET("/:id/submissions", api.listByCourse)

	sg := g.Group("/submissions", jwt)
	sg.PUT("/:id/grade", api.grade)
	sg.GET("/:id/file", api.downloadFile)
}

// Handlers

func (api *submissionApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filename, f, err := formFile(ctx, api.conf, "file", submission.ErrFileExtMsg, core.DocumentExts)
	if err != nil {
		return err
	}
	defer f.Close()

	ref, err := api.storage.Save(ctx.Request().Context(), "submissions", filename, f)
	if err != nil {
		return errors.Wrap(err, "saving submission file")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), ref, ctx.FormValue("kind"))
	if err != nil {
		// the file is orphaned if the workflow refuses; drop it
		_ = api.storage.Remove(ctx.Request().Context(), ref)
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) listByCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	subs, err := api.svc.ListByCourse(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) grade(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data GradeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), usr, ctx.Param("id"), data.Grade)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

// downloadFile serves a submitted file to whoever may view the course's
// submissions, or to the submitting student.
func (api *submissionApi) downloadFile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.GetForViewer(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return err
	}

	f, err := api.storage.Open(ctx.Request().Context(), sub.File)
	if err != nil {
		return errHttpNotFound
	}
	defer f.Close()
	return ctx.Stream(http.StatusOK, "application/octet-stream", f)
}

type GradeRequest struct {
	Grade string `json:"grade"`
}
