package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/catalog"
	"github.com/trezcool/academia/core/enroll"
	"github.com/trezcool/academia/core/submission"
	"github.com/trezcool/academia/core/user"
)

type catalogApi struct {
	conf     *core.Config
	svc      catalog.Service
	enrlSvc  enroll.Service
	subSvc   submission.Service
	usrSvc   user.Service
	storage  core.FileStorage
	validate *validator.Validate
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{
		conf:     deps.Conf,
		svc:      deps.CatalogSvc,
		enrlSvc:  deps.EnrollSvc,
		subSvc:   deps.SubmissionSvc,
		usrSvc:   deps.UserSvc,
		storage:  deps.Storage,
		validate: deps.Validate,
	}

	fg := g.Group("/formations", jwt)
	fg.GET("", api.list)
	fg.GET("/mine", api.listMine, teacherMiddleware())
	fg.POST("", api.publish, teacherMiddleware())
	fg.GET("/:id", api.retrieve)
	fg.PUT("/:id", api.update)
	fg.DELETE("/:id", api.destroy)
	fg.POST("/:id/courses", api.addCourse)

	cg := g.Group("/courses", jwt)
	cg.PUT("/:id", api.updateCourse)
	cg.DELETE("/:id", api.destroyCourse)
	cg.PUT("/:id/files/:kind", api.uploadDoc)
	cg.GET("/:id/files/:kind", api.downloadDoc)
}

// Handlers

func (api *catalogApi) list(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(catalog.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []catalog.Formation{})
	}
	filter.Clean()

	formations, err := api.svc.List(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing formations")
	}

	// attach the caller's ledger state to each listing
	if usr.IsStudent() {
		purchases, err := api.enrlSvc.PurchaseMap(ctx.Request().Context(), usr.ID)
		if err != nil {
			return errors.Wrap(err, "querying purchases")
		}
		for i := range formations {
			if p, ok := purchases[formations[i].ID]; ok {
				formations[i].Purchased = true
				formations[i].Paid = p.IsPaid
			}
		}
	}

	if formations == nil {
		formations = []catalog.Formation{}
	}
	return ctx.JSON(http.StatusOK, formations)
}

func (api *catalogApi) listMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	formations, err := api.svc.ListMine(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing own formations")
	}
	if formations == nil {
		formations = []catalog.Formation{}
	}
	return ctx.JSON(http.StatusOK, formations)
}

func (api *catalogApi) publish(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data catalog.NewFormation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFormation")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	f, err := api.svc.Publish(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "publishing formation")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *catalogApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	f, err := api.svc.GetWithCourses(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	detail := FormationDetail{Formation: f}
	if usr.IsStudent() {
		enrolled, err := api.enrlSvc.IsEnrolled(ctx.Request().Context(), usr.ID, f.ID)
		if err != nil {
			return errors.Wrap(err, "checking enrollment")
		}
		detail.IsEnrolled = enrolled

		if p, err := api.enrlSvc.PurchaseMap(ctx.Request().Context(), usr.ID); err == nil {
			if purchase, ok := p[f.ID]; ok {
				detail.Purchased = true
				detail.Paid = purchase.IsPaid
			}
		}

		if enrolled {
			ids, err := api.subSvc.SubmittedCourseIDs(ctx.Request().Context(), usr.ID, f.Courses)
			if err != nil {
				return errors.Wrap(err, "resolving submitted courses")
			}
			detail.SubmittedCourseIDs = ids
		}
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *catalogApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data catalog.UpdateFormation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFormation")
	}

	f, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *catalogApi) destroy(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *catalogApi) addCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data catalog.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.AddCourse(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *catalogApi) updateCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data catalog.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	c, err := api.svc.UpdateCourse(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *catalogApi) destroyCourse(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.DeleteCourse(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// uploadDoc replaces one of the course's three documents; PDF only.
func (api *catalogApi) uploadDoc(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filename, f, err := formFile(ctx, api.conf, "file", "only PDF accepted", core.PDFOnlyExts)
	if err != nil {
		return err
	}
	defer f.Close()

	ref, err := api.storage.Save(ctx.Request().Context(), "courses", filename, f)
	if err != nil {
		return errors.Wrap(err, "saving course document")
	}

	c, err := api.svc.SetCourseDoc(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("kind"), ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

// downloadDoc serves a course document; students need an enrollment, the
// owning teacher and admins always may.
func (api *catalogApi) downloadDoc(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	f, err := api.svc.Get(ctx.Request().Context(), c.FormationID)
	if err != nil {
		return err
	}

	enrolled, err := api.enrlSvc.IsEnrolled(ctx.Request().Context(), usr.ID, f.ID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !access.CanAccessContent(usr, f.TeacherID, enrolled) {
		return access.ErrPermissionDenied
	}

	ref, ok := c.DocRef(ctx.Param("kind"))
	if !ok || !ref.Valid {
		return errHttpNotFound
	}

	doc, err := api.storage.Open(ctx.Request().Context(), ref.String)
	if err != nil {
		return errHttpNotFound
	}
	defer doc.Close()
	return ctx.Stream(http.StatusOK, "application/pdf", doc)
}

// FormationDetail is the formation detail view: the formation with its
// courses plus the caller's enrollment state.
type FormationDetail struct {
	catalog.Formation
	IsEnrolled         bool     `json:"is_enrolled"`
	SubmittedCourseIDs []string `json:"submitted_course_ids,omitempty"`
}
