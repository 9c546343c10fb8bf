package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/user"
	metricsvc "github.com/trezcool/notex/services/metrics"
)

type userApi struct {
	conf     *core.Config
	svc      user.ServiceInterface
	metrics  *metricsvc.Collector
	validate *validator.Validate
}

func registerUserAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	svc user.ServiceInterface,
	metrics *metricsvc.Collector,
	conf *core.Config,
	validate *validator.Validate,
) {
	api := userApi{
		conf:     conf,
		svc:      svc,
		metrics:  metrics,
		validate: validate,
	}

	mg := g.Group("/me", auth)
	mg.GET("", api.retrieve)
	mg.GET("/courses", api.listCourses)
	mg.POST("/courses", api.addCourse)
	mg.GET("/files", api.listFiles)
	mg.POST("/files", api.uploadFile, uploadBodyLimit(conf.Upload.MaxSize))

	ug := g.Group("/users", auth)
	ug.PUT("/:id/notes", api.saveNotes)
}

// Handlers

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.EnsureProfile(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) listCourses(ctx echo.Context) error {
	ids, err := api.svc.ListMyCourses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing enrolled courses")
	}
	if ids == nil {
		ids = []string{}
	}
	return ctx.JSON(http.StatusOK, ids)
}

func (api *userApi) addCourse(ctx echo.Context) error {
	var data EnrollRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	if err := api.svc.AddCourseToMyCourses(reqCtx, data.CourseID); err != nil {
		return errors.Wrap(err, "adding course")
	}
	if api.metrics != nil {
		api.metrics.CourseEnrolled()
	}

	usr, err := api.svc.Get(reqCtx)
	if err != nil {
		return errors.Wrap(err, "getting profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) listFiles(ctx echo.Context) error {
	files, err := api.svc.ListPrivateFiles(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing private files")
	}
	if files == nil {
		files = []user.PrivateFile{}
	}
	return ctx.JSON(http.StatusOK, files)
}

func (api *userApi) uploadFile(ctx echo.Context) error {
	upload, err := bindUpload(ctx, api.conf.Upload.MaxSize)
	if err != nil {
		return err
	}
	defer upload.Content.Close()

	pf, err := api.svc.UploadPrivateFile(ctx.Request().Context(), upload.Filename, upload.Content)
	if err != nil {
		return errors.Wrap(err, "uploading private file")
	}
	if api.metrics != nil {
		api.metrics.FileUploaded("private")
	}
	return ctx.JSON(http.StatusCreated, pf)
}

func (api *userApi) saveNotes(ctx echo.Context) error {
	var data NotesRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NotesRequest")
	}

	if err := api.svc.SavePrivateNotes(ctx.Request().Context(), ctx.Param("id"), data.Notes); err != nil {
		return errors.Wrap(err, "saving private notes")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Notes saved."})
}

type (
	EnrollRequest struct {
		CourseID string `json:"courseId" validate:"required,notblank"`
	}

	NotesRequest struct {
		Notes string `json:"notes"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (er *EnrollRequest) Validate(validate *validator.Validate) error {
	er.CourseID = core.CleanString(er.CourseID)
	return validate.Struct(er)
}
