package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/course"
	"github.com/trezcool/notex/core/file"
	metricsvc "github.com/trezcool/notex/services/metrics"
)

type courseApi struct {
	conf    *core.Config
	courses course.ServiceInterface
	files   file.ServiceInterface
	metrics *metricsvc.Collector
}

func registerCourseAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	courses course.ServiceInterface,
	files file.ServiceInterface,
	metrics *metricsvc.Collector,
	conf *core.Config,
) {
	api := courseApi{
		conf:    conf,
		courses: courses,
		files:   files,
		metrics: metrics,
	}

	cg := g.Group("/courses", auth)
	cg.GET("", api.query)
	cg.GET("/:courseId", api.retrieve)
	cg.GET("/:courseId/files", api.queryFiles)
	cg.POST("/:courseId/files", api.uploadFile, uploadBodyLimit(conf.Upload.MaxSize))
	cg.GET("/:courseId/files/:fileId", api.retrieveFile)
	cg.PUT("/:courseId/files/:fileId/rating", api.rate)
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	courses, err := api.courses.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.courses.Get(ctx.Request().Context(), ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) queryFiles(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	files, err := api.files.ListCourseFiles(reqCtx, ctx.Param("courseId"))
	if err != nil {
		return errors.Wrap(err, "listing course files")
	}

	uid, _ := core.PrincipalFromContext(reqCtx)
	resp := make([]FileResponse, 0, len(files))
	for _, f := range files {
		resp = append(resp, newFileResponse(f, uid))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *courseApi) retrieveFile(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	f, err := api.files.Get(reqCtx, ctx.Param("courseId"), ctx.Param("fileId"))
	if err != nil {
		return errors.Wrap(err, "getting course file")
	}
	uid, _ := core.PrincipalFromContext(reqCtx)
	return ctx.JSON(http.StatusOK, newFileResponse(f, uid))
}

func (api *courseApi) uploadFile(ctx echo.Context) error {
	upload, err := bindUpload(ctx, api.conf.Upload.MaxSize)
	if err != nil {
		return err
	}
	defer upload.Content.Close()

	reqCtx := ctx.Request().Context()
	f, err := api.files.Upload(reqCtx, ctx.Param("courseId"), upload.Filename, upload.Content)
	if err != nil {
		return errors.Wrap(err, "uploading course file")
	}
	if api.metrics != nil {
		api.metrics.FileUploaded("course")
	}
	uid, _ := core.PrincipalFromContext(reqCtx)
	return ctx.JSON(http.StatusCreated, newFileResponse(f, uid))
}

func (api *courseApi) rate(ctx echo.Context) error {
	var data RatingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RatingRequest")
	}

	reqCtx := ctx.Request().Context()
	f, err := api.files.SubmitRating(reqCtx, ctx.Param("courseId"), ctx.Param("fileId"), data.Rating)
	if err != nil {
		return errors.Wrap(err, "submitting rating")
	}
	if api.metrics != nil {
		api.metrics.RatingSubmitted()
	}
	uid, _ := core.PrincipalFromContext(reqCtx)
	return ctx.JSON(http.StatusOK, newFileResponse(f, uid))
}

type (
	RatingRequest struct {
		Rating int `json:"rating"`
	}

	// FileResponse is an UploadedFile as seen by one reader: other readers' ratings stay hidden.
	FileResponse struct {
		ID            string    `json:"id"`
		CourseID      string    `json:"courseId"`
		UploaderID    string    `json:"uploaderId"`
		FileURL       string    `json:"fileUrl"`
		Filename      string    `json:"filename"`
		AverageRating float64   `json:"averageRating"`
		RatingCount   int       `json:"ratingCount"`
		MyRating      *int      `json:"myRating"`
		UploadedAt    time.Time `json:"uploadedAt"`
	}
)

func newFileResponse(f file.UploadedFile, uid string) FileResponse {
	resp := FileResponse{
		ID:            f.ID,
		CourseID:      f.CourseID,
		UploaderID:    f.UploaderID,
		FileURL:       f.FileURL,
		Filename:      f.Filename,
		AverageRating: f.DisplayRating(),
		RatingCount:   f.RatingCount,
		UploadedAt:    f.UploadedAt,
	}
	if r, ok := f.MyRating(uid); ok {
		resp.MyRating = &r
	}
	return resp
}
