package file

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/course"
)

var (
	NowFunc = time.Now // mockable

	errRatingRange = fmt.Sprintf("rating must be an integer between %d and %d", MinRating, MaxRating)
)

type (
	ServiceInterface interface {
		Upload(ctx context.Context, courseID, filename string, content io.Reader) (UploadedFile, error)
		ListCourseFiles(ctx context.Context, courseID string) ([]UploadedFile, error)
		Get(ctx context.Context, courseID, fileID string) (UploadedFile, error)
		SubmitRating(ctx context.Context, courseID, fileID string, rating int) (UploadedFile, error)
	}

	// CourseGetter finds valid courses.
	CourseGetter interface {
		Get(ctx context.Context, id string) (course.Course, error)
	}

	Service struct {
		store     core.DocumentStore
		objects   core.ObjectStore
		accounts  core.AccountService
		courses   CourseGetter
		logger    core.Logger
		uploadSem *semaphore.Weighted
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	store core.DocumentStore,
	objects core.ObjectStore,
	accounts core.AccountService,
	courses CourseGetter,
	logger core.Logger,
	maxConcurrentUploads int64,
) *Service {
	if maxConcurrentUploads < 1 {
		maxConcurrentUploads = 1
	}
	return &Service{
		store:     store,
		objects:   objects,
		accounts:  accounts,
		courses:   courses,
		logger:    logger,
		uploadSem: semaphore.NewWeighted(maxConcurrentUploads),
	}
}

// Upload stores content under {courseId}/{filename} and records it as an unrated file of the course.
func (svc *Service) Upload(ctx context.Context, courseID, filename string, content io.Reader) (UploadedFile, error) {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return UploadedFile{}, err
	}
	filename = core.CleanFilename(filename)
	if filename == "" {
		return UploadedFile{}, core.NewFieldError("file", "a file with a name is required")
	}
	crs, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return UploadedFile{}, errors.Wrap(err, "finding course")
	}

	if err = svc.uploadSem.Acquire(ctx, 1); err != nil {
		return UploadedFile{}, errors.Wrap(err, "waiting for an upload slot")
	}
	defer svc.uploadSem.Release(1)

	ref, err := svc.objects.Put(ctx, core.CourseObjectPath(crs.ID, filename), content)
	if err != nil {
		return UploadedFile{}, errors.Wrap(err, "storing file")
	}
	url, err := svc.objects.URL(ref)
	if err != nil {
		return UploadedFile{}, errors.Wrap(err, "getting file url")
	}

	f := UploadedFile{
		ID:         uuid.New().String(),
		CourseID:   crs.ID,
		UploaderID: uid,
		FileURL:    url,
		Filename:   filename,
		Ratings:    make(map[string]int),
		UploadedAt: NowFunc().UTC(),
	}
	fields := core.Fields{
		"uploaderId":    f.UploaderID,
		"fileUrl":       f.FileURL,
		"filename":      f.Filename,
		"ratings":       f.Ratings,
		"averageRating": f.AverageRating,
		"uploadedAt":    f.UploadedAt,
	}
	if err = svc.store.SetDocument(ctx, core.UploadedFilesCollection(crs.ID), f.ID, fields, false); err != nil {
		return UploadedFile{}, errors.Wrap(err, "saving uploaded file")
	}
	return f, nil
}

// ListCourseFiles returns the files of a course, oldest first. Malformed records are logged and left out.
func (svc *Service) ListCourseFiles(ctx context.Context, courseID string) ([]UploadedFile, error) {
	if _, err := core.RequirePrincipal(ctx, svc.accounts); err != nil {
		return nil, err
	}
	crs, err := svc.courses.Get(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "finding course")
	}

	docs, err := svc.store.ListDocuments(ctx, core.UploadedFilesCollection(crs.ID))
	if err != nil {
		return nil, errors.Wrap(err, "listing uploaded files")
	}
	files := make([]UploadedFile, 0, len(docs))
	for _, doc := range docs {
		f, err := decode(crs.ID, doc)
		if err != nil {
			svc.logger.Warn("skipping malformed uploaded file", err)
			continue
		}
		files = append(files, f)
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].UploadedAt.Before(files[j].UploadedAt) })
	return files, nil
}

func (svc *Service) Get(ctx context.Context, courseID, fileID string) (UploadedFile, error) {
	if _, err := core.RequirePrincipal(ctx, svc.accounts); err != nil {
		return UploadedFile{}, err
	}
	courseID, fileID, err := cleanIDs(courseID, fileID)
	if err != nil {
		return UploadedFile{}, err
	}
	doc, err := svc.store.GetDocument(ctx, core.UploadedFilesCollection(courseID), fileID)
	if err != nil {
		return UploadedFile{}, errors.Wrap(err, "getting uploaded file")
	}
	return decode(courseID, doc)
}

// SubmitRating sets the rating of the current user on a file and recomputes its average.
// The read-modify-write runs in one transaction so concurrent raters never lose votes.
func (svc *Service) SubmitRating(ctx context.Context, courseID, fileID string, rating int) (UploadedFile, error) {
	uid, err := core.RequirePrincipal(ctx, svc.accounts)
	if err != nil {
		return UploadedFile{}, err
	}
	if !ValidRating(rating) {
		return UploadedFile{}, core.NewFieldError("rating", errRatingRange)
	}
	courseID, fileID, err = cleanIDs(courseID, fileID)
	if err != nil {
		return UploadedFile{}, err
	}

	coll := core.UploadedFilesCollection(courseID)
	var f UploadedFile
	err = svc.store.RunTransaction(ctx, func(ctx context.Context, tx core.DocumentTx) error {
		doc, err := tx.GetDocument(ctx, coll, fileID)
		if err != nil {
			return errors.Wrap(err, "getting uploaded file")
		}
		if f, err = decode(courseID, doc); err != nil {
			return err
		}

		ratings, avg, changed := ApplyRating(f.Ratings, uid, rating)
		f.Ratings, f.AverageRating, f.RatingCount = ratings, avg, len(ratings)
		if !changed {
			return nil
		}
		fields := core.Fields{
			"ratings":       ratings,
			"averageRating": avg,
		}
		return errors.Wrap(tx.SetDocument(ctx, coll, fileID, fields, true), "saving rating")
	})
	if err != nil {
		return UploadedFile{}, errors.Wrap(err, "submitting rating")
	}
	return f, nil
}

func cleanIDs(courseID, fileID string) (string, string, error) {
	courseID = core.CleanString(courseID)
	fileID = core.CleanString(fileID)
	var flds []core.FieldError
	if courseID == "" {
		flds = append(flds, core.FieldError{Field: "courseId", Error: "this field is required"})
	}
	if fileID == "" {
		flds = append(flds, core.FieldError{Field: "fileId", Error: "this field is required"})
	}
	if flds != nil {
		return "", "", core.NewValidationError(core.ErrInvalidInput, flds...)
	}
	return courseID, fileID, nil
}
