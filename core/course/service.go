package course

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
)

type (
	ServiceInterface interface {
		Seed(ctx context.Context, courses ...NewCourse) (int, error)
		List(ctx context.Context) ([]Course, error)
		Get(ctx context.Context, id string) (Course, error)
	}

	Service struct {
		store    core.DocumentStore
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(store core.DocumentStore, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		store:    store,
		validate: validate,
		logger:   logger,
	}
}

// Seed writes the given courses, skipping the invalid ones. It returns how many were written.
func (svc *Service) Seed(ctx context.Context, courses ...NewCourse) (int, error) {
	var count int
	for _, nc := range courses {
		nc := nc
		if err := nc.Validate(svc.validate); err != nil {
			svc.logger.Warn(fmt.Sprintf("skipping invalid course %q", nc.ID), err)
			continue
		}
		fields := core.Fields{
			"courseName":  nc.Name,
			"description": nc.Description,
		}
		if err := svc.store.SetDocument(ctx, core.CoursesCollection, nc.ID, fields, true); err != nil {
			return count, errors.Wrapf(err, "seeding course %q", nc.ID)
		}
		count++
	}
	return count, nil
}

// List returns the valid courses ordered by name. Malformed records are logged and left out.
func (svc *Service) List(ctx context.Context) ([]Course, error) {
	docs, err := svc.store.ListDocuments(ctx, core.CoursesCollection)
	if err != nil {
		return nil, errors.Wrap(err, "listing courses")
	}

	courses := make([]Course, 0, len(docs))
	for _, doc := range docs {
		crs, err := decode(doc)
		if err != nil {
			svc.logger.Warn("skipping malformed course", err)
			continue
		}
		courses = append(courses, crs)
	}
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })
	return courses, nil
}

// Get returns a valid course. A malformed record is reported as core.ErrNotFound.
func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	id = core.CleanString(id)
	if id == "" {
		return Course{}, core.NewFieldError("courseId", "this field is required")
	}

	doc, err := svc.store.GetDocument(ctx, core.CoursesCollection, id)
	if err != nil {
		return Course{}, errors.Wrap(err, "getting course")
	}
	crs, err := decode(doc)
	if err != nil {
		svc.logger.Warn("malformed course", err)
		return Course{}, errors.Wrapf(core.ErrNotFound, "course %q", id)
	}
	return crs, nil
}

func decode(doc core.Document) (Course, error) {
	var rec record
	if err := doc.DataTo(&rec); err != nil {
		return Course{}, err
	}
	if err := rec.validate(doc.ID); err != nil {
		return Course{}, err
	}
	return rec.toCourse(doc.ID), nil
}
