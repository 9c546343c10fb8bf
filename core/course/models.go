package course

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
)

// DefaultCourses is the reference data loaded by the seed command.
var DefaultCourses = []NewCourse{
	{ID: "Mathematics", Name: "Mathematics", Description: "Notes for high school and college-level mathematics."},
	{ID: "ComputerScience", Name: "Computer Science", Description: "Programming, data structures, and computer theory notes."},
	{ID: "Physics", Name: "Physics", Description: "Physics lecture notes and problem sets."},
	{ID: "Chemistry", Name: "Chemistry", Description: "All things chemical—from atomic theory to organic."},
	{ID: "Geography", Name: "Geography", Description: "Human and physical geography notes."},
}

var (
	defaultTagline = "📘 Learn something new!"
	taglines       = map[string]string{
		"Mathematics":      "📐 Dive into numbers and equations!",
		"Computer Science": "💻 Code your way to the future!",
		"Physics":          "🔭 Explore the laws of the universe!",
		"Chemistry":        "⚗️ Unravel the mysteries of matter!",
		"Geography":        "🌍 Discover the world around you!",
	}
)

type Course struct {
	ID          string `json:"id"`
	Name        string `json:"courseName"`
	Description string `json:"description"`
	Tagline     string `json:"tagline"`
}

// record is the persisted shape of a Course.
type record struct {
	Name        string `json:"courseName"`
	Description string `json:"description"`
}

func (r record) validate(id string) error {
	switch {
	case core.CleanString(r.Name) == "":
		return errors.Wrapf(core.ErrMalformedRecord, "course %q: blank courseName", id)
	case core.CleanString(r.Description) == "":
		return errors.Wrapf(core.ErrMalformedRecord, "course %q: blank description", id)
	}
	return nil
}

func (r record) toCourse(id string) Course {
	return Course{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Tagline:     Tagline(r.Name),
	}
}

// Tagline returns the catch phrase shown next to a course name.
func Tagline(name string) string {
	if t, ok := taglines[name]; ok {
		return t
	}
	return defaultTagline
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	ID          string `json:"id" validate:"required,notblank,docid"`
	Name        string `json:"courseName" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.ID = core.CleanString(nc.ID)
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}
