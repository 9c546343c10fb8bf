package user

import (
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
)

// Profile fallbacks for records created without a name or an email.
const (
	DefaultName  = "Default User"
	DefaultEmail = "unknown@email.com"
)

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	EnrolledCourses []string  `json:"enrolledCourses"`
	PrivateNotes    string    `json:"privateNotes"`
	CreatedAt       time.Time `json:"createdAt"` // UTC
}

// RollbarPerson identifies the user in error reports.
func (u User) RollbarPerson() (id, username, email string) {
	return u.ID, u.Name, u.Email
}

func (u User) Address() mail.Address {
	return mail.Address{Name: u.Name, Address: u.Email}
}

// IsEnrolled reports whether courseID is in the user's courses.
func (u User) IsEnrolled(courseID string) bool {
	for _, id := range u.EnrolledCourses {
		if id == courseID {
			return true
		}
	}
	return false
}

// record is the persisted shape of a User.
type record struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	EnrolledCourses []string `json:"enrolledCourses"`
	PrivateNotes    string   `json:"privateNotes"`
}

func decodeUser(doc core.Document) (User, error) {
	var rec record
	if err := doc.DataTo(&rec); err != nil {
		return User{}, err
	}
	courses := make([]string, 0, len(rec.EnrolledCourses))
	seen := make(map[string]bool, len(rec.EnrolledCourses))
	for _, id := range rec.EnrolledCourses {
		if id != "" && !seen[id] {
			seen[id] = true
			courses = append(courses, id)
		}
	}
	return User{
		ID:              doc.ID,
		Name:            rec.Name,
		Email:           rec.Email,
		EnrolledCourses: courses,
		PrivateNotes:    rec.PrivateNotes,
		CreatedAt:       doc.CreatedAt,
	}, nil
}

// PrivateFile is a file only visible to its owner.
type PrivateFile struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	FileURL    string    `json:"fileUrl"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"` // UTC
}

type privateFileRecord struct {
	FileURL    string `json:"fileUrl"`
	Filename   string `json:"filename"`
	UploadedAt string `json:"uploadedAt"` // RFC 3339
}

func decodePrivateFile(ownerID string, doc core.Document) (PrivateFile, error) {
	var rec privateFileRecord
	if err := doc.DataTo(&rec); err != nil {
		return PrivateFile{}, err
	}
	if core.CleanString(rec.Filename) == "" || rec.FileURL == "" {
		return PrivateFile{}, errors.Wrapf(core.ErrMalformedRecord, "%s/%s: blank filename or fileUrl", doc.Collection, doc.ID)
	}
	uploadedAt, err := time.Parse(time.RFC3339Nano, rec.UploadedAt)
	if err != nil {
		return PrivateFile{}, errors.Wrapf(core.ErrMalformedRecord, "%s/%s: %v", doc.Collection, doc.ID, err)
	}
	return PrivateFile{
		ID:         doc.ID,
		OwnerID:    ownerID,
		FileURL:    rec.FileURL,
		Filename:   rec.Filename,
		UploadedAt: uploadedAt.UTC(),
	}, nil
}

// NewUser contains information needed to sign up.
type NewUser struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// Credentials are the login payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}
