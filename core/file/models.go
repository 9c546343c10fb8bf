package file

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
)

// UploadedFile is a file shared within a course and rated by its readers.
type UploadedFile struct {
	ID            string         `json:"id"`
	CourseID      string         `json:"courseId"`
	UploaderID    string         `json:"uploaderId"`
	FileURL       string         `json:"fileUrl"`
	Filename      string         `json:"filename"`
	Ratings       map[string]int `json:"ratings"`
	AverageRating float64        `json:"averageRating"`
	RatingCount   int            `json:"ratingCount"`
	UploadedAt    time.Time      `json:"uploadedAt"`
}

// DisplayRating is the average shown in listings.
func (f UploadedFile) DisplayRating() float64 {
	return DisplayAverage(f.Ratings)
}

// MyRating returns the rating given by uid, if any.
func (f UploadedFile) MyRating(uid string) (int, bool) {
	r, ok := f.Ratings[uid]
	return r, ok
}

// record is the persisted shape of an UploadedFile.
type record struct {
	UploaderID    string         `json:"uploaderId"`
	FileURL       string         `json:"fileUrl"`
	Filename      string         `json:"filename"`
	Ratings       map[string]int `json:"ratings"`
	AverageRating float64        `json:"averageRating"`
	UploadedAt    time.Time      `json:"uploadedAt"`
}

func (r record) validate(path string) error {
	switch {
	case core.CleanString(r.Filename) == "":
		return errors.Wrapf(core.ErrMalformedRecord, "%s: blank filename", path)
	case r.FileURL == "":
		return errors.Wrapf(core.ErrMalformedRecord, "%s: blank fileUrl", path)
	}
	for uid, rating := range r.Ratings {
		if uid == "" || !ValidRating(rating) {
			return errors.Wrapf(core.ErrMalformedRecord, "%s: invalid rating %d by %q", path, rating, uid)
		}
	}
	return nil
}

func decode(courseID string, doc core.Document) (UploadedFile, error) {
	var rec record
	if err := doc.DataTo(&rec); err != nil {
		return UploadedFile{}, err
	}
	if err := rec.validate(doc.Collection + "/" + doc.ID); err != nil {
		return UploadedFile{}, err
	}
	if rec.Ratings == nil {
		rec.Ratings = make(map[string]int)
	}
	// the stored average is derived data; the ratings map is authoritative
	avg, _ := AverageRating(rec.Ratings)
	return UploadedFile{
		ID:            doc.ID,
		CourseID:      courseID,
		UploaderID:    rec.UploaderID,
		FileURL:       rec.FileURL,
		Filename:      rec.Filename,
		Ratings:       rec.Ratings,
		AverageRating: avg,
		RatingCount:   len(rec.Ratings),
		UploadedAt:    rec.UploadedAt,
	}, nil
}
