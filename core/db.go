package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Top level collections.
const (
	AccountsCollection = "accounts"
	UsersCollection    = "users"
	CoursesCollection  = "courses"
)

// UploadedFilesCollection holds the files shared within a course.
func UploadedFilesCollection(courseID string) string {
	return CoursesCollection + "/" + courseID + "/uploadedFiles"
}

// PrivateFilesCollection holds the files only visible to their owner.
func PrivateFilesCollection(uid string) string {
	return UsersCollection + "/" + uid + "/privateFiles"
}

type (
	// Fields are the top level fields written to a Document. Values must be JSON encodable.
	Fields map[string]interface{}

	Document struct {
		Collection string
		ID         string
		Data       json.RawMessage
		CreatedAt  time.Time // UTC
		UpdatedAt  time.Time // UTC; zero until the first write after creation
	}

	// DocumentTx is the subset of the store usable inside RunTransaction.
	DocumentTx interface {
		GetDocument(ctx context.Context, collection, id string) (Document, error)
		SetDocument(ctx context.Context, collection, id string, fields Fields, merge bool) error
	}

	// DocumentStore is a schema-less store of JSON documents grouped in collections.
	// Lookups of missing documents return ErrNotFound; backend failures match ErrStoreUnavailable.
	DocumentStore interface {
		DocumentTx

		// UpdateDocument merges fields into an existing document.
		UpdateDocument(ctx context.Context, collection, id string, fields Fields) error
		ListDocuments(ctx context.Context, collection string) ([]Document, error)
		// AddToSet atomically appends value to the array `field` unless already present.
		AddToSet(ctx context.Context, collection, id, field, value string) error
		// RunTransaction runs fn atomically. Writes are discarded when fn returns an error.
		// fn must only use tx, never the store itself.
		RunTransaction(ctx context.Context, fn func(ctx context.Context, tx DocumentTx) error) error
	}
)

// DataTo decodes the document body into v.
func (d Document) DataTo(v interface{}) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "%s/%s: %v", d.Collection, d.ID, err)
	}
	return nil
}

// EncodeFields encodes fields as a JSON object.
func EncodeFields(fields Fields) (json.RawMessage, error) {
	if fields == nil {
		fields = Fields{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	return data, nil
}

// MergeFields overlays the top level fields on the current JSON object.
func MergeFields(current json.RawMessage, fields Fields) (json.RawMessage, error) {
	merged := make(map[string]json.RawMessage)
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, errors.Wrap(ErrMalformedRecord, err.Error())
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidInput, err.Error())
		}
		merged[k] = raw
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(err, "encoding merged fields")
	}
	return data, nil
}
