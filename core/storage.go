package core

import (
	"context"
	"io"
	"path"
)

type (
	ObjectRef struct {
		Path string
		Size int64
	}

	// ObjectStore keeps binary blobs and hands out URLs to retrieve them.
	ObjectStore interface {
		Put(ctx context.Context, path string, r io.Reader) (ObjectRef, error)
		URL(ref ObjectRef) (string, error)
	}
)

// CourseObjectPath is where a file shared in a course is stored: {courseId}/{filename}.
func CourseObjectPath(courseID, filename string) string {
	return path.Join(courseID, filename)
}

// PrivateObjectPath is where a private file is stored: privateFiles/{uid}/{filename}.
func PrivateObjectPath(uid, filename string) string {
	return path.Join("privateFiles", uid, filename)
}
