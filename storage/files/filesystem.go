package filestore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
)

var errInvalidPath = errors.New("invalid object path")

// FilesystemStorage stores objects on local disk and serves them under baseURL.
type FilesystemStorage struct {
	root    string
	baseURL string
}

var _ core.ObjectStore = (*FilesystemStorage)(nil)

func NewFilesystemStorage(root, baseURL string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, core.StoreError(err, "creating storage root")
	}
	return &FilesystemStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory holding the objects.
func (fs *FilesystemStorage) Root() string { return fs.root }

// Put writes r to p, replacing any previous object. Readers never see a partial file.
func (fs *FilesystemStorage) Put(ctx context.Context, p string, r io.Reader) (core.ObjectRef, error) {
	p, err := cleanPath(p)
	if err != nil {
		return core.ObjectRef{}, err
	}
	if err = ctx.Err(); err != nil {
		return core.ObjectRef{}, errors.Wrap(err, "storing object")
	}

	dest := filepath.Join(fs.root, filepath.FromSlash(p))
	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return core.ObjectRef{}, core.StoreError(err, "creating object dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return core.ObjectRef{}, core.StoreError(err, "creating object")
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op once renamed

	n, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if cErr := tmp.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		if ctx.Err() != nil {
			return core.ObjectRef{}, errors.Wrap(ctx.Err(), "storing object")
		}
		return core.ObjectRef{}, core.StoreError(err, "writing object")
	}
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return core.ObjectRef{}, core.StoreError(err, "renaming object")
	}
	return core.ObjectRef{Path: p, Size: n}, nil
}

func (fs *FilesystemStorage) URL(ref core.ObjectRef) (string, error) {
	p, err := cleanPath(ref.Path)
	if err != nil {
		return "", err
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fs.baseURL + "/" + strings.Join(segments, "/"), nil
}

func cleanPath(p string) (string, error) {
	p = path.Clean("/" + strings.ReplaceAll(p, `\`, "/"))[1:]
	if p == "" {
		return "", errors.Wrapf(core.ErrInvalidInput, "%s: %q", errInvalidPath, p)
	}
	return p, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
