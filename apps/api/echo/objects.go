package echoapi

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/notex/core"
)

const privatePrefix = "privateFiles/"

type objectApi struct {
	root string
}

// registerObjectAPI serves stored files. Private files are only served to their owner.
func registerObjectAPI(g *echo.Group, auth echo.MiddlewareFunc, root string) {
	api := objectApi{root: root}
	g.GET("/*", api.download, auth)
}

func (api *objectApi) download(ctx echo.Context) error {
	// the router matches on RawPath when the request carries one, and on the decoded Path otherwise
	raw := ctx.Param("*")
	if ctx.Request().URL.RawPath != "" {
		var err error
		if raw, err = url.PathUnescape(raw); err != nil {
			return core.ErrNotFound
		}
	}
	rel := strings.TrimPrefix(path.Clean("/"+raw), "/")
	if rel == "" {
		return core.ErrNotFound
	}

	if strings.HasPrefix(rel, privatePrefix) {
		uid, _ := core.PrincipalFromContext(ctx.Request().Context())
		owner := strings.SplitN(strings.TrimPrefix(rel, privatePrefix), "/", 2)[0]
		if uid == "" || owner != uid {
			return core.ErrNotFound
		}
	}
	return ctx.File(filepath.Join(api.root, filepath.FromSlash(rel)))
}
