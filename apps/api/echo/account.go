package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/notex/core"
	"github.com/trezcool/notex/core/user"
)

type accountApi struct {
	conf     *core.Config
	accounts AccountService
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerAccountAPI(
	g *echo.Group,
	auth echo.MiddlewareFunc,
	accounts AccountService,
	users user.ServiceInterface,
	conf *core.Config,
	validate *validator.Validate,
) {
	api := accountApi{
		conf:     conf,
		accounts: accounts,
		users:    users,
		validate: validate,
	}

	ag := g.Group("/auth")
	// TODO: rate limit `/login`
	ag.POST("/signup", api.signup)
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, auth)
}

// Handlers

func (api *accountApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	uid, err := api.accounts.SignUp(reqCtx, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	usr, err := api.users.CreateProfile(reqCtx, uid, data.Name, data.Email)
	if err != nil {
		return errors.Wrap(err, "creating profile")
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, AuthResponse{Token: token, User: usr})
}

func (api *accountApi) login(ctx echo.Context) error {
	var data user.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	uid, err := api.accounts.Authenticate(reqCtx, data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	usr, err := api.users.EnsureProfile(core.ContextWithPrincipal(reqCtx, uid))
	if err != nil {
		return errors.Wrap(err, "loading profile")
	}

	token, err := GenerateToken(api.conf, GetUserClaims(api.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, AuthResponse{Token: token, User: usr})
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.conf, api.users)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

type (
	TokenResponse struct {
		Token string `json:"token"`
	}

	AuthResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
)
