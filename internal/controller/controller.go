package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/service"
)

// CookieSettings controls how the token pair is written to cookies.
// MaxAge of each cookie follows the TTL of its token.
type CookieSettings struct {
	Secure     bool
	Domain     string
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Controller struct {
	zapLogger   *zap.SugaredLogger
	authService *service.AuthService
	cookies     CookieSettings
}

func NewController(logger *zap.SugaredLogger, authService *service.AuthService, cookies CookieSettings) *Controller {
	return &Controller{
		zapLogger:   logger,
		authService: authService,
		cookies:     cookies,
	}
}

// (GET /api/ping).
func (c *Controller) CheckServer(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, "ok")
}

// (POST /api/v1/users/register).
func (c *Controller) Register(ctx echo.Context) error {
	var req models.RegisterRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	view, err := c.authService.Register(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, models.PrincipalResponse{Principal: view})
}

// (POST /api/v1/users/login).
func (c *Controller) Login(ctx echo.Context) error {
	var req models.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	view, pair, err := c.authService.Login(ctx.Request().Context(), req.Identifier, req.Secret)
	if err != nil {
		return err
	}

	c.setTokenCookies(ctx, pair)
	return ctx.JSON(http.StatusOK, models.LoginResponse{Principal: view, TokenPair: pair})
}

// (POST /api/v1/users/logout).
func (c *Controller) Logout(ctx echo.Context) error {
	principal, err := PrincipalFromContext(ctx)
	if err != nil {
		return err
	}

	if err := c.authService.Logout(ctx.Request().Context(), principal.ID); err != nil {
		return err
	}

	c.clearTokenCookies(ctx)
	return ctx.JSON(http.StatusOK, struct{}{})
}

// (POST /api/v1/users/refresh).
// The refresh token is taken from the body first, then from the cookie.
func (c *Controller) Refresh(ctx echo.Context) error {
	var req models.RefreshRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	token := req.RefreshToken
	if token == "" {
		if cookie, err := ctx.Cookie(models.CookieRefreshToken); err == nil {
			token = cookie.Value
		}
	}

	meta := service.RequestMeta{
		IPAddress: ctx.RealIP(),
		UserAgent: ctx.Request().UserAgent(),
	}
	pair, err := c.authService.Rotate(ctx.Request().Context(), token, meta)
	if err != nil {
		return err
	}

	c.setTokenCookies(ctx, pair)
	return ctx.JSON(http.StatusOK, pair)
}

// (GET /api/v1/users/current-user).
func (c *Controller) CurrentUser(ctx echo.Context) error {
	principal, err := PrincipalFromContext(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, models.PrincipalResponse{Principal: principal})
}

// (POST /api/v1/users/change-password).
func (c *Controller) ChangePassword(ctx echo.Context) error {
	principal, err := PrincipalFromContext(ctx)
	if err != nil {
		return err
	}

	var req models.ChangePasswordRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	if err := c.authService.ChangePassword(ctx.Request().Context(), principal.ID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, struct{}{})
}

// (PATCH /api/v1/users/update-account-details).
func (c *Controller) UpdateAccountDetails(ctx echo.Context) error {
	principal, err := PrincipalFromContext(ctx)
	if err != nil {
		return err
	}

	var req models.UpdateAccountRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	view, err := c.authService.UpdateAccountDetails(ctx.Request().Context(), principal.ID, req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, models.PrincipalResponse{Principal: view})
}

// PrincipalFromContext returns the principal stored by the auth middleware.
func PrincipalFromContext(ctx echo.Context) (models.PrincipalView, error) {
	principal, ok := ctx.Get(models.MwPrincipalKey).(models.PrincipalView)
	if !ok {
		return models.PrincipalView{}, service.ErrUnauthorized
	}
	return principal, nil
}

func (c *Controller) setTokenCookies(ctx echo.Context, pair models.TokenPair) {
	ctx.SetCookie(c.newCookie(models.CookieAccessToken, pair.AccessToken, int(c.cookies.AccessTTL.Seconds())))
	ctx.SetCookie(c.newCookie(models.CookieRefreshToken, pair.RefreshToken, int(c.cookies.RefreshTTL.Seconds())))
}

func (c *Controller) clearTokenCookies(ctx echo.Context) {
	ctx.SetCookie(c.newCookie(models.CookieAccessToken, "", -1))
	ctx.SetCookie(c.newCookie(models.CookieRefreshToken, "", -1))
}

func (c *Controller) newCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.cookies.Domain,
		MaxAge:   maxAge,
		Secure:   c.cookies.Secure,
		HttpOnly: true,
		SameSite: c.cookies.SameSite,
	}
}
