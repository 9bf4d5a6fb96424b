package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/models"
	"github.com/rryowa/tubeauth/internal/service"
)

const bearerPrefix = "Bearer "

// AuthMiddleware проверяет access токен из cookie accessToken, а при ее отсутствии из заголовка Authorization.
// Если токен валиден, представление принципала сохраняется в контексте Echo.
func AuthMiddleware(authService *service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal, err := authService.Authorize(c.Request().Context(), accessTokenFromRequest(c))
			if err != nil {
				return err
			}

			c.Set(models.MwPrincipalKey, principal)

			return next(c)
		}
	}
}

func accessTokenFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(models.CookieAccessToken); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimPrefix(h, bearerPrefix)
	}
	return ""
}

func GetLoggerMiddlewareConfig(log *zap.SugaredLogger) echomiddleware.RequestLoggerConfig {
	return echomiddleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,

		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency.Round(time.Microsecond),
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				log.Errorw("Request", append(fields, "error", v.Error)...)
			case v.Error != nil:
				log.Warnw("Request", append(fields, "error", v.Error)...)
			default:
				log.Infow("Request", fields...)
			}
			return nil
		},
	}
}
