package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rryowa/tubeauth/internal/service"
	"github.com/rryowa/tubeauth/internal/util"
)

const internalErrorReason = "internal server error"

// ErrorHandler writes every error as util.ResponseError. Details of 5xx
// errors stay in the log.
func ErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := toResponseError(err)
		switch {
		case resp.Status >= http.StatusInternalServerError:
			log.Errorw("HTTP error", "error", err, "uri", c.Request().RequestURI)
		case errors.Is(err, service.ErrUnauthorized):
			log.Debugw("Unauthorized request", "error", err, "uri", c.Request().RequestURI)
		}

		if err := c.JSON(resp.Status, resp); err != nil {
			log.Errorw("failed to write json response", "error", err)
		}
	}
}

func toResponseError(err error) util.ResponseError {
	var respErr util.ResponseError
	if errors.As(err, &respErr) {
		return respErr
	}

	switch {
	case errors.Is(err, service.ErrBadRequest):
		return util.ResponseError{Status: http.StatusBadRequest, Msg: err.Error()}
	case errors.Is(err, service.ErrInvalidCredentials):
		return util.ResponseError{Status: http.StatusUnauthorized, Msg: service.ErrInvalidCredentials.Error()}
	case errors.Is(err, service.ErrRefreshTokenReused):
		return util.ResponseError{Status: http.StatusUnauthorized, Msg: service.ErrRefreshTokenReused.Error()}
	case errors.Is(err, service.ErrUnauthorized):
		return util.ResponseError{Status: http.StatusUnauthorized, Msg: service.ErrUnauthorized.Error()}
	case errors.Is(err, service.ErrPrincipalNotFound):
		return util.ResponseError{Status: http.StatusNotFound, Msg: service.ErrPrincipalNotFound.Error()}
	case errors.Is(err, service.ErrPrincipalExists):
		return util.ResponseError{Status: http.StatusConflict, Msg: service.ErrPrincipalExists.Error()}
	case errors.Is(err, service.ErrRateLimited):
		return util.ResponseError{Status: http.StatusTooManyRequests, Msg: service.ErrRateLimited.Error()}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code >= http.StatusInternalServerError {
			return util.ResponseError{Status: he.Code, Msg: internalErrorReason}
		}
		return util.ResponseError{Status: he.Code, Msg: fmt.Sprint(he.Message)}
	}

	return util.ResponseError{Status: http.StatusInternalServerError, Msg: internalErrorReason}
}
