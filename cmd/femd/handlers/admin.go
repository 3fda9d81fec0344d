package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	apierr "github.com/opencatalog/fem/pkg/api/errors"
	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/lifecycle/maintenance"
)

// VerifyAdminToken guards operator endpoints.
//
// It requires an "Authorization: Bearer <jwt>" header, signed HS256
// with key. Claims are not inspected beyond the registered ones.
func VerifyAdminToken(key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				return apierr.Unauthorized("an operator token is required", nil)
			}

			_, err := jwt.ParseWithClaims(
				raw, new(jwt.RegisteredClaims),
				func(token *jwt.Token) (interface{}, error) { return key, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			)
			if err != nil {
				return apierr.Unauthorized("the operator token is not valid", err)
			}

			return next(c)
		}
	}
}

// RetryRequestHandler re-enqueues one failed request.
func RetryRequestHandler(manager *maintenance.Manager, paramId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		id, err := strconv.ParseInt(c.Param(paramId), 10, 64)
		if err != nil {
			return apierr.BadRequest(`the request id should be an integer`, err)
		}

		retried, err := manager.Retry(c.Request().Context(), []int64{id})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		if retried == 0 {
			return apierr.Conflict(
				"the request is not in a retryable step",
				apierr.WithAdvice("only failed requests can be retried"),
			)
		}

		return c.JSON(http.StatusOK, map[string]int64{"retried": retried})
	}
}

// RetryAllErrorsHandler re-enqueues every failed request of one kind.
func RetryAllErrorsHandler(manager *maintenance.Manager, pageSize int) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		kind, err := domain.AsRequestKind(c.QueryParam("kind"))
		if err != nil {
			return apierr.BadRequest(
				`"kind" should be one of creation, update, deletion, copy, notification or reference`,
				err,
			)
		}

		retried, err := manager.RetryAllErrors(c.Request().Context(), kind, pageSize)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, map[string]int64{"retried": retried})
	}
}

// DeleteRequestHandler removes one request, unless it is in flight.
func DeleteRequestHandler(manager *maintenance.Manager, paramId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		id, err := strconv.ParseInt(c.Param(paramId), 10, 64)
		if err != nil {
			return apierr.BadRequest(`the request id should be an integer`, err)
		}

		deleted, err := manager.Delete(c.Request().Context(), []int64{id})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		if deleted == 0 {
			return apierr.NotFound()
		}

		return c.NoContent(http.StatusNoContent)
	}
}

// AbortRequestHandler forces one request into ERROR.
func AbortRequestHandler(manager *maintenance.Manager, paramId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		id, err := strconv.ParseInt(c.Param(paramId), 10, 64)
		if err != nil {
			return apierr.BadRequest(`the request id should be an integer`, err)
		}

		if err := manager.Abort(c.Request().Context(), id); err != nil {
			if errors.Is(err, domain.ErrMissing) {
				return apierr.NotFound()
			}
			if errors.Is(err, domain.ErrInvalidRequestStateChanging) {
				return apierr.Conflict(
					"the request is in flight",
					apierr.WithAdvice("wait for the remote answer, then retry or delete it"),
					apierr.WithError(err),
				)
			}
			return apierr.InternalServerError(err)
		}

		return c.NoContent(http.StatusNoContent)
	}
}
