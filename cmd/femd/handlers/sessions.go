package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/opencatalog/fem/pkg/api/errors"
	"github.com/opencatalog/fem/pkg/domain"
	sessiondb "github.com/opencatalog/fem/pkg/domain/session/db"
)

// GetSessionHandler returns the counters of one ingestion session.
func GetSessionHandler(dbSession sessiondb.Interface, paramOwner, paramSession string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		info := domain.SessionInfo{
			Owner:   c.Param(paramOwner),
			Session: c.Param(paramSession),
		}
		if info.Owner == "" || info.Session == "" {
			return apierr.BadRequest("the session owner and name are required", nil)
		}

		counters, err := dbSession.Get(c.Request().Context(), info)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, counters)
	}
}
