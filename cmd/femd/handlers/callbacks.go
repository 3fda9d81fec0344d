package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/opencatalog/fem/pkg/api/errors"
	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/domain/notifier"
	"github.com/opencatalog/fem/pkg/domain/storage"
	"github.com/opencatalog/fem/pkg/lifecycle/callback"
	"github.com/opencatalog/fem/pkg/lifecycle/maintenance"
	"github.com/opencatalog/fem/pkg/lifecycle/notify"
)

// StorageResultHandler receives the storage service's answer for a
// group of file orders.
func StorageResultHandler(h *callback.StorageHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		event := storage.ResultEvent{}
		if err := c.Bind(&event); err != nil {
			return apierr.BadRequest("the body should be a storage result event", err)
		}
		if event.GroupId == "" {
			return apierr.BadRequest(`"groupId" is required`, nil)
		}

		if err := h.OnResult(c.Request().Context(), event); err != nil {
			return apierr.InternalServerError(err)
		}

		return c.NoContent(http.StatusNoContent)
	}
}

// NotifierAckHandler receives the notifier's answer for one request.
func NotifierAckHandler(h *notify.AckHandler) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		event := notifier.AckEvent{}
		if err := c.Bind(&event); err != nil {
			return apierr.BadRequest("the body should be a notifier acknowledgement", err)
		}
		if event.RequestId == "" {
			return apierr.BadRequest(`"requestId" is required`, nil)
		}

		if err := h.OnAck(c.Request().Context(), event); err != nil {
			return apierr.InternalServerError(err)
		}

		return c.NoContent(http.StatusNoContent)
	}
}

// DisseminationAckHandler records that a feature's dissemination has
// completed downstream and releases deletions parked on it.
func DisseminationAckHandler(manager *maintenance.Manager, paramUrn string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		urn, err := domain.ParseURN(c.Param(paramUrn))
		if err != nil {
			return apierr.BadRequest(`the path parameter should be a urn`, err)
		}

		woken, err := manager.AckDissemination(c.Request().Context(), urn)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, map[string]int64{"released": woken})
	}
}
