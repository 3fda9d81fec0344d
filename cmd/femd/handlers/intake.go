package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/opencatalog/fem/pkg/api/errors"
	"github.com/opencatalog/fem/pkg/domain"
)

// Registrar is the intake side of the lifecycle engine.
type Registrar interface {
	Register(ctx context.Context, events []domain.RequestEvent) ([]domain.RequestAck, error)
}

// IntakeHandler accepts a batch of request events of one kind.
//
// The body is a JSON array of events (a single object is accepted as a
// batch of one). Whatever kind the payload claims, the endpoint's kind
// wins. The response carries one acknowledgement per settled event.
func IntakeHandler(registrar Registrar, kind domain.RequestKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		events := []domain.RequestEvent{}
		if err := c.Bind(&events); err != nil {
			single := domain.RequestEvent{}
			if err := c.Bind(&single); err != nil {
				return apierr.BadRequest(
					"the body should be a request event or an array of them", err,
				)
			}
			events = append(events, single)
		}
		if len(events) == 0 {
			return apierr.BadRequest("the batch is empty", nil)
		}

		for i := range events {
			events[i].Kind = kind
		}

		acks, err := registrar.Register(c.Request().Context(), events)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, acks)
	}
}
