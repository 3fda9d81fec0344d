package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apierr "github.com/opencatalog/fem/pkg/api/errors"
	"github.com/opencatalog/fem/pkg/domain"
	reqdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/utils/slices"
	kstrings "github.com/opencatalog/fem/pkg/utils/strings"
)

// Detail is the API shape of one lifecycle request.
type Detail struct {
	Id                int64                `json:"id"`
	Kind              domain.RequestKind   `json:"kind"`
	RequestId         string               `json:"requestId"`
	Owner             string               `json:"owner"`
	RequestDate       time.Time            `json:"requestDate"`
	State             domain.RequestState  `json:"state"`
	Step              domain.RequestStep   `json:"step"`
	LastExecErrorStep *domain.RequestStep  `json:"lastExecErrorStep,omitempty"`
	Priority          domain.PriorityLevel `json:"priority"`
	Errors            []string             `json:"errors,omitempty"`
	Urn               string               `json:"urn,omitempty"`
	SessionOwner      string               `json:"sessionOwner,omitempty"`
	Session           string               `json:"session,omitempty"`
}

func ComposeDetail(r domain.Request) Detail {
	urn := ""
	if !r.Urn.IsZero() {
		urn = r.Urn.String()
	} else if r.Feature != nil && !r.Feature.Urn.IsZero() {
		urn = r.Feature.Urn.String()
	}

	return Detail{
		Id:                r.Id,
		Kind:              r.Kind,
		RequestId:         r.RequestId,
		Owner:             r.Owner,
		RequestDate:       r.RequestDate,
		State:             r.State,
		Step:              r.Step,
		LastExecErrorStep: r.LastExecErrorStep,
		Priority:          r.Priority,
		Errors:            r.Errors,
		Urn:               urn,
		SessionOwner:      r.Metadata.SessionOwner,
		Session:           r.Metadata.Session,
	}
}

// FindRequestHandler searches registered requests.
//
// Query parameters: kind, state (comma separated), step (comma
// separated), owner, requestId, sessionOwner, session, offset, limit.
func FindRequestHandler(dbRequest reqdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		filters := reqdb.Filters{
			Owner:        c.QueryParam("owner"),
			RequestId:    c.QueryParam("requestId"),
			SessionOwner: c.QueryParam("sessionOwner"),
			Session:      c.QueryParam("session"),
		}

		if kind := c.QueryParam("kind"); kind != "" {
			k, err := domain.AsRequestKind(kind)
			if err != nil {
				return apierr.BadRequest(
					`"kind" should be one of creation, update, deletion, copy, notification or reference`,
					err,
				)
			}
			filters.Kind = k
		}
		for _, s := range kstrings.SplitIfNotEmpty(c.QueryParam("state"), ",") {
			filters.States = append(filters.States, domain.RequestState(s))
		}
		for _, s := range kstrings.SplitIfNotEmpty(c.QueryParam("step"), ",") {
			step, err := domain.AsRequestStep(s)
			if err != nil {
				return apierr.BadRequest(`"step" holds an unknown step name`, err)
			}
			filters.Steps = append(filters.Steps, step)
		}

		page := reqdb.Page{}
		if offset := c.QueryParam("offset"); offset != "" {
			n, err := strconv.Atoi(offset)
			if err != nil || n < 0 {
				return apierr.BadRequest(`"offset" should be a non-negative integer`, err)
			}
			page.Offset = n
		}
		if limit := c.QueryParam("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n <= 0 {
				return apierr.BadRequest(`"limit" should be a positive integer`, err)
			}
			page.Limit = n
		}

		found, err := dbRequest.Find(c.Request().Context(), filters, page)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, slices.Map(found, ComposeDetail))
	}
}

// GetRequestHandler retrieves one request by id.
func GetRequestHandler(dbRequest reqdb.Interface, paramId string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		id, err := strconv.ParseInt(c.Param(paramId), 10, 64)
		if err != nil {
			return apierr.BadRequest(`the request id should be an integer`, err)
		}

		found, err := dbRequest.Get(c.Request().Context(), []int64{id})
		if err != nil {
			return apierr.InternalServerError(err)
		}
		r, ok := found[id]
		if !ok {
			return apierr.NotFound()
		}

		return c.JSON(http.StatusOK, ComposeDetail(r))
	}
}
