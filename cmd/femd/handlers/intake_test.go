package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/opencatalog/fem/cmd/femd/handlers"
	httptestutil "github.com/opencatalog/fem/internal/testutils/http"
	"github.com/opencatalog/fem/pkg/domain"
	reqmock "github.com/opencatalog/fem/pkg/domain/request/db/mock"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

type registrarMock struct {
	impl  func(ctx context.Context, events []domain.RequestEvent) ([]domain.RequestAck, error)
	calls [][]domain.RequestEvent
}

func (m *registrarMock) Register(
	ctx context.Context, events []domain.RequestEvent,
) ([]domain.RequestAck, error) {
	m.calls = append(m.calls, events)
	if m.impl != nil {
		return m.impl(ctx, events)
	}
	panic(errors.New("it should not be called"))
}

func grantEverything(_ context.Context, events []domain.RequestEvent) ([]domain.RequestAck, error) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	return slices.Map(events, func(e domain.RequestEvent) domain.RequestAck {
		return domain.GrantAck(e, now)
	}), nil
}

func TestIntakeHandler(t *testing.T) {
	t.Run("when it receives a batch, it acknowledges each event", func(t *testing.T) {
		registrar := &registrarMock{impl: grantEverything}
		testee := handlers.IntakeHandler(registrar, domain.KindCreation)

		e := echo.New()
		ctx, resp := httptestutil.Post(
			e, "/api/creations/",
			strings.NewReader(`[
				{"requestId": "req-1", "owner": "tenant-a", "feature": {"id": "provider-1"}},
				{"requestId": "req-2", "owner": "tenant-a", "feature": {"id": "provider-2"}}
			]`),
			httptestutil.ContentType("application/json"),
		)

		if err := testee(ctx); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusOK {
			t.Errorf("status = %d, expected %d", resp.Code, http.StatusOK)
		}

		if len(registrar.calls) != 1 {
			t.Fatal("the registrar should be called once")
		}
		for _, e := range registrar.calls[0] {
			if e.Kind != domain.KindCreation {
				t.Errorf("the endpoint's kind should win: %s", e.Kind)
			}
		}

		acks := []domain.RequestAck{}
		if err := json.Unmarshal(resp.Body.Bytes(), &acks); err != nil {
			t.Fatal(err)
		}
		if len(acks) != 2 {
			t.Fatalf("unexpected acks: %+v", acks)
		}
		for _, a := range acks {
			if a.State != domain.Granted {
				t.Errorf("unexpected state: %s", a.State)
			}
		}
	})

	t.Run("when it receives a single object, it is a batch of one", func(t *testing.T) {
		registrar := &registrarMock{impl: grantEverything}
		testee := handlers.IntakeHandler(registrar, domain.KindDeletion)

		e := echo.New()
		ctx, resp := httptestutil.Post(
			e, "/api/deletions/",
			strings.NewReader(`{"requestId": "req-1", "owner": "tenant-a"}`),
			httptestutil.ContentType("application/json"),
		)

		if err := testee(ctx); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusOK {
			t.Errorf("status = %d, expected %d", resp.Code, http.StatusOK)
		}
		if len(registrar.calls) != 1 || len(registrar.calls[0]) != 1 {
			t.Fatalf("unexpected calls: %+v", registrar.calls)
		}
	})

	t.Run("when the body is empty, it responds 400", func(t *testing.T) {
		registrar := &registrarMock{impl: grantEverything}
		testee := handlers.IntakeHandler(registrar, domain.KindCreation)

		e := echo.New()
		ctx, _ := httptestutil.Post(
			e, "/api/creations/", strings.NewReader(`[]`),
			httptestutil.ContentType("application/json"),
		)

		err := testee(ctx)
		if err == nil {
			t.Fatal("an error is expected")
		}
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusBadRequest {
			t.Errorf("unexpected error: %v", err)
		}
		if len(registrar.calls) != 0 {
			t.Error("the registrar should not be called")
		}
	})

	t.Run("when the body is not json, it responds 400", func(t *testing.T) {
		registrar := &registrarMock{impl: grantEverything}
		testee := handlers.IntakeHandler(registrar, domain.KindCreation)

		e := echo.New()
		ctx, _ := httptestutil.Post(
			e, "/api/creations/", strings.NewReader(`...broken...`),
			httptestutil.ContentType("application/json"),
		)

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusBadRequest {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("when the registrar fails, it responds 500", func(t *testing.T) {
		registrar := &registrarMock{
			impl: func(_ context.Context, _ []domain.RequestEvent) ([]domain.RequestAck, error) {
				return nil, errors.New("fake database error")
			},
		}
		testee := handlers.IntakeHandler(registrar, domain.KindCreation)

		e := echo.New()
		ctx, _ := httptestutil.Post(
			e, "/api/creations/",
			strings.NewReader(`{"requestId": "req-1", "owner": "tenant-a"}`),
			httptestutil.ContentType("application/json"),
		)

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusInternalServerError {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestGetRequestHandler(t *testing.T) {
	t.Run("when the request exists, it responds its detail", func(t *testing.T) {
		mckRequests := reqmock.NewRequestInterface()
		urn := domain.NewURN("DATA", "tenant-a", "provider-1", 1)
		mckRequests.Impl.Get = func(_ context.Context, ids []int64) (map[int64]domain.Request, error) {
			return map[int64]domain.Request{7: {
				Id: 7, Kind: domain.KindCreation, RequestId: "req-1",
				Owner: "tenant-a", State: domain.Success,
				Step: domain.StepRemoteNotificationRequested, Urn: urn,
			}}, nil
		}
		testee := handlers.GetRequestHandler(mckRequests, "requestId")

		e := echo.New()
		ctx, resp := httptestutil.Get(e, "/api/requests/7/")
		ctx.SetParamNames("requestId")
		ctx.SetParamValues("7")

		if err := testee(ctx); err != nil {
			t.Fatal(err)
		}

		detail := handlers.Detail{}
		if err := json.Unmarshal(resp.Body.Bytes(), &detail); err != nil {
			t.Fatal(err)
		}
		if detail.Id != 7 || detail.Urn != urn.String() || detail.State != domain.Success {
			t.Errorf("unexpected detail: %+v", detail)
		}
	})

	t.Run("when the request does not exist, it responds 404", func(t *testing.T) {
		mckRequests := reqmock.NewRequestInterface()
		mckRequests.Impl.Get = func(_ context.Context, _ []int64) (map[int64]domain.Request, error) {
			return map[int64]domain.Request{}, nil
		}
		testee := handlers.GetRequestHandler(mckRequests, "requestId")

		e := echo.New()
		ctx, _ := httptestutil.Get(e, "/api/requests/7/")
		ctx.SetParamNames("requestId")
		ctx.SetParamValues("7")

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusNotFound {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("when the id is not an integer, it responds 400", func(t *testing.T) {
		testee := handlers.GetRequestHandler(reqmock.NewRequestInterface(), "requestId")

		e := echo.New()
		ctx, _ := httptestutil.Get(e, "/api/requests/seven/")
		ctx.SetParamNames("requestId")
		ctx.SetParamValues("seven")

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusBadRequest {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
