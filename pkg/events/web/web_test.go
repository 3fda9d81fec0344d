package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/events/web"
	"github.com/opencatalog/fem/pkg/utils/try"
)

func ack() domain.RequestAck {
	return domain.RequestAck{
		Kind:      domain.KindCreation,
		RequestId: "req-1",
		Owner:     "tenant-a",
		State:     domain.Granted,
		Urn:       domain.NewURN("DATA", "tenant-a", "provider-1", 1),
		Date:      time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPublish(t *testing.T) {
	t.Run("it posts the acknowledgement to every subscriber", func(t *testing.T) {
		received := []domain.RequestAck{}
		handler := func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if ctype := r.Header.Get("Content-Type"); ctype != "application/json" {
				t.Errorf("unexpected content type: %s", ctype)
			}
			body := try.To(io.ReadAll(r.Body)).OrFatal(t)
			a := domain.RequestAck{}
			if err := json.Unmarshal(body, &a); err != nil {
				t.Fatal(err)
			}
			received = append(received, a)
			w.WriteHeader(http.StatusNoContent)
		}
		first := httptest.NewServer(http.HandlerFunc(handler))
		defer first.Close()
		second := httptest.NewServer(http.HandlerFunc(handler))
		defer second.Close()

		publisher := web.Web{URL: []*url.URL{
			try.To(url.Parse(first.URL)).OrFatal(t),
			try.To(url.Parse(second.URL)).OrFatal(t),
		}}

		if err := publisher.Publish(context.Background(), ack()); err != nil {
			t.Fatal(err)
		}

		if len(received) != 2 {
			t.Fatalf("both subscribers should receive the ack: %d", len(received))
		}
		for _, a := range received {
			if a.RequestId != "req-1" || a.State != domain.Granted {
				t.Errorf("unexpected ack: %+v", a)
			}
		}
	})

	t.Run("a non-2xx subscriber fails the publish", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "fake failure", http.StatusInternalServerError)
			},
		))
		defer server.Close()

		publisher := web.Web{URL: []*url.URL{
			try.To(url.Parse(server.URL)).OrFatal(t),
		}}

		err := publisher.Publish(context.Background(), ack())
		if !errors.Is(err, web.ErrPublishFailed) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("an unreachable subscriber fails the publish", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {},
		))
		server.Close() // already down

		publisher := web.Web{URL: []*url.URL{
			try.To(url.Parse(server.URL)).OrFatal(t),
		}}

		if err := publisher.Publish(context.Background(), ack()); err == nil {
			t.Error("an error is expected")
		}
	})

	t.Run("no subscribers means publishing succeeds trivially", func(t *testing.T) {
		publisher := web.Web{}
		if err := publisher.Publish(context.Background(), ack()); err != nil {
			t.Fatal(err)
		}
	})
}
