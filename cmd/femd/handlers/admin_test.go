package handlers_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/opencatalog/fem/cmd/femd/handlers"
	httptestutil "github.com/opencatalog/fem/internal/testutils/http"
	"github.com/opencatalog/fem/pkg/utils/try"
)

func operatorToken(t *testing.T, key []byte, method jwt.SigningMethod) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	return try.To(token.SignedString(key)).OrFatal(t)
}

func TestVerifyAdminToken(t *testing.T) {
	key := []byte("fake-signing-key")

	next := func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}
	testee := handlers.VerifyAdminToken(key)(next)

	t.Run("when the token is valid, it lets the request through", func(t *testing.T) {
		e := echo.New()
		ctx, resp := httptestutil.Put(
			e, "/api/requests/1/retry/", nil,
			httptestutil.WithHeader("Authorization", "Bearer "+operatorToken(t, key, jwt.SigningMethodHS256)),
		)

		if err := testee(ctx); err != nil {
			t.Fatal(err)
		}
		if resp.Code != http.StatusNoContent {
			t.Errorf("status = %d, expected %d", resp.Code, http.StatusNoContent)
		}
	})

	t.Run("when the header is missing, it responds 401", func(t *testing.T) {
		e := echo.New()
		ctx, _ := httptestutil.Put(e, "/api/requests/1/retry/", nil)

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusUnauthorized {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("when the token is signed with another key, it responds 401", func(t *testing.T) {
		e := echo.New()
		ctx, _ := httptestutil.Put(
			e, "/api/requests/1/retry/", nil,
			httptestutil.WithHeader(
				"Authorization",
				"Bearer "+operatorToken(t, []byte("another-key"), jwt.SigningMethodHS256),
			),
		)

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusUnauthorized {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("when the token uses another signing method, it responds 401", func(t *testing.T) {
		e := echo.New()
		ctx, _ := httptestutil.Put(
			e, "/api/requests/1/retry/", nil,
			httptestutil.WithHeader(
				"Authorization",
				"Bearer "+operatorToken(t, key, jwt.SigningMethodHS512),
			),
		)

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusUnauthorized {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("when the token is expired, it responds 401", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "operator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		})
		raw := try.To(token.SignedString(key)).OrFatal(t)

		e := echo.New()
		ctx, _ := httptestutil.Put(
			e, "/api/requests/1/retry/", nil,
			httptestutil.WithHeader("Authorization", "Bearer "+raw),
		)

		err := testee(ctx)
		httperr := new(echo.HTTPError)
		if !errors.As(err, &httperr) || httperr.Code != http.StatusUnauthorized {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
