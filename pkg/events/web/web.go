package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/events"
)

var ErrPublishFailed = errors.New("publishing acknowledgement failed")

// Web posts every acknowledgement to a list of subscriber URLs.
//
// If and only if all of the URLs return a 2xx status code, the publish
// succeeds. Otherwise, it fails.
type Web struct {
	URL []*url.URL
}

var _ events.Publisher = Web{}

func (w Web) sendRequest(ctx context.Context, u string, payload []byte) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, u, bytes.NewReader(payload),
	)
	if err != nil {
		return errors.Join(err, ErrPublishFailed)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Join(err, ErrPublishFailed)
	}
	defer resp.Body.Close()

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		return nil
	}

	ctype := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "text/") && !strings.Contains(ctype, "json") {
		return fmt.Errorf(
			"%w (%s %d, Content-Type: %s)",
			ErrPublishFailed, u, resp.StatusCode, ctype,
		)
	}

	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf(
		"%w (%s %d, Content-Type: %s): %s",
		ErrPublishFailed, u, resp.StatusCode, ctype, string(body),
	)
}

func (w Web) Publish(ctx context.Context, ack domain.RequestAck) error {
	buf, err := json.Marshal(ack)
	if err != nil {
		return err
	}

	for _, u := range w.URL {
		if err := w.sendRequest(ctx, u.String(), buf); err != nil {
			return err
		}
	}
	return nil
}
