package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/opencatalog/fem/pkg/domain"
	"github.com/opencatalog/fem/pkg/domain/notifier"
)

type client struct {
	base   *url.URL
	client *http.Client
}

func New(base *url.URL, httpClient *http.Client) notifier.Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{base: base, client: httpClient}
}

func (c *client) Send(
	ctx context.Context, requestId string, message domain.NotificationMessage,
) error {
	buf, err := json.Marshal(struct {
		RequestId string                     `json:"requestId"`
		Message   domain.NotificationMessage `json:"message"`
	}{RequestId: requestId, Message: message})
	if err != nil {
		return err
	}

	endpoint := c.base.JoinPath("notify")
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint.String(), bytes.NewReader(buf),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		return nil
	}

	ctype := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "text/") && !strings.Contains(ctype, "json") {
		return fmt.Errorf(
			"notifier: %s %d (Content-Type: %s)",
			endpoint.String(), resp.StatusCode, ctype,
		)
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf(
		"notifier: %s %d: %s", endpoint.String(), resp.StatusCode, string(body),
	)
}
