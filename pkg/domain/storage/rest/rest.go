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

	"github.com/opencatalog/fem/pkg/domain/storage"
)

// client talks to the storage service over its REST API.
type client struct {
	base   *url.URL
	client *http.Client
}

func New(base *url.URL, httpClient *http.Client) storage.Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{base: base, client: httpClient}
}

func (c *client) post(ctx context.Context, path string, payload any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := c.base.JoinPath(path)
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
			"storage service: %s %d (Content-Type: %s)",
			endpoint.String(), resp.StatusCode, ctype,
		)
	}
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf(
		"storage service: %s %d: %s",
		endpoint.String(), resp.StatusCode, string(body),
	)
}

func (c *client) Store(ctx context.Context, req storage.StoreRequest) error {
	return c.post(ctx, "store", req)
}

func (c *client) Delete(ctx context.Context, req storage.DeleteRequest) error {
	return c.post(ctx, "delete", req)
}

func (c *client) Cancel(ctx context.Context, groupIds []string) error {
	return c.post(ctx, "cancel", struct {
		GroupIds []string `json:"groupIds"`
	}{GroupIds: groupIds})
}
