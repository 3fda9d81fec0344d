package notifier

import (
	"context"

	"github.com/opencatalog/fem/pkg/domain"
)

// AckEvent is the notifier's asynchronous answer for one message,
// correlated by the request it was sent for.
type AckEvent struct {
	RequestId string `json:"requestId"`
	Success   bool   `json:"success"`
	Cause     string `json:"cause,omitempty"`
}

type Client interface {
	// Send hands one message to the notifier. The answer comes later as
	// an AckEvent on the callback endpoint, carrying requestId.
	Send(ctx context.Context, requestId string, message domain.NotificationMessage) error
}
