package domain

import "time"

// RequestAck is the acknowledgement published back to a request's owner
// when registration settles its fate, and again when processing ends.
type RequestAck struct {
	Kind      RequestKind  `json:"kind"`
	RequestId string       `json:"requestId"`
	Owner     string       `json:"owner"`
	State     RequestState `json:"state"`
	Urn       URN          `json:"urn,omitempty"`
	Errors    []string     `json:"errors,omitempty"`
	Date      time.Time    `json:"date"`
}

// DenyAck builds the DENIED acknowledgement of event, carrying causes.
func DenyAck(event RequestEvent, now time.Time, causes ...string) RequestAck {
	return RequestAck{
		Kind:      event.Kind,
		RequestId: event.RequestId,
		Owner:     event.Owner,
		State:     Denied,
		Errors:    causes,
		Date:      now,
	}
}

// GrantAck builds the GRANTED acknowledgement of event.
func GrantAck(event RequestEvent, now time.Time) RequestAck {
	return RequestAck{
		Kind:      event.Kind,
		RequestId: event.RequestId,
		Owner:     event.Owner,
		State:     Granted,
		Date:      now,
	}
}

// NotificationAction says what happened to the feature a notification
// message is about.
type NotificationAction string

const (
	ActionCreated NotificationAction = "CREATED"
	ActionUpdated NotificationAction = "UPDATED"
	ActionDeleted NotificationAction = "DELETED"

	// ActionBroadcast carries a feature payload as-is, for notification
	// requests which relay external content.
	ActionBroadcast NotificationAction = "BROADCAST"
)

// NotificationMessage is what the notifier sends to downstream consumers.
type NotificationMessage struct {
	Action       NotificationAction `json:"action"`
	Urn          URN                `json:"urn"`
	Feature      *Feature           `json:"feature,omitempty"`
	SessionOwner string             `json:"sessionOwner"`
	Session      string             `json:"session"`
}
