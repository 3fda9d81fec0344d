package domain

import (
	"errors"
	"fmt"
)

type LoopType string

const (
	// one processing loop per request kind
	CreationLoop     LoopType = "creation"
	UpdateLoop       LoopType = "update"
	DeletionLoop     LoopType = "deletion"
	CopyLoop         LoopType = "copy"
	NotificationLoop LoopType = "notification"
	ReferenceLoop    LoopType = "reference"

	// Notifying drains LOCAL_TO_BE_NOTIFIED requests into the notifier.
	Notifying LoopType = "notifying"

	// Sweeping requeues requests abandoned by a crashed pass.
	Sweeping LoopType = "sweeping"
)

func (lt LoopType) String() string {
	return string(lt)
}

func (lt LoopType) IsKnown() bool {
	switch lt {
	case CreationLoop, UpdateLoop, DeletionLoop, CopyLoop,
		NotificationLoop, ReferenceLoop, Notifying, Sweeping:
		return true
	default:
		return false
	}
}

// ProcessedKind is the request kind a processing loop handles,
// or ("", false) for loops which are not processing loops.
func (lt LoopType) ProcessedKind() (RequestKind, bool) {
	switch lt {
	case CreationLoop:
		return KindCreation, true
	case UpdateLoop:
		return KindUpdate, true
	case DeletionLoop:
		return KindDeletion, true
	case CopyLoop:
		return KindCopy, true
	case NotificationLoop:
		return KindNotification, true
	case ReferenceLoop:
		return KindReference, true
	default:
		return "", false
	}
}

func AsLoopType(s string) (LoopType, error) {
	l := LoopType(s)
	if l.IsKnown() {
		return l, nil
	}
	return l, fmt.Errorf(`%w: "%s"`, ErrUnknownLoopType, s)
}

var ErrUnknownLoopType = errors.New("unknown loop type")
