package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RequestKind discriminates what a request does to the catalog.
type RequestKind string

const (
	KindCreation     RequestKind = "creation"
	KindUpdate       RequestKind = "update"
	KindDeletion     RequestKind = "deletion"
	KindCopy         RequestKind = "copy"
	KindNotification RequestKind = "notification"
	KindReference    RequestKind = "reference"
)

// Kinds returns all request kinds, in pipeline intake order.
func Kinds() []RequestKind {
	return []RequestKind{
		KindCreation, KindUpdate, KindDeletion,
		KindCopy, KindNotification, KindReference,
	}
}

func AsRequestKind(s string) (RequestKind, error) {
	switch s {
	case string(KindCreation):
		return KindCreation, nil
	case string(KindUpdate):
		return KindUpdate, nil
	case string(KindDeletion):
		return KindDeletion, nil
	case string(KindCopy):
		return KindCopy, nil
	case string(KindNotification):
		return KindNotification, nil
	case string(KindReference):
		return KindReference, nil
	default:
		return "", fmt.Errorf("'%s' is not a RequestKind", s)
	}
}

func (k RequestKind) String() string {
	return string(k)
}

// RequestState is the coarse outcome of a request.
type RequestState string

const (
	Granted RequestState = "GRANTED"
	Denied  RequestState = "DENIED"
	Error   RequestState = "ERROR"
	Success RequestState = "SUCCESS"
)

func (s RequestState) String() string {
	return string(s)
}

// RequestStep is the fine-grained pipeline position of a request,
// distinct from its RequestState.
type RequestStep string

const (
	// Registered, waiting for a scheduler pass (and for its
	// settling delay to elapse).
	StepLocalDelayed RequestStep = "LOCAL_DELAYED"

	// Picked by a scheduler pass, owned by a processing batch.
	StepLocalScheduled RequestStep = "LOCAL_SCHEDULED"

	// Processed locally, waiting to be sent to the notifier.
	StepLocalToBeNotified RequestStep = "LOCAL_TO_BE_NOTIFIED"

	// Failed on local logic (target missing, invalid transition, ...).
	StepLocalError RequestStep = "LOCAL_ERROR"

	// Files handed to the storage service; waiting for its callback.
	StepRemoteStorageRequested RequestStep = "REMOTE_STORAGE_REQUESTED"

	// File removal handed to the storage service; waiting for its callback.
	StepRemoteStorageDeletionRequested RequestStep = "REMOTE_STORAGE_DELETION_REQUESTED"

	// The storage service reported a failure for this request's group.
	StepRemoteStorageError RequestStep = "REMOTE_STORAGE_ERROR"

	// Notification handed to the notifier; waiting for its acknowledgement.
	StepRemoteNotificationRequested RequestStep = "REMOTE_NOTIFICATION_REQUESTED"

	// The notifier reported a failure for this request.
	StepRemoteNotificationError RequestStep = "REMOTE_NOTIFICATION_ERROR"

	// Deletion only: the target feature awaits an external dissemination
	// acknowledgement, deletion may not proceed yet.
	StepWaitingBlockingDissemination RequestStep = "WAITING_BLOCKING_DISSEMINATION"
)

func AsRequestStep(s string) (RequestStep, error) {
	for _, step := range []RequestStep{
		StepLocalDelayed, StepLocalScheduled, StepLocalToBeNotified,
		StepLocalError, StepRemoteStorageRequested,
		StepRemoteStorageDeletionRequested, StepRemoteStorageError,
		StepRemoteNotificationRequested, StepRemoteNotificationError,
		StepWaitingBlockingDissemination,
	} {
		if s == string(step) {
			return step, nil
		}
	}
	return "", fmt.Errorf("'%s' is not a RequestStep", s)
}

func (s RequestStep) String() string {
	return string(s)
}

// Retryable is true when a retry operation may pick requests at this step.
func (s RequestStep) Retryable() bool {
	switch s {
	case StepLocalError, StepRemoteStorageError, StepRemoteNotificationError:
		return true
	default:
		return false
	}
}

// Processing is true while the request is in flight to an external system.
// Requests at these steps cannot be deleted nor aborted into retry.
func (s RequestStep) Processing() bool {
	switch s {
	case StepLocalScheduled,
		StepRemoteStorageRequested,
		StepRemoteStorageDeletionRequested,
		StepRemoteNotificationRequested:
		return true
	default:
		return false
	}
}

// RetrySteps maps an error step back to the step a retried request
// re-enters the pipeline at.
func (s RequestStep) RetryStep() RequestStep {
	if s == StepRemoteNotificationError {
		return StepLocalToBeNotified
	}
	return StepLocalDelayed
}

// PriorityLevel ranks requests for scheduling; lower ordinal first.
type PriorityLevel int

const (
	PriorityHigh   PriorityLevel = 0
	PriorityNormal PriorityLevel = 1
	PriorityLow    PriorityLevel = 2
)

func (p PriorityLevel) String() string {
	switch p {
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return fmt.Sprintf("PriorityLevel(%d)", int(p))
	}
}

// FileUpdateMode selects how an update request reconciles file lists.
type FileUpdateMode string

const (
	// New files and locations are added, existing ones are preserved.
	ModeAppend FileUpdateMode = "APPEND"

	// The file list is rebuilt from the request: stored locations absent
	// from it are deletion-requested, staging locations are stored anew.
	ModeReplace FileUpdateMode = "REPLACE"
)

// StorageMetadata names one storage location files should end at.
type StorageMetadata struct {
	Storage string `json:"storage"`
}

// Metadata carries the per-request options and monitoring keys.
type Metadata struct {
	SessionOwner string            `json:"sessionOwner"`
	Session      string            `json:"session"`
	Storages     []StorageMetadata `json:"storages,omitempty"`
	Priority     PriorityLevel     `json:"priority"`

	// Override lets a creation supersede the previous version of the same
	// provider id (the superseded version gets deletion-requested).
	Override bool `json:"override,omitempty"`

	// UpdateIfExists reclassifies a creation whose target URN already
	// exists into an update, instead of denying it.
	UpdateIfExists bool `json:"updateIfExists,omitempty"`

	// Mode applies to update requests only. Empty means APPEND.
	Mode FileUpdateMode `json:"mode,omitempty"`

	// BlockingDissemination marks the created feature as awaiting an
	// external dissemination acknowledgement: until it arrives, deletion
	// requests on the feature are parked instead of executed.
	BlockingDissemination bool `json:"blockingDissemination,omitempty"`

	// Force lets a deletion ignore a pending blocking dissemination.
	Force bool `json:"force,omitempty"`
}

// HasStorages is true when at least one target storage location is set.
func (m Metadata) HasStorages() bool {
	return len(m.Storages) != 0
}

// RequestEvent is one raw incoming request, as submitted by a caller,
// before validation and registration.
type RequestEvent struct {
	Kind      RequestKind `json:"kind"`
	RequestId string      `json:"requestId"`
	Owner     string      `json:"owner"`
	Date      time.Time   `json:"date"`
	Metadata  Metadata    `json:"metadata"`

	// Feature payload for creation / update / notification.
	Feature *Feature `json:"feature,omitempty"`

	// Urn targets deletion / copy / notification of an existing feature.
	Urn URN `json:"urn,omitempty"`

	// Copy: which file (by checksum) gains which new location.
	Checksum      string `json:"checksum,omitempty"`
	TargetStorage string `json:"targetStorage,omitempty"`

	// Reference: which factory builds the feature, from which parameters.
	Factory    string          `json:"factory,omitempty"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// ProviderId of the event's payload, or "" when it has none.
func (e RequestEvent) ProviderId() string {
	if e.Feature == nil {
		return ""
	}
	return e.Feature.Id
}

// Request is one persisted lifecycle request.
type Request struct {
	// Id is owned by the store, assigned at persistence.
	Id int64

	Kind      RequestKind
	RequestId string
	Owner     string

	// RequestDate is the scheduling-fairness sort key. Retry bumps it to
	// "now" so that pagination over a moving target does not re-select
	// the same rows.
	RequestDate time.Time

	State RequestState
	Step  RequestStep

	// LastExecErrorStep remembers which step last failed, so a retried
	// request can skip work already done.
	LastExecErrorStep *RequestStep

	Priority PriorityLevel
	Errors   []string

	// GroupId correlates an in-flight storage operation back to this
	// request. Empty when nothing is outstanding.
	GroupId string

	Metadata Metadata

	Feature       *Feature
	Urn           URN
	Checksum      string
	TargetStorage string
	Factory       string
	Parameters    json.RawMessage
}

// ProviderId of the request payload, or "" when it has none.
func (r *Request) ProviderId() string {
	if r.Feature == nil {
		return ""
	}
	return r.Feature.Id
}

// MarkError records a failure: state becomes ERROR, the failed step is
// remembered for retry, and the causes are appended.
func (r *Request) MarkError(step RequestStep, causes ...string) {
	r.State = Error
	r.Step = step
	failed := step
	r.LastExecErrorStep = &failed
	r.Errors = append(r.Errors, causes...)
}

var (
	ErrMissing  = errors.New("missing")
	ErrTooMuch  = errors.New("found too much")
	ErrConflict = errors.New("conflict")

	ErrInvalidRequestStateChanging = errors.New("cannot change request state")

	// ErrUnknownFactory is returned when a reference request names a
	// feature factory nobody registered.
	ErrUnknownFactory = errors.New("unknown feature factory")
)

func NewErrInvalidRequestStateChanging(from, to RequestStep) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidRequestStateChanging, from, to)
}
