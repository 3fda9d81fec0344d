package domain

// SessionInfo identifies the monitoring session a request belongs to.
type SessionInfo struct {
	Owner   string `json:"sessionOwner"`
	Session string `json:"session"`
}

// SessionProperty is one monitored counter of a session.
type SessionProperty string

const (
	PropertyGrantedRequests SessionProperty = "grantedRequests"
	PropertyDeniedRequests  SessionProperty = "deniedRequests"
	PropertyErrorRequests   SessionProperty = "errorRequests"

	PropertyCreatedFeatures  SessionProperty = "createdFeatures"
	PropertyUpdatedFeatures  SessionProperty = "updatedFeatures"
	PropertyDeletedFeatures  SessionProperty = "deletedFeatures"
	PropertyCopiedFiles      SessionProperty = "copiedFiles"
	PropertyNotifiedFeatures SessionProperty = "notifiedFeatures"
	PropertyReferencedItems  SessionProperty = "referencedItems"
)

// OutcomeProperty maps a terminal request state to the session counter
// it increments at registration time.
func OutcomeProperty(state RequestState) (SessionProperty, bool) {
	switch state {
	case Granted:
		return PropertyGrantedRequests, true
	case Denied:
		return PropertyDeniedRequests, true
	case Error:
		return PropertyErrorRequests, true
	default:
		return "", false
	}
}

// SuccessProperty maps a request kind to the session counter it
// increments when it reaches SUCCESS.
func SuccessProperty(kind RequestKind) (SessionProperty, bool) {
	switch kind {
	case KindCreation:
		return PropertyCreatedFeatures, true
	case KindUpdate:
		return PropertyUpdatedFeatures, true
	case KindDeletion:
		return PropertyDeletedFeatures, true
	case KindCopy:
		return PropertyCopiedFiles, true
	case KindNotification:
		return PropertyNotifiedFeatures, true
	case KindReference:
		return PropertyReferencedItems, true
	default:
		return "", false
	}
}
