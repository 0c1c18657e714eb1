package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp       time.Time
	UserID          string
	Subject         string
	Action          string
	RequestingParty string
	Decision        string
	Reason          string
}

// Audit event actions.
const (
	ActionCredentialIssued   = "credential_issued"
	ActionCredentialAccepted = "credential_accepted"
	ActionCredentialDenied   = "credential_denied"
	ActionAffiliationRequest = "affiliation_requested"
	ActionAffiliationRespond = "affiliation_responded"
	ActionAccessRequested    = "access_requested"
	ActionAccessResponded    = "access_responded"
	ActionDocumentVerified   = "document_verified"
	ActionDocumentViewed     = "document_viewed"
)

// Audit event decisions.
const (
	DecisionAccepted = "accepted"
	DecisionDenied   = "denied"
	DecisionGranted  = "granted"
	DecisionRejected = "rejected"
	DecisionMatched  = "matched"
	DecisionNoMatch  = "no_match"
)
