package models

// Status represents the lifecycle state of a credential.
//
// The machine is deliberately small: issued is the only initial state, and
// accepted/denied are terminal. A credential transitions exactly once, and
// only by its holder.
type Status string

const (
	StatusIssued   Status = "issued"
	StatusAccepted Status = "accepted"
	StatusDenied   Status = "denied"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return s == StatusIssued || s == StatusAccepted || s == StatusDenied
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDenied
}

// CanTransitionTo reports whether the machine allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusIssued && next.IsTerminal()
}
