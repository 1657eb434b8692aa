package engine

import "fmt"

// ValidationError reports a missing or malformed input field.  The
// call is rejected with no state change and no audit write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports that a create would overlap an existing active
// protection.  Existing carries the colliding record's summary so the
// operator can resolve the conflict without another query.
type ConflictError struct {
	Existing Match
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"a similar active protection already exists: manager %s, partner %s, sku %s, %s m², expires %s",
		e.Existing.Manager, orDash(e.Existing.Partner), e.Existing.SKU,
		formatArea(e.Existing.AreaM2), e.Existing.ExpiresAt.Format("2006-01-02"),
	)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// QuotaExceededError reports a refused self-service extension.  The
// refusal is first-class history: an audit event is written even though
// the mutation is rejected.  NeedsAdmin tells the client to escalate.
type QuotaExceededError struct {
	Count      int
	NeedsAdmin bool
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("self-service extension limit reached (%d); ask an administrator", e.Count)
}

// StateError reports an operation attempted against a protection whose
// status does not admit it.  Terminal protections reject every
// mutating operation this way, with no audit write.
type StateError struct {
	Op     string
	Status string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s a protection in status %q", e.Op, e.Status)
}
