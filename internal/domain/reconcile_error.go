package domain

import "fmt"

// MalformedEventError reports an inbound payload that cannot be turned into a payment event.
// It is never retryable.
type MalformedEventError struct {
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed event: %s: %v", e.Reason, e.Err)
	}
	return "malformed event: " + e.Reason
}

func (e *MalformedEventError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidArgument
}

// RecordNotFoundError means no local payment correlates to the provider id.
type RecordNotFoundError struct {
	ProviderPaymentID string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("no payment record for provider payment %q", e.ProviderPaymentID)
}

func (e *RecordNotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateRecordError is an integrity violation: the provider id is bound to more than one record.
type DuplicateRecordError struct {
	ProviderPaymentID string
	Count             int
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("provider payment %q is bound to %d records", e.ProviderPaymentID, e.Count)
}

// TransitionConflictError describes a replayed or rejected transition. The reconciler logs it and
// reports transitioned=false instead of returning it.
type TransitionConflictError struct {
	RecordID  string
	Current   string
	Requested string
	Replay    bool
}

func (e *TransitionConflictError) Error() string {
	if e.Replay {
		return fmt.Sprintf("payment %s already %s", e.RecordID, e.Current)
	}
	return fmt.Sprintf("payment %s is terminal (%s); refusing transition to %s", e.RecordID, e.Current, e.Requested)
}

// SideEffectError wraps a failed notification or audit append. It is logged, never propagated.
type SideEffectError struct {
	Effect   string
	RecordID string
	Err      error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("side effect %s for payment %s: %v", e.Effect, e.RecordID, e.Err)
}

func (e *SideEffectError) Unwrap() error { return e.Err }
