package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStoreUnavailable means the inventory or settings store could not be reached.
	// It is never returned for a healthy store that simply has nothing to report.
	ErrStoreUnavailable = errors.New("inventory store unavailable")

	// ErrMalformedAcknowledgmentID is the sentinel wrapped by MalformedAcknowledgmentIDError.
	ErrMalformedAcknowledgmentID = errors.New("malformed acknowledgment id")

	// ErrPartialAcknowledgment is returned by Acknowledge when at least one id failed.
	ErrPartialAcknowledgment = errors.New("some alerts could not be acknowledged")

	// ErrSettingsWrite means the settings insert failed. Nothing was written.
	ErrSettingsWrite = errors.New("failed to save alert settings")

	// ErrNotificationsDisabled means email notifications are off or have no recipients.
	ErrNotificationsDisabled = errors.New("email notifications are not configured")

	ErrRecordNotFound = errors.New("inventory record not found")
)

// ValidationError lists every field problem found in an input.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// MalformedAcknowledgmentIDError reports an id that does not match <class>_<digits>.
type MalformedAcknowledgmentIDError struct {
	ID string
}

func (e *MalformedAcknowledgmentIDError) Error() string {
	return fmt.Sprintf("malformed acknowledgment id %q: expected <class>_<record id>", e.ID)
}

func (e *MalformedAcknowledgmentIDError) Unwrap() error { return ErrMalformedAcknowledgmentID }

// DispatchFailure is one recipient that could not be notified.
type DispatchFailure struct {
	Recipient string
	Err       error
}

// DispatchError aggregates per-recipient send failures. Recipients not listed were sent to.
type DispatchError struct {
	Failures []DispatchFailure
}

func (e *DispatchError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Recipient, f.Err))
	}
	return fmt.Sprintf("notification dispatch failed for %d recipient(s): %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *DispatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
