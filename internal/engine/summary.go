package engine

import (
	"fmt"

	"github.com/roach88/vaultsync/internal/secret"
)

// Summary is the structured outcome of one Run.
//
// Counts are always populated for runs that got past the pre-flight listing,
// regardless of Status.
type Summary struct {
	RunID             string             `json:"run_id"`
	Status            secret.Status      `json:"status"`
	CreatedCount      int                `json:"created_count"`
	UpdatedCount      int                `json:"updated_count"`
	SkippedCount      int                `json:"skipped_count"`
	Message           string             `json:"message,omitempty"`
	Errors            []secret.ItemError `json:"errors,omitempty"`
	NotificationError string             `json:"notification_error,omitempty"`

	// Result is the full per-identifier result; nil after a pre-flight failure.
	Result *secret.Result `json:"-"`

	// Err is the run-fatal error; nil unless pre-flight listing failed.
	Err error `json:"-"`
}

// PreflightFailed reports whether the run aborted before planning.
func (s *Summary) PreflightFailed() bool {
	return s.Err != nil
}

// String renders the summary the way operators read it in logs.
func (s *Summary) String() string {
	if s.PreflightFailed() {
		return fmt.Sprintf("Reconciliation failed: %s", s.Message)
	}
	return fmt.Sprintf("Secrets created: %d, Secrets updated: %d", s.CreatedCount, s.UpdatedCount)
}
