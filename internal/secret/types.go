package secret

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// VersionTagKey is the sink tag that records the source version a sink
// entry was last synchronized at.
const VersionTagKey = "version"

// SourceMetadata is the version metadata of one source secret.
type SourceMetadata struct {
	Identifier     string `json:"identifier"`
	CurrentVersion string `json:"current_version"`
}

// SourceValue is the full value of one source secret at a specific version.
type SourceValue struct {
	Identifier string            `json:"identifier"`
	Version    string            `json:"version"`
	Payload    map[string]string `json:"-"`
}

// SinkRecord is a sink entry as seen in a catalog snapshot.
//
// Name is the full "prefix/identifier" name; Handle is the backend's stable
// reference (an ARN for Secrets Manager).
type SinkRecord struct {
	Name          string `json:"name"`
	Handle        string `json:"handle"`
	SyncedVersion string `json:"synced_version"`
}

// Action is the decision taken for one identifier.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionSkip   Action = "SKIP"
)

// PlanEntry is one identifier's planned action.
//
// SourceVersion is the version read from source metadata during planning and
// is empty for CREATE entries, whose version comes from the fetched value.
type PlanEntry struct {
	Identifier    string `json:"identifier"`
	Name          string `json:"name"`
	Action        Action `json:"action"`
	Handle        string `json:"handle,omitempty"`
	SourceVersion string `json:"source_version,omitempty"`
	SyncedVersion string `json:"synced_version,omitempty"`
}

// Plan is the ordered set of actions for one run.
//
// Failed holds identifiers whose planning step (the metadata read) failed.
// They carry no action and are reported as errors by Apply.
type Plan struct {
	Prefix  string      `json:"prefix"`
	Entries []PlanEntry `json:"entries"`
	Failed  []ItemError `json:"failed,omitempty"`
}

// Count returns the number of entries with the given action.
func (p *Plan) Count(action Action) int {
	n := 0
	for _, e := range p.Entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// ItemError records the failure of a single identifier.
type ItemError struct {
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// Result aggregates the outcomes of applying a plan.
type Result struct {
	Created []SinkRecord `json:"created"`
	Updated []SinkRecord `json:"updated"`
	Skipped []string     `json:"skipped,omitempty"`
	Errors  []ItemError  `json:"errors"`
}

// Status returns StatusError if any identifier failed, StatusOK otherwise.
func (r *Result) Status() Status {
	if len(r.Errors) > 0 {
		return StatusError
	}
	return StatusOK
}

// Status is the overall outcome of a run.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// SinkName returns the sink name for an identifier under prefix. The
// identifier's bytes are kept as listed by the source.
func SinkName(prefix, identifier string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + identifier
}

// SinkPrefix returns the name prefix shared by every sink entry under prefix.
func SinkPrefix(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/"
}

// LookalikeKey returns the NFC form of identifier. Identifiers with the same
// key render identically but name different sink entries.
func LookalikeKey(identifier string) string {
	return norm.NFC.String(identifier)
}
