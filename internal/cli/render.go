package cli

import (
	"fmt"
	"io"

	"github.com/roach88/vaultsync/internal/engine"
	"github.com/roach88/vaultsync/internal/secret"
)

// renderSummary writes the text form of a run summary.
func renderSummary(w io.Writer, s *engine.Summary) {
	fmt.Fprintf(w, "Run %s: %s\n", s.RunID, s.Status)
	fmt.Fprintln(w, s.String())
	if s.PreflightFailed() {
		return
	}
	fmt.Fprintf(w, "Secrets unchanged: %d\n", s.SkippedCount)
	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "Failed (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Identifier, e.Message)
		}
	}
	if s.NotificationError != "" {
		fmt.Fprintf(w, "Notification not delivered: %s\n", s.NotificationError)
	}
}

// renderPlan writes the text form of a plan, one line per identifier.
func renderPlan(w io.Writer, p *secret.Plan) {
	fmt.Fprintf(w, "Plan for %q: %d to create, %d to update, %d unchanged, %d failed\n",
		p.Prefix,
		p.Count(secret.ActionCreate),
		p.Count(secret.ActionUpdate),
		p.Count(secret.ActionSkip),
		len(p.Failed),
	)
	for _, e := range p.Entries {
		switch e.Action {
		case secret.ActionCreate:
			fmt.Fprintf(w, "  create  %s\n", e.Name)
		case secret.ActionUpdate:
			synced := e.SyncedVersion
			if synced == "" {
				synced = "untagged"
			}
			fmt.Fprintf(w, "  update  %s (%s -> %s)\n", e.Name, synced, e.SourceVersion)
		case secret.ActionSkip:
			fmt.Fprintf(w, "  skip    %s (%s)\n", e.Name, e.SourceVersion)
		}
	}
	for _, f := range p.Failed {
		fmt.Fprintf(w, "  failed  %s: %s\n", f.Identifier, f.Message)
	}
}
