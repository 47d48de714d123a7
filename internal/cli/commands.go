package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ashureev/pitch-tank/internal/domain"
	"github.com/ashureev/pitch-tank/internal/mood"
	"github.com/ashureev/pitch-tank/internal/persona"
	"github.com/spf13/cobra"
)

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the built-in investor personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := map[string]bool{}
			for _, id := range persona.DefaultIDs {
				enabled[id] = true
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTITLE\tDEFAULT\tVOICE")
			for _, id := range persona.BuiltinIDs() {
				p, _ := persona.Lookup(id)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Title, yesNo(enabled[id]), yesNo(p.VoiceID != ""))
			}
			return tw.Flush()
		},
	}
}

func newSessionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "session <id>",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			session, err := repo.GetSession(ctx, args[0])
			if err != nil {
				return err
			}
			if session == nil {
				return fmt.Errorf("session %q not found", args[0])
			}
			turns, err := repo.ListSessionTurns(ctx, session.ID)
			if err != nil {
				return err
			}
			summary, err := repo.GetSummary(ctx, session.ID)
			if err != nil {
				return err
			}
			writeTranscript(cmd.OutOrStdout(), session, turns, summary)
			return nil
		},
	}
}

func writeTranscript(w io.Writer, session *domain.PitchSession, turns map[string][]domain.TurnRecord, summary *domain.Summary) {
	fmt.Fprintf(w, "Session %s (updated %s)\n", session.ID, session.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Pitch: %s\n", session.OriginalPitch)

	ids := make([]string, 0, len(turns))
	for _, id := range persona.BuiltinIDs() {
		if _, ok := turns[id]; ok {
			ids = append(ids, id)
		}
	}
	for id := range turns {
		if _, ok := persona.Lookup(id); !ok {
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		name := id
		if p, ok := persona.Lookup(id); ok {
			name = p.Name
		}
		fmt.Fprintf(w, "\n== %s ==\n", name)
		for _, rec := range turns[id] {
			fmt.Fprintf(w, "[%d] Entrepreneur: %s\n", rec.Index, rec.UserInput)
			fmt.Fprintf(w, "[%d] %s: %s\n", rec.Index, name, mood.Format(rec.PersonaResponse, rec.Mood))
		}
	}

	if summary != nil {
		fmt.Fprintf(w, "\n== Summary ==\n%s\n", strings.TrimSpace(summary.Text))
	}
}

func newMatchesCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List recorded matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			matches, err := repo.ListMatches(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(matches)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSESSION\tCOMPANY\tEMAIL\tSCORE\tCREATED")
			for _, m := range matches {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
					m.ID, m.SessionID, m.CompanyName, m.CompanyEmail, m.MatchScore, m.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matches as JSON")
	return cmd
}

func newPruneCmd(opts *options) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete sessions idle for longer than --older-than (matches are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			repo, err := opts.openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			deleted, err := repo.DeleteIdleSessions(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d session(s)\n", len(deleted))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "Idle age after which a session is deleted")
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
