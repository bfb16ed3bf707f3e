package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	"github.com/noah-isme/tutor-match-api/pkg/export"
)

func newAuditCmd(env *cliEnv) *cobra.Command {
	var (
		out    string
		since  string
		action string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Export audit entries as CSV, newest first",
		Long: `Example:
  matchctl audit --since 2025-10-01T00:00:00Z --action manual --out audit.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.AuditFilter{Action: action, Limit: limit}
			if since != "" {
				parsed, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				parsed = parsed.UTC()
				filter.Since = &parsed
			}

			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			entries, err := repository.NewAuditRepository(db).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close() //nolint:errcheck
				w = file
			}
			return export.WriteCSV(w, auditTable(entries))
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound")
	cmd.Flags().StringVar(&action, "action", "", "action substring")
	cmd.Flags().IntVar(&limit, "limit", 200, "maximum entries")
	return cmd
}

func auditTable(entries []models.AuditLog) export.Table {
	table := export.Table{
		Headers: []string{"id", "created_at", "actor_id", "actor_role", "action", "resource_type", "resource_id", "details"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		table.Rows = append(table.Rows, []string{
			e.ID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.ActorID,
			string(e.ActorRole),
			e.Action,
			e.ResourceType,
			e.ResourceID,
			string(e.Details),
		})
	}
	return table
}
