package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/responda/responda/internal/config"
	"github.com/responda/responda/internal/domain/draft"
	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/nacherfassung"
	"github.com/responda/responda/internal/domain/patientdoc"
	"github.com/responda/responda/internal/domain/pdfreport"
	"github.com/responda/responda/internal/domain/submission"
	"github.com/responda/responda/internal/platform/db"
	"github.com/responda/responda/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to one or all organization schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenants, err := targetTenants(cmd, func(ctx context.Context) ([]string, error) {
				return db.TenantSchemas(ctx, pool)
			})
			if err != nil {
				return err
			}

			migrator := db.NewMigrator(pool, migrations.FS)
			out := cmd.OutOrStdout()
			for _, tenantID := range tenants {
				count, err := migrator.Up(ctx, db.SchemaName(tenantID))
				if err != nil {
					return fmt.Errorf("migrate %s: %w", tenantID, err)
				}
				fmt.Fprintf(out, "%s: applied %d migration(s)\n", db.SchemaName(tenantID), count)
			}
			return nil
		},
	}
	upCmd.Flags().String("tenant", "", "Organization to migrate (default: every organization schema)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status of an organization schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			tenantID, _ := cmd.Flags().GetString("tenant")
			if tenantID == "" {
				tenantID = cfg.DefaultTenant
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx, db.SchemaName(tenantID))
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd.OutOrStdout(), db.SchemaName(tenantID), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "", "Organization to inspect (default: DEFAULT_TENANT)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func targetTenants(cmd *cobra.Command, list func(ctx context.Context) ([]string, error)) ([]string, error) {
	if tenantID, _ := cmd.Flags().GetString("tenant"); tenantID != "" {
		if !db.ValidTenantID(tenantID) {
			return nil, fmt.Errorf("invalid tenant identifier: %s", tenantID)
		}
		return []string{tenantID}, nil
	}
	tenants, err := list(cmd.Context())
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, fmt.Errorf("no organization schemas found, create one with: responda-server tenant create --name <id>")
	}
	return tenants, nil
}

func printMigrationStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %s\n", "VERSION", "NAME", "STATUS")
	for _, s := range statuses {
		status := "pending"
		if s.Applied {
			status = "applied"
		}
		fmt.Fprintf(w, "%-10d %-40s %s\n", s.Version, s.Name, status)
	}
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage organizations",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create and migrate an organization schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			if !db.ValidTenantID(name) {
				return fmt.Errorf("invalid tenant identifier: %s", name)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.CreateTenantSchema(ctx, pool, name, db.NewMigrator(pool, migrations.FS)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Organization %s created in schema %s\n", name, db.SchemaName(name))
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Organization identifier (letters, digits, underscore)")
	cmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List organization schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			pool, err := openPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			tenants, err := db.TenantSchemas(cmd.Context(), pool)
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
	cmd.AddCommand(listCmd)
	return cmd
}

const (
	kindPatient  = "patient"
	kindIncident = "incident"
)

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a protocol payload to PDF without a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			out, _ := cmd.Flags().GetString("out")
			kind, _ := cmd.Flags().GetString("kind")
			if input == "" {
				return fmt.Errorf("--input is required")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			doc, name, err := renderPayload(newRenderer(cfg), cfg.OrgName, kind, data, time.Now())
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, doc.Data, 0o600); err != nil {
				return fmt.Errorf("write pdf: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d page(s), %d bytes)\n", out, doc.Pages, len(doc.Data))
			return nil
		},
	}
	cmd.Flags().String("input", "", "JSON payload of the protocol")
	cmd.Flags().String("out", "", "Output file (default: generated file name)")
	cmd.Flags().String("kind", kindPatient, "Report kind: patient or incident")
	return cmd
}

// renderPayload renders a patient protocol or an incident record from its
// stored JSON payload and returns the suggested file name.
func renderPayload(rd *pdfreport.Renderer, org, kind string, data []byte, now time.Time) (*pdfreport.Document, string, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, "", fmt.Errorf("decode payload: %w", err)
	}
	snap := formsnapshot.Snapshot(payload)

	switch strings.ToLower(kind) {
	case kindPatient, "":
		d := &patientdoc.Document{Payload: payload}
		doc, err := rd.Patient(d.Report(org))
		if err != nil {
			return nil, "", err
		}
		return doc, pdfreport.FileName(snap.String("einsatz_nr"), now), nil
	case kindIncident:
		rec := nacherfassung.FromSnapshot(snap, rd.Location)
		doc, err := rd.Incident(rec.Report(org))
		if err != nil {
			return nil, "", err
		}
		return doc, pdfreport.IncidentFileName(rec.Stichwort, now), nil
	default:
		return nil, "", fmt.Errorf("unknown report kind %q", kind)
	}
}

func draftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Maintain the local draft store",
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete drafts older than DRAFT_TTL_HOURS",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			return pruneDrafts(cmd.Context(), cfg, dryRun, cmd.OutOrStdout())
		},
	}
	pruneCmd.Flags().Bool("dry-run", false, "List stale drafts without deleting them")
	cmd.AddCommand(pruneCmd)
	return cmd
}

func pruneDrafts(ctx context.Context, cfg *config.Config, dryRun bool, out io.Writer) error {
	if cfg.DraftTTLHours <= 0 {
		return fmt.Errorf("DRAFT_TTL_HOURS must be positive")
	}
	store, err := draft.OpenSQLite(ctx, cfg.DraftDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := draft.NewService(store, newLogger(cfg))
	ttl := time.Duration(cfg.DraftTTLHours) * time.Hour
	if dryRun {
		stale, err := svc.ListStale(ctx, ttl)
		if err != nil {
			return err
		}
		for _, st := range stale {
			fmt.Fprintf(out, "%-16s %-24s %-20s %s\n", st.TenantID, st.UserID, st.FormType, st.SavedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(out, "%d stale draft(s)\n", len(stale))
		return nil
	}

	n, err := svc.Prune(ctx, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d draft(s)\n", n)
	return nil
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a protocol payload to a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			server, _ := cmd.Flags().GetString("server")
			token, _ := cmd.Flags().GetString("token")
			submitter, _ := cmd.Flags().GetString("submitter")
			if input == "" || server == "" {
				return fmt.Errorf("--input and --server are required")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			p, err := protocolFromPayload(data, submitter)
			if err != nil {
				return err
			}

			res, err := submission.NewClient(server, token, newLogger(cfg)).Submit(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "submitted %s (%s)\n", res.ID, res.Title)
			return nil
		},
	}
	cmd.Flags().String("input", "", "JSON payload of the protocol")
	cmd.Flags().String("server", "", "Base URL of the server")
	cmd.Flags().String("token", os.Getenv("RESPONDA_TOKEN"), "Bearer token")
	cmd.Flags().String("submitter", "", "Name of the submitting responder")
	return cmd
}

func protocolFromPayload(data []byte, submitter string) (submission.Protocol, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return submission.Protocol{}, fmt.Errorf("decode payload: %w", err)
	}
	d := &patientdoc.Document{Payload: payload}
	return submission.Protocol{
		Snapshot:      d.Snapshot(),
		Medications:   d.Medications(),
		Photos:        d.Photos(),
		Signature:     d.Signature(),
		SubmitterName: submitter,
	}, nil
}
