package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	"github.com/noah-isme/tutor-match-api/internal/service"
	"github.com/noah-isme/tutor-match-api/pkg/config"
	"github.com/noah-isme/tutor-match-api/pkg/database"
	"github.com/noah-isme/tutor-match-api/pkg/logger"
)

type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	env := &cliEnv{}
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Operate the tutor matching engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			env.cfg = cfg
			env.logger = logr
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(env),
		newImportCmd(env),
		newScoreCmd(env),
		newScanCmd(env),
		newTokenCmd(env),
		newAuditCmd(env),
	)
	return root
}

func (e *cliEnv) open(ctx context.Context) (*sqlx.DB, error) {
	db, err := database.Open(e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if e.cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

func newMigrateCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the engine schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(env.cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close() //nolint:errcheck
			if err := repository.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			env.logger.Info("schema migrated", zap.String("driver", env.cfg.Database.Driver))
			return nil
		},
	}
}

func newImportCmd(env *cliEnv) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load tutors and bookings from a YAML snapshot",
		Long: `Upserts the tutor directory and booking snapshot used by stored scans
and by suggestions generated without explicit candidates.

Example:
  matchctl import --file fixtures/week43.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := loadSnapshot(file)
			if err != nil {
				return err
			}
			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			directory := repository.NewDirectoryRepository(db)
			for _, tutor := range snapshot.Tutors {
				if err := directory.UpsertTutor(cmd.Context(), tutor); err != nil {
					return err
				}
			}
			for _, booking := range snapshot.Bookings {
				if err := directory.UpsertBooking(cmd.Context(), booking); err != nil {
					return err
				}
			}
			env.logger.Info("snapshot imported",
				zap.String("file", file),
				zap.Int("tutors", len(snapshot.Tutors)),
				zap.Int("bookings", len(snapshot.Bookings)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML snapshot file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newScoreCmd(env *cliEnv) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rank the tutors of a YAML snapshot for its request without storing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := loadSnapshot(file)
			if err != nil {
				return err
			}
			if snapshot.Request == nil {
				return fmt.Errorf("%s has no request section", file)
			}
			ranked := service.NewMatchScorer(env.cfg.Matching).Rank(*snapshot.Request, snapshot.Tutors)
			return printRanking(cmd, ranked)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML snapshot file with request and tutors")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printRanking(cmd *cobra.Command, ranked []models.RankedTutor) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tTUTOR\tSCORE\tWHY")
	for i, r := range ranked {
		fmt.Fprintf(w, "%d\t%s\t%.0f\t%s\n", i+1, r.TutorID, r.Score, strings.Join(r.Justifications, "; "))
	}
	return w.Flush()
}

func newScanCmd(env *cliEnv) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect conflicts in the stored booking snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := env.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			directory := repository.NewDirectoryRepository(db)
			svc := service.NewConflictService(
				repository.NewConflictRepository(db),
				repository.NewAuditRepository(db),
				directory,
				repository.NewTxManager(db),
				service.NewConflictDetector(env.cfg.Conflict),
				nil,
				env.logger,
			)
			conflicts, err := svc.ScanStored(cmd.Context(), models.Actor{ID: "matchctl", Role: role})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSEVERITY\tRESOURCE\tSLOT\tOPEN")
			for _, c := range conflicts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", c.ID, c.Type, c.Severity, c.Resource, c.Slot, len(c.BookingIDs(models.ConflictStatusOpen)))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleCoordinator), "role the scan runs as")
	return cmd
}

func newTokenCmd(env *cliEnv) *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.cfg.Env == config.EnvProduction {
				return fmt.Errorf("token issuing is disabled in production")
			}
			if _, ok := models.ParseRole(role); !ok {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := service.NewTokenService(env.cfg.JWT.Secret, env.cfg.JWT.Issuer).IssueToken(user, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id claim")
	cmd.Flags().StringVar(&role, "role", string(models.RoleCoordinator), "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
