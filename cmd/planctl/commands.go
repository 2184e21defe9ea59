package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"stockbrief/internal/auth"
	"stockbrief/internal/billing"
	"stockbrief/internal/quota"
	"stockbrief/internal/types"
)

const defaultRecentLimit = 10

type rootOptions struct {
	databaseURL string
	output      string
}

func newRootCmd(a *app) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "planctl",
		Short: "Operator tooling for StockBrief",
		Long: `planctl manages the StockBrief database directly.

It applies schema migrations, overrides account plans, inspects the weekly
report quota of an account, and hashes the admin API key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection string (default $DATABASE_URL)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table or json")

	root.AddCommand(
		newMigrateCmd(a, opts),
		newSetPlanCmd(a, opts),
		newUsageCmd(a, opts),
		newHashAdminKeyCmd(a),
	)
	return root
}

// connect resolves configuration and opens the store. Callers must Close it.
func (a *app) connect(ctx context.Context, opts *rootOptions) (store, cliConfig, error) {
	cfg, err := a.lookup()
	if err != nil {
		return nil, cliConfig{}, err
	}
	if opts.databaseURL != "" {
		cfg.Database.URL = types.SecretString(opts.databaseURL)
	}
	if cfg.Database.URL.IsEmpty() {
		return nil, cliConfig{}, errors.New("DATABASE_URL is not set; export it or pass --database-url")
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 2
	}
	s, err := a.open(ctx, cfg.Database)
	if err != nil {
		return nil, cliConfig{}, fmt.Errorf("connecting to database: %w", err)
	}
	return s, cfg, nil
}

func newMigrateCmd(a *app, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, _, err := a.connect(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer s.Close()

				if err := s.Migrate(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the state of every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, _, err := a.connect(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer s.Close()
				return s.MigrationStatus(cmd.Context())
			},
		},
	)
	return cmd
}

func newSetPlanCmd(a *app, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-plan <user-id> <plan>",
		Short: "Override the plan of an account (free, plus, pro)",
		Long: `Override the plan of an account.

The next billing webhook for the account replaces the override, so use this
for comped accounts and support fixes rather than paid upgrades.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])
			if userID == "" {
				return errors.New("user id must not be empty")
			}
			tier, ok := billing.ParsePlan(args[1])
			if !ok {
				return fmt.Errorf("unknown plan %q: must be free, plus, or pro", args[1])
			}

			s, _, err := a.connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetPlan(cmd.Context(), userID, tier); err != nil {
				if types.CodeOf(err) == types.ErrCodeNotFoundProfile {
					return fmt.Errorf("no profile for user %s", userID)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan for %s set to %s.\n", userID, tier)
			return nil
		},
	}
}

// usageReport is the json form of the usage command.
type usageReport struct {
	UserID      string                `json:"user_id"`
	Plan        types.PlanTier        `json:"plan"`
	Count       int                   `json:"count"`
	Limit       int                   `json:"limit"`
	Unlimited   bool                  `json:"unlimited"`
	Remaining   *int                  `json:"remaining"`
	WindowStart time.Time             `json:"window_start"`
	Recent      []types.UsageLogEntry `json:"recent"`
}

func newUsageCmd(a *app, opts *rootOptions) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "usage <user-id>",
		Short: "Show the weekly report usage of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])
			if userID == "" {
				return errors.New("user id must not be empty")
			}
			if recent < 0 {
				return errors.New("--recent must not be negative")
			}

			s, cfg, err := a.connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			loc, err := cfg.Quota.Location()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
			gate := quota.NewGate(s, s, billing.NewStaticPlanRegistry(), a.clock, loc, logger)

			decision, err := gate.Usage(cmd.Context(), userID, types.ActionCompanyIntro)
			if err != nil {
				return err
			}
			entries := []types.UsageLogEntry{}
			if recent > 0 {
				if entries, err = s.ListRecent(cmd.Context(), userID, recent); err != nil {
					return err
				}
				if entries == nil {
					entries = []types.UsageLogEntry{}
				}
			}

			report := usageReport{
				UserID:      userID,
				Plan:        decision.Plan,
				Count:       decision.Count,
				Limit:       decision.Limit,
				Unlimited:   decision.Unlimited(),
				WindowStart: decision.WindowStart,
				Recent:      entries,
			}
			if !report.Unlimited {
				left := max(report.Limit-report.Count, 0)
				report.Remaining = &left
			}
			return printUsage(cmd, opts.output, report)
		},
	}

	cmd.Flags().IntVar(&recent, "recent", defaultRecentLimit, "Number of recent ledger entries to list")
	return cmd
}

func printUsage(cmd *cobra.Command, format string, r usageReport) error {
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "table", "":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	limit := "unlimited"
	remaining := "-"
	if !r.Unlimited {
		limit = fmt.Sprintf("%d", r.Limit)
		remaining = fmt.Sprintf("%d", *r.Remaining)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "USER\t%s\n", r.UserID)
	fmt.Fprintf(w, "PLAN\t%s\n", r.Plan)
	fmt.Fprintf(w, "WINDOW START\t%s\n", r.WindowStart.Format(time.RFC3339))
	fmt.Fprintf(w, "REPORTS\t%d / %s\n", r.Count, limit)
	fmt.Fprintf(w, "REMAINING\t%s\n", remaining)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(r.Recent) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tACTION\tSYMBOL\tID")
	for _, e := range r.Recent {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Action, e.Symbol, e.ID)
	}
	return w.Flush()
}

func newHashAdminKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-admin-key",
		Short: "Read an admin key from stdin and print its bcrypt hash",
		Long: `Read an admin key from stdin and print the bcrypt hash to store in
ADMIN_API_KEY_HASH. Only the first line is used; surrounding whitespace is
trimmed. The key must be at least 16 characters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner := bufio.NewScanner(cmd.InOrStdin())
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("reading key: %w", err)
				}
				return errors.New("no key on stdin")
			}
			hash, err := auth.HashAdminKey(strings.TrimSpace(scanner.Text()))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
