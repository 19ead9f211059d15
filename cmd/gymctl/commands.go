package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	orderlogsqlite "github.com/jcmexdev/gym-membership/internal/order-service/orderlog/sqlite"
	"github.com/jcmexdev/gym-membership/internal/pkg/database"
)

const (
	defaultDatabasePath = "gym_app.db"
	defaultAPIURL       = "http://localhost:8080"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gymctl",
		Short:         "administer the gym membership API",
		SilenceUsage: true,
	}
	root.AddCommand(
		migrateCommand(),
		ordersCommand(),
	)
	return root
}

func migrateCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "manage the SQLite schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", envOr("DATABASE_PATH", defaultDatabasePath), "SQLite database path")

	run := func(migrateFn func(*sqlx.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			db, err := database.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if migrateFn != nil {
				if err := migrateFn(db); err != nil {
					return err
				}
			}
			v, dirty, err := database.Version(db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", v, dirty)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "apply every pending migration",
			Args:  cobra.NoArgs,
			RunE:  run(database.MigrateUp),
		},
		&cobra.Command{
			Use:   "down",
			Short: "roll back every migration",
			Args:  cobra.NoArgs,
			RunE:  run(database.MigrateDown),
		},
		&cobra.Command{
			Use:   "version",
			Short: "print the applied schema version",
			Args:  cobra.NoArgs,
			RunE:  run(nil),
		},
	)
	return cmd
}

func ordersCommand() *cobra.Command {
	var (
		apiURL  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "create, verify and inspect orders",
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api", envOr("GYM_API_URL", defaultAPIURL), "gateway base URL")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	client := func() *apiClient { return newAPIClient(apiURL, timeout) }

	var idempotencyKey string
	create := &cobra.Command{
		Use:   "create [plan]",
		Short: "create an order (plan defaults to student)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plan *string
			if len(args) == 1 {
				plan = &args[0]
			}
			res, err := client().CreateOrder(cmd.Context(), plan, idempotencyKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", res.OrderID, res.Amount)
			return nil
		},
	}
	create.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "replay-safe key for retries")

	var paymentID string
	verify := &cobra.Command{
		Use:   "verify <order_id>",
		Short: "verify the payment for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := client().VerifyPayment(cmd.Context(), args[0], paymentID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], res.PaymentID)
			return nil
		},
	}
	verify.Flags().StringVar(&paymentID, "payment-id", "", "payment id reported by the processor")

	list := &cobra.Command{
		Use:   "list",
		Short: "list every order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := client().ListOrders(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ORDER\tPLAN\tAMOUNT\tSTATUS\tPAYMENT")
			for _, o := range orders {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.OrderID, o.Plan, o.Amount, o.Status, o.PaymentID)
			}
			return tw.Flush()
		},
	}

	var dbPath string
	history := &cobra.Command{
		Use:   "history <order_id>",
		Short: "print the audit log of an order from the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := orderlogsqlite.NewRepository(db).ListByOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no log entries for order %q", args[0])
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORDED\tSTATUS\tPLAN\tAMOUNT\tPAYMENT\tTRACE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					e.RecordedAt.Format(time.RFC3339), e.Status, e.Plan, e.Amount, e.PaymentID, e.TraceID)
			}
			return tw.Flush()
		},
	}
	history.Flags().StringVar(&dbPath, "db", envOr("DATABASE_PATH", defaultDatabasePath), "SQLite database path")

	cmd.AddCommand(create, verify, list, history)
	return cmd
}
