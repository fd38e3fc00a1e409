package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"portraitstudio/internal/catalog"
	"portraitstudio/internal/domain"
	"portraitstudio/internal/infra"
	"portraitstudio/internal/infra/credentials"
	"portraitstudio/internal/providers/razorpay"
	"portraitstudio/internal/studio"
)

// credentialStore is the part of credentials.Store the CLI uses.
type credentialStore interface {
	EnsureSchema(ctx context.Context) error
	RazorpayKeys(ctx context.Context) (string, string, error)
	Set(ctx context.Context, provider, value string) error
}

type App struct {
	Out     io.Writer
	GetEnv  func(string) string
	Catalog *catalog.Catalog

	// OpenCredentials connects to the credential table behind DATABASE_URL.
	OpenCredentials func(ctx context.Context, dbURL string) (credentialStore, func(), error)
	NewRefunder     func(keyID, secret string) (studio.Refunder, error)
}

func DefaultApp() *App {
	return &App{
		Out:             os.Stdout,
		GetEnv:          os.Getenv,
		Catalog:         catalog.Default(),
		OpenCredentials: openCredentials,
		NewRefunder: func(keyID, secret string) (studio.Refunder, error) {
			logger := infra.NewLogger("cli", "studioctl")
			return razorpay.NewRefunder(razorpay.Options{KeyID: keyID, KeySecret: secret, Logger: &logger})
		},
	}
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(DefaultApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "studioctl",
		Short:         "Operator tooling for the portrait studio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newStylesCmd(app),
		newPolicyCmd(app),
		newRefundCmd(app),
		newAPIKeyCmd(app),
	)
	return root
}

func newStylesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "styles",
		Short: "List the available styles and the fee",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(app.Out, "%s, %s per portrait\n\n", app.Catalog.Studio, catalog.DisplayFee())
			tw := tabwriter.NewWriter(app.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, s := range app.Catalog.Styles {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Description)
			}
			return tw.Flush()
		},
	}
}

func newPolicyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "policy <name>",
		Short: "Print a policy text (" + strings.Join(app.Catalog.PolicyNames(), ", ") + ")",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, ok := app.Catalog.Policy(args[0])
			if !ok {
				return fmt.Errorf("unknown policy %q", args[0])
			}
			fmt.Fprintln(app.Out, strings.TrimSpace(text))
			return nil
		},
	}
}

func newRefundCmd(app *App) *cobra.Command {
	var (
		amount int64
		reason string
	)
	cmd := &cobra.Command{
		Use:   "refund <payment-id>",
		Short: "Issue a manual refund for a captured payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			paymentID := strings.TrimSpace(args[0])
			if paymentID == "" {
				return errors.New("payment id is required")
			}
			if amount <= 0 {
				return fmt.Errorf("amount must be positive, got %d", amount)
			}

			keyID, secret, err := app.razorpayKeys(ctx)
			if err != nil {
				return err
			}
			refunder, err := app.NewRefunder(keyID, secret)
			if err != nil {
				return err
			}

			ctx, cancelRefund := context.WithTimeout(ctx, 30*time.Second)
			defer cancelRefund()
			err = refunder.Refund(ctx, domain.RefundRequest{
				PaymentReference: paymentID,
				Amount:           amount,
				Currency:         catalog.FeeCurrency,
				Reason:           reason,
			})
			if err != nil {
				return fmt.Errorf("refund %s: %w", paymentID, err)
			}
			fmt.Fprintf(app.Out, "refund of %d %s requested for %s\n", amount, catalog.FeeCurrency, paymentID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&amount, "amount", catalog.FeeAmount, "amount to refund in minor units (paise)")
	cmd.Flags().StringVar(&reason, "reason", "manual refund", "reason recorded with the refund")
	return cmd
}

func newAPIKeyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "apikey <provider> <key>",
		Short: "Store a provider credential (" + strings.Join(credentials.Providers, ", ") + ")",
		Long: `Stores a provider credential in the integration_tokens table.
Razorpay credentials are passed as "<key_id>:<key_secret>".`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := strings.ToLower(strings.TrimSpace(args[0]))
			key := strings.TrimSpace(args[1])
			if key == "" {
				return errors.New("key is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			store, closeStore, err := app.credentials(ctx)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			if err := store.Set(ctx, provider, key); err != nil {
				return fmt.Errorf("persist %s credential: %w", provider, err)
			}
			fmt.Fprintf(app.Out, "%s credential stored\n", provider)
			return nil
		},
	}
}

// razorpayKeys prefers the environment and falls back to the credential table.
func (a *App) razorpayKeys(ctx context.Context) (string, string, error) {
	keyID := strings.TrimSpace(a.GetEnv("RAZORPAY_KEY_ID"))
	secret := strings.TrimSpace(a.GetEnv("RAZORPAY_KEY_SECRET"))
	if keyID != "" && secret != "" {
		return keyID, secret, nil
	}

	store, closeStore, err := a.credentials(ctx)
	if err != nil {
		return "", "", fmt.Errorf("razorpay keys not in environment: %w", err)
	}
	defer closeStore()
	keyID, secret, err = store.RazorpayKeys(ctx)
	if err != nil {
		return "", "", fmt.Errorf("load razorpay keys: %w", err)
	}
	if keyID == "" || secret == "" {
		return "", "", errors.New("razorpay keys are not configured")
	}
	return keyID, secret, nil
}

func (a *App) credentials(ctx context.Context) (credentialStore, func(), error) {
	dbURL := strings.TrimSpace(a.GetEnv("DATABASE_URL"))
	if dbURL == "" {
		return nil, nil, infra.ErrNoDatabase
	}
	return a.OpenCredentials(ctx, dbURL)
}

func openCredentials(ctx context.Context, dbURL string) (credentialStore, func(), error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	logger := infra.NewLogger("cli", "studioctl")
	return credentials.NewStore(infra.NewSQLRunner(pool, logger)), pool.Close, nil
}
