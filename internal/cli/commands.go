package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/treevu/internal/app"
	"github.com/MrJamesThe3rd/treevu/internal/http/middleware"
	"github.com/MrJamesThe3rd/treevu/internal/report"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(tokenCmd)

	reportCmd.Flags().StringP("account", "a", "", "Account id, required for the employee report")
	reportCmd.Flags().StringP("output", "o", "", "Write the CSV to this file instead of stdout")

	tokenCmd.Flags().StringP("role", "r", middleware.RoleEmployee, "Role claim: employee, employer or admin")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(context.Context, *app.App) error {
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		})
	},
}

// ─── report ─────────────────────────────────────────────────────────────────

var reportCmd = &cobra.Command{
	Use:   "report ROLE",
	Short: "Export a CSV report for employee, employer or merchant",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	role, err := report.ParseRole(args[0])
	if err != nil {
		return err
	}

	accountID, _ := cmd.Flags().GetString("account")
	output, _ := cmd.Flags().GetString("output")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		w := cmd.OutOrStdout()

		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()

			w = f
		}

		return report.NewService(a.Engine).Write(ctx, w, role, accountID)
	})
}

// ─── sweep ──────────────────────────────────────────────────────────────────

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fail withdrawals the payroll provider never answered",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.Sweep(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "expired %d withdrawals\n", n)

			return nil
		})
	},
}

// ─── token ──────────────────────────────────────────────────────────────────

var tokenCmd = &cobra.Command{
	Use:   "token SUBJECT",
	Short: "Mint a signed API token",
	Long: `Mint an HS256 token signed with JWT_SECRET. For employees the subject is
the account id the token may act on.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, logger, err := env(cmd)
	if err != nil {
		return err
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}

	role, _ := cmd.Flags().GetString("role")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	switch role {
	case middleware.RoleEmployee, middleware.RoleEmployer, middleware.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	now := time.Now()

	token, err := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, logger).Sign(middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   args[0],
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)

	return nil
}
