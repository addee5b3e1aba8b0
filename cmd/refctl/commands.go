package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	appctx "logiref/internal/core/context"
	"logiref/internal/domain/auth"
	"logiref/internal/domain/reference"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			version, err := s.backend.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"driver": s.backend.Driver, "version": version})
		},
	}
}

func newSchemesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List configured schemes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			type row struct {
				Name   string `json:"name"`
				Kind   string `json:"kind"`
				Source string `json:"source"`
				Width  int    `json:"padWidth"`
			}
			var rows []row
			for _, sc := range s.service.Schemes() {
				rows = append(rows, row{
					Name:   sc.Name,
					Kind:   string(sc.Kind),
					Source: sc.Source.Table + "." + sc.Source.Column,
					Width:  sc.PadWidth,
				})
			}
			return printJSON(cmd, rows)
		},
	}
}

// requestFlags are the flags shared by allocate and preview.
type requestFlags struct {
	scheme  string
	client  string
	species string
	count   int
	as      string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.scheme, "scheme", reference.SchemeAsli, "scheme name")
	cmd.Flags().StringVar(&f.client, "client", "", "client name (composite schemes)")
	cmd.Flags().StringVar(&f.species, "species", "", "species name (composite schemes)")
	cmd.Flags().IntVarP(&f.count, "count", "n", 1, "number of identifiers")
	cmd.Flags().StringVar(&f.as, "as", "refctl", "user recorded as reserved_by")
}

func (f *requestFlags) request() reference.Request {
	return reference.Request{Scheme: f.scheme, Client: f.client, Species: f.species, Count: f.count}
}

func newAllocateCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Reserve identifiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := appctx.WithUser(cmd.Context(), &appctx.UserContext{UserID: flags.as})
			alloc, err := s.service.Allocate(ctx, flags.request())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"scheme":        alloc.Scheme,
				"groupKey":      alloc.GroupKey,
				"references":    alloc.References,
				"reservedUntil": alloc.ReservedUntil.UTC().Format(time.RFC3339),
				"attempts":      alloc.Attempts,
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newPreviewCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the identifiers allocate would return, without reserving them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			alloc, err := s.service.Preview(cmd.Context(), flags.request())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"scheme":      alloc.Scheme,
				"groupKey":    alloc.GroupKey,
				"references":  alloc.References,
				"skippedRows": alloc.Skipped,
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newPurgeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired reservations and idempotency keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			reservations, err := s.service.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]any{"reservations": reservations}
			if s.backend.Idempotency != nil {
				keys, err := s.backend.Idempotency.CleanupExpired(cmd.Context())
				if err != nil {
					return err
				}
				out["idempotencyKeys"] = keys
			}
			return printJSON(cmd, out)
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		role   string
		ttl    time.Duration
		secret string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			if secret == "" {
				return fmt.Errorf("JWT_SECRET or --secret is required")
			}
			svc := auth.NewJWTService(auth.DefaultJWTConfig(secret))
			token, expiresAt, err := svc.GenerateAccessToken(userID, email, role, ttl)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"token":     token,
				"expiresAt": expiresAt.UTC().Format(time.RFC3339),
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (sub/uid claim)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&role, "role", "", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret")
	return cmd
}
