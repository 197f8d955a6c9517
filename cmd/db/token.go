package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/garrettladley/notisync/internal/service/token"
)

const envJWTSecret = "JWT_SECRET"

func tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New(envJWTSecret + " is not set")
			}

			raw, err := token.NewJWT(secret).Issue(args[0], ttl)
			if err != nil {
				return err
			}

			fmt.Println(raw)
			_, _ = fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(ttl).Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv(envJWTSecret), "HMAC secret shared with the server")
	cmd.Flags().DurationVar(&ttl, "ttl", token.DefaultTTL, "token lifetime")
	return cmd
}
