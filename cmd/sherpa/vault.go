package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newVaultCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect the credential vault",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <domain>",
		Short: "List the credential labels stored for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, closeVault, err := openVault(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer closeVault()

			labels, err := store.Labels(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(labels) == 0 {
				fmt.Fprintf(out, "no credentials stored for %s\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "%s (%s): %s\n", args[0], store.Backend(), strings.Join(labels, ", "))
			return nil
		},
	})
	return cmd
}
