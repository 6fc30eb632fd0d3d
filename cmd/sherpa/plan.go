package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/VenkatGGG/site-sherpa/internal/action"
	"github.com/VenkatGGG/site-sherpa/internal/planner"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan one navigate request from a JSON file and print the action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readPlanRequest(file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, err := buildServices(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			req.RequestID = uuid.NewString()
			act, planErr := svc.planner.Plan(ctx, req)
			if planErr != nil {
				act = action.SystemError()
			}
			act.RequestID = req.RequestID

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(act); err != nil {
				return err
			}
			return planErr
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "request JSON file, - for stdin")
	return cmd
}

func readPlanRequest(path string, stdin io.Reader) (planner.Request, error) {
	var raw []byte
	var err error
	if strings.TrimSpace(path) == "" || path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return planner.Request{}, fmt.Errorf("read request: %w", err)
	}
	var req planner.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return planner.Request{}, fmt.Errorf("decode request: %w", err)
	}
	if strings.TrimSpace(req.Query) == "" || strings.TrimSpace(req.CurrentURL) == "" {
		return planner.Request{}, fmt.Errorf("request needs query and current_url")
	}
	return req, nil
}
