package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"herdscreen/internal/client"
	"herdscreen/internal/probe"
)

func newWaitCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait until the backend answers its health check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				return runWait(cmd, ctx, cl, timeout)
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits until interrupted)")
	return cmd
}

func runWait(cmd *cobra.Command, ctx *commandContext, cl *client.Client, timeout time.Duration) error {
	cfg := ctx.config
	runCtx := bindContext(cmd)
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	last := ""
	p := probe.New(cl, probe.Options{
		Interval:   cfg.ProbeInterval(),
		Timeout:    cfg.ProbeTimeout(),
		ReadyGrace: cfg.ProbeReadyGrace(),
		Logger:     ctx.log(),
		Status: func(text string) {
			if ctx.jsonOutput() || text == last {
				return
			}
			last = text
			kind := statusWarn
			if text == probe.StatusReady {
				kind = statusOK
			}
			fmt.Fprintln(out, renderStatusLine("Backend", kind, text, colorize))
		},
	})

	err := p.Run(runCtx, nil)
	if ctx.jsonOutput() {
		if encErr := writeJSON(cmd, map[string]any{
			"url":      cl.BaseURL(),
			"ready":    p.Ready(),
			"attempts": p.Attempts(),
		}); encErr != nil {
			return encErr
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("backend at %s not ready after %s", cl.BaseURL(), timeout)
	}
	return err
}
