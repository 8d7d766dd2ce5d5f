package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"herdscreen/internal/batch"
	"herdscreen/internal/client"
	"herdscreen/internal/config"
	"herdscreen/internal/journal"
	"herdscreen/internal/lifecycle"
	"herdscreen/internal/logging"
	"herdscreen/internal/probe"
	"herdscreen/internal/progress"
	"herdscreen/internal/services"
)

type globalFlags struct {
	config   string
	url      string
	json     bool
	logLevel string
	noWait   bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if url := strings.TrimSpace(c.flags.url); url != "" {
			cfg.Server.BaseURL = url
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.flags != nil && c.flags.json
}

// log returns the command logger, falling back to a no-op logger when the
// configured outputs cannot be opened.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		logger, err := logging.NewFromConfig(cfg, c.flags.logLevel)
		if err != nil {
			logger = logging.NewNop()
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) newClient() (*client.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cfg.Server.BaseURL,
		client.WithTimeout(cfg.RequestTimeout()),
		client.WithLogger(c.log()),
	)
}

func (c *commandContext) withClient(fn func(*client.Client) error) error {
	cl, err := c.newClient()
	if err != nil {
		return err
	}
	return fn(cl)
}

// withBackend is withClient gated on the backend answering its health check.
func (c *commandContext) withBackend(cmd *cobra.Command, fn func(*client.Client) error) error {
	return c.withClient(func(cl *client.Client) error {
		if err := c.awaitBackend(cmd, cl); err != nil {
			return err
		}
		return fn(cl)
	})
}

// awaitBackend runs the connection probe until the backend is ready or the
// command is cancelled. Status lines go to stderr, and only once the first
// check has failed. --no-wait skips it.
func (c *commandContext) awaitBackend(cmd *cobra.Command, cl *client.Client) error {
	if c.flags.noWait {
		return nil
	}
	cfg := c.config
	errOut := cmd.ErrOrStderr()
	colorize := shouldColorize(errOut)
	waited, last := false, ""
	p := probe.New(cl, probe.Options{
		Interval:   cfg.ProbeInterval(),
		Timeout:    cfg.ProbeTimeout(),
		ReadyGrace: cfg.ProbeReadyGrace(),
		Logger:     c.log(),
		Status: func(text string) {
			ready := text == probe.StatusReady
			if ready && !waited || text == last {
				return
			}
			waited, last = true, text
			kind := statusWarn
			if ready {
				kind = statusOK
			}
			fmt.Fprintln(errOut, renderStatusLine("Backend", kind, text, colorize))
		},
	})
	if err := p.Run(bindContext(cmd), nil); err != nil {
		return fmt.Errorf("waiting for backend at %s: %w", cl.BaseURL(), err)
	}
	return nil
}

// lifecycleSource supplies the terminal event source; tests replace it.
var lifecycleSource = terminalEvents

// attachLifecycle sends the close signal when the terminal session goes
// away while a long job runs. The returned function detaches it.
func (c *commandContext) attachLifecycle(cl *client.Client) func() {
	cfg := c.config
	if !cfg.Lifecycle.Enabled {
		return func() {}
	}
	sig := lifecycle.New(cl, lifecycle.Options{HiddenGrace: cfg.HiddenGrace(), Logger: c.log()})
	sig.Attach(lifecycleSource())
	return sig.Close
}

func (c *commandContext) withJournal(fn func(*journal.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// newMonitor builds the progress monitor that renders into display.
func (c *commandContext) newMonitor(cl *client.Client, display progress.Display) *progress.Monitor {
	cfg := c.config
	return progress.New(cl, display, progress.Options{
		Interval:      cfg.PollInterval(),
		PollTimeout:   cfg.PollTimeout(),
		SilentRetries: cfg.Progress.SilentRetries,
		Logger:        c.log(),
	})
}

// newCoordinator wires a coordinator with the journal, the submission lock
// and a terminal progress line on the command's stderr.
func (c *commandContext) newCoordinator(cmd *cobra.Command, cl *client.Client, store *journal.Store) *batch.Coordinator {
	cfg := c.config
	status := newTerminalStatus(cmd.ErrOrStderr(), !c.jsonOutput())
	monitor := c.newMonitor(cl, status)
	return batch.New(cl, monitor, batch.Options{
		StartDelay: cfg.MonitorStartDelay(),
		LockPath:   cfg.LockPath(),
		Journal:    store,
		Indicator:  status,
		Limits:     batch.LimitsFromConfig(cfg),
		Logger:     c.log(),
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// describeError turns classified errors into the message printed on exit.
func describeError(err error) string {
	var status *client.StatusError
	var validation *services.ValidationError
	var submission *services.SubmissionError
	switch {
	case errors.As(err, &validation):
		return "invalid input: " + validation.Error()
	case errors.As(err, &submission):
		return "submission failed: " + submission.Message
	case errors.Is(err, services.ErrSubmissionInFlight):
		return "another submission is still running; wait for it to finish"
	case errors.As(err, &status):
		if text := status.Body.Text(); text != "" {
			return fmt.Sprintf("backend error (HTTP %d): %s", status.StatusCode, text)
		}
		return fmt.Sprintf("backend error (HTTP %d)", status.StatusCode)
	case services.IsConnectivity(err):
		return "cannot reach backend: " + err.Error()
	default:
		return err.Error()
	}
}

func bindContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
