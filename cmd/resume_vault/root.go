package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jonathan/resume-vault/internal/admin"
	"github.com/jonathan/resume-vault/internal/config"
	"github.com/jonathan/resume-vault/internal/logging"
	"github.com/jonathan/resume-vault/internal/observability"
	"github.com/jonathan/resume-vault/internal/scope"
	"github.com/jonathan/resume-vault/internal/session"
	"github.com/jonathan/resume-vault/internal/store"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is the state every client command shares. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	in  *bufio.Reader
	out io.Writer

	cfg      config.Config
	logger   *zap.Logger
	sessions *session.Manager
	client   *store.Client
	admin    *admin.Client
	metrics  *observability.StoreMetrics
	printer  *observability.Printer

	stopMetrics func()
}

type rootFlags struct {
	configPath string
	backendURL string
	logLevel   string
	sessionKey string
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: bufio.NewReader(in), out: out, stopMetrics: func() {}}
	var flags rootFlags

	root := &cobra.Command{
		Use:   "resume_vault",
		Short: "Browse, download and manage tailored resume artifacts",
		Long: `resume_vault lists, downloads and deletes the resume artifacts kept by an
artifact store. Bidders work on their own collection, developers on the
bidders assigned to them, and administrators manage accounts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, flags)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
	}
	root.SetOut(out)
	root.SetIn(in)

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to a JSON or YAML config file")
	root.PersistentFlags().StringVar(&flags.backendURL, "backend-url", "", "Artifact store base URL (overrides config)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.sessionKey, "session-store", "", "Session persistence: file, keyring or memory")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newListCmd(a),
		newDownloadCmd(a),
		newArchiveCmd(a),
		newDeleteCmd(a),
		newBiddersCmd(a),
		newAdminCmd(a),
		newDraftCmd(a),
		newServeCmd(a),
		newTokenCmd(a),
	)
	return root
}

// setup loads configuration, then builds the logger, the session and the store client.
func (a *app) setup(cmd *cobra.Command, flags rootFlags) error {
	cfg := &config.Config{}
	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if flags.backendURL != "" {
		cfg.BackendURL = flags.backendURL
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.sessionKey != "" {
		cfg.SessionStore = flags.sessionKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg.MergeWithDefaults(config.Defaults())

	logger, err := logging.New(a.cfg.LogLevel, logging.Format(a.cfg.LogFormat))
	if err != nil {
		return err
	}
	a.logger = logger.With(zap.String("command", cmd.Name()))
	a.printer = observability.NewPrinter(a.out)

	persistence, err := a.persistence()
	if err != nil {
		return err
	}
	if a.sessions, err = session.NewManager(persistence, a.logger); err != nil {
		return err
	}
	a.sessions.OnInvalidate(func(reason string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Session ended (%s). Run 'resume_vault login' to sign in again.\n", reason)
	})

	a.metrics = observability.NewStoreMetrics()
	opts := store.DefaultOptions()
	opts.Timeout = a.cfg.Timeout()
	opts.RateLimit = a.cfg.RateLimit
	opts.Burst = a.cfg.RateBurst
	opts.BreakerEnabled = a.cfg.Breaker
	opts.Logger = a.logger
	opts.Metrics = a.metrics
	if a.client, err = store.New(a.cfg.BackendURL, a.sessions, opts); err != nil {
		return err
	}
	a.admin = admin.New(a.client, &admin.Options{ValidateResponses: true, Logger: a.logger})

	if a.cfg.MetricsAddr != "" {
		a.serveMetrics()
	}
	return nil
}

func (a *app) persistence() (session.Persistence, error) {
	switch a.cfg.SessionStore {
	case config.SessionKeyring:
		return session.NewKeyringStore(session.KeyringService), nil
	case config.SessionMemory:
		return session.NewMemoryStore(), nil
	default:
		return session.NewFileStore(a.cfg.SessionPath)
	}
}

// serveMetrics exposes the client's request metrics for the life of the command.
func (a *app) serveMetrics() {
	srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics listener failed", zap.Error(err))
		}
	}()
	a.stopMetrics = func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (a *app) close() {
	a.stopMetrics()
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// principal returns the signed-in principal.
func (a *app) principal() (types.Principal, error) {
	p, err := a.sessions.Principal()
	if errors.Is(err, session.ErrNoSession) {
		return nil, errors.New("not signed in; run 'resume_vault login' first")
	}
	return p, err
}

// scope resolves the artifact scope for the signed-in principal.
func (a *app) scope(subject string) (types.Scope, error) {
	if _, err := a.principal(); err != nil {
		return types.Scope{}, err
	}
	s, err := scope.NewResolver(a.sessions).Resolve(subject)
	if errors.Is(err, scope.ErrSuppressed) {
		return types.Scope{}, errors.New("developers must choose a bidder with --subject (see 'resume_vault bidders')")
	}
	return s, err
}

// confirm returns a Confirmer that reads y/N from stdin, or always agrees
// when assumeYes is set.
func (a *app) confirm(assumeYes bool) confirmFunc {
	return func(_ context.Context, prompt string) (bool, error) {
		if assumeYes {
			return true, nil
		}
		fmt.Fprintf(a.out, "%s [y/N] ", prompt)
		line, err := a.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

// confirmFunc satisfies both the dashboard and admin Confirmer interfaces.
type confirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f confirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// readLine prompts for a value on stdin.
func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// report renders err the way the store's error taxonomy asks for.
func report(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(store.Message(err))
}
