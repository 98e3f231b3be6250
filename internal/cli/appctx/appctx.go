// Package appctx holds the per-process application state shared by every
// command: configuration, logger, terminal streams, the session and the
// merge journal. In the interactive shell one App serves all commands.
package appctx

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/lherron/ttags/internal/auth"
	"github.com/lherron/ttags/internal/config"
	"github.com/lherron/ttags/internal/journal"
	"github.com/lherron/ttags/internal/logging"
	"github.com/lherron/ttags/internal/merge"
	"github.com/lherron/ttags/internal/prompt"
	"github.com/lherron/ttags/internal/session"
	"github.com/lherron/ttags/internal/trello"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// App holds the shared application context for commands.
type App struct {
	Config  *config.Config
	Log     *logrus.Logger
	In      *bufio.Reader
	Out     io.Writer
	Session *session.Session

	// InShell is set while the interactive shell is running
	InShell bool

	journal *journal.Journal
}

// Close releases resources held by the App.
// Safe to call multiple times.
func (a *App) Close() {
	if a.journal != nil {
		a.journal.Close()
		a.journal = nil
	}
}

// Bootstrap loads configuration and builds the App. The --config and
// --log-level flags override the file location and level when present.
// With api_key and api_token configured the session starts authenticated.
func Bootstrap(cmd *cobra.Command) (*App, error) {
	var configPath string
	if f := cmd.Flag("config"); f != nil {
		configPath = f.Value.String()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if f := cmd.Flag("log-level"); f != nil && f.Value.String() != "" {
		cfg.LogLevel = f.Value.String()
	}

	log, err := logging.New(cfg.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Log:    log,
		In:     bufio.NewReader(cmd.InOrStdin()),
		Out:    cmd.OutOrStdout(),
	}
	app.Session = session.New(app.newClient, session.Options{
		Concurrency: cfg.FetchConcurrency,
		Log:         log,
	})

	if cfg.HasStaticToken() {
		if err := app.Session.UseCredentials(auth.Credentials{Key: cfg.APIKey, Token: cfg.APIToken}); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func (a *App) newClient(creds auth.Credentials) session.Remote {
	return trello.NewClient(creds.Key, creds.Token, trello.Options{
		BaseURL:   a.Config.APIBaseURL,
		Timeout:   a.Config.RequestTimeout,
		RateLimit: a.Config.RateLimit,
		Logger:    a.Log,
	})
}

// Authorizer returns the static authorizer when tokens are configured, and
// the browser handshake otherwise. The handshake needs client credentials,
// so a missing credentials file surfaces here as ErrConfigurationMissing.
func (a *App) Authorizer() (auth.Authorizer, error) {
	if a.Config.HasStaticToken() {
		return auth.Static{Credentials: auth.Credentials{Key: a.Config.APIKey, Token: a.Config.APIToken}}, nil
	}

	client, err := a.Config.LoadClientCredentials()
	if err != nil {
		return nil, err
	}
	return &auth.OAuth{
		ClientKey:    client.Key,
		ClientSecret: client.Secret,
		BaseURL:      a.Config.AuthBaseURL,
		Port:         a.Config.CallbackPort,
		Expiration:   a.Config.AuthExpiration,
		Timeout:      a.Config.AuthTimeout,
		Open:         auth.OpenBrowser,
		Out:          a.Out,
		Log:          a.Log,
	}, nil
}

// Operator returns the terminal operator reading from the shared input.
func (a *App) Operator() merge.Operator {
	return prompt.NewTerminal(a.In, a.Out)
}

// Journal opens the merge journal on first use. It returns nil when the
// journal is disabled.
func (a *App) Journal() (*journal.Journal, error) {
	if !a.Config.JournalEnabled() {
		return nil, nil
	}
	if a.journal == nil {
		j, err := journal.Open(a.Config.JournalPath, a.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		a.journal = j
	}
	return a.journal, nil
}

type holderKey struct{}

type holder struct {
	app *App
}

// NewContext returns a context that can carry an App once one is stored.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, holderKey{}, &holder{})
}

// Store attaches app to a context made by NewContext. It reports false when
// ctx has no slot.
func Store(ctx context.Context, app *App) bool {
	h, ok := ctx.Value(holderKey{}).(*holder)
	if !ok {
		return false
	}
	h.app = app
	return true
}

// FromContext returns the stored App, or nil.
func FromContext(ctx context.Context) *App {
	if ctx == nil {
		return nil
	}
	h, ok := ctx.Value(holderKey{}).(*holder)
	if !ok {
		return nil
	}
	return h.app
}
