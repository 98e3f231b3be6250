// Package auth obtains member credentials, either through the three-legged
// OAuth 1.0a handshake in the browser or from pre-issued tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/lherron/ttags/internal/logging"
)

// DefaultBaseURL hosts the OAuth endpoints
const DefaultBaseURL = "https://trello.com/1"

const (
	defaultExpiration = "1day"
	defaultTimeout    = 5 * time.Minute
	appName           = "TTags"
	appScope          = "read,write"
)

// ErrAuthDenied is returned when the handshake does not produce credentials
var ErrAuthDenied = errors.New("authorization denied")

// Credentials identify the application and the member it acts for.
type Credentials struct {
	Key         string
	Token       string
	TokenSecret string
}

// Valid reports whether the credentials can be used for API calls.
func (c Credentials) Valid() bool {
	return c.Key != "" && c.Token != ""
}

// Authorizer produces credentials, blocking until it is done.
type Authorizer interface {
	Authorize(ctx context.Context) (Credentials, error)
}

// Static hands out credentials that were issued ahead of time.
type Static struct {
	Credentials Credentials
}

// Authorize implements Authorizer.
func (s Static) Authorize(context.Context) (Credentials, error) {
	if !s.Credentials.Valid() {
		return Credentials{}, fmt.Errorf("%w: api key and token are both required", ErrAuthDenied)
	}
	return s.Credentials, nil
}

// OpenBrowser opens url in the user's default browser.
func OpenBrowser(url string) error {
	return browser.OpenURL(url)
}

// OAuth runs the three-legged handshake: fetch a request token, send the
// user to the authorize page, wait for the redirect on a local listener,
// then trade the verifier for an access token.
type OAuth struct {
	ClientKey    string
	ClientSecret string
	// BaseURL hosts OAuthGetRequestToken, OAuthAuthorizeToken and
	// OAuthGetAccessToken.
	BaseURL string
	// Port for the local callback listener. 0 picks a free port.
	Port       int
	Expiration string
	Timeout    time.Duration
	// Open sends the user to the authorization page.
	Open func(url string) error
	// Out receives instructions for the user.
	Out io.Writer
	Log logrus.FieldLogger
}

type callbackResult struct {
	token    string
	verifier string
	err      error
}

// Authorize implements Authorizer.
func (o *OAuth) Authorize(ctx context.Context) (Credentials, error) {
	log := logging.OrDiscard(o.Log)
	out := o.Out
	if out == nil {
		out = io.Discard
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(o.Port)))
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to start callback listener: %w", err)
	}
	returnURL := "http://localhost:" + strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)

	config := o.config(returnURL)

	requestToken, requestSecret, err := config.RequestToken()
	if err != nil {
		listener.Close()
		return Credentials{}, fmt.Errorf("%w: request token: %v", ErrAuthDenied, err)
	}

	authURL, err := config.AuthorizationURL(requestToken)
	if err != nil {
		listener.Close()
		return Credentials{}, fmt.Errorf("%w: authorization url: %v", ErrAuthDenied, err)
	}
	o.decorate(authURL, returnURL)

	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: callbackHandler(results), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("callback listener stopped")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("return_url", returnURL).Debug("awaiting oauth redirect")
	fmt.Fprintln(out, "Check your browser! Log in and authorize this application in the new tab.")
	if o.Open != nil {
		if err := o.Open(authURL.String()); err != nil {
			log.WithError(err).Warn("could not open browser")
			fmt.Fprintf(out, "Open this URL to continue:\n  %s\n", authURL.String())
		}
	} else {
		fmt.Fprintf(out, "Open this URL to continue:\n  %s\n", authURL.String())
	}

	var result callbackResult
	select {
	case result = <-results:
	case <-ctx.Done():
		return Credentials{}, fmt.Errorf("%w: no redirect received: %v", ErrAuthDenied, ctx.Err())
	}
	if result.err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrAuthDenied, result.err)
	}
	if result.token != requestToken {
		return Credentials{}, fmt.Errorf("%w: callback token does not match request token", ErrAuthDenied)
	}

	accessToken, accessSecret, err := config.AccessToken(requestToken, requestSecret, result.verifier)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: access token: %v", ErrAuthDenied, err)
	}

	return Credentials{
		Key:         o.ClientKey,
		Token:       accessToken,
		TokenSecret: accessSecret,
	}, nil
}

func (o *OAuth) config(callbackURL string) *oauth1.Config {
	base := strings.TrimRight(o.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &oauth1.Config{
		ConsumerKey:    o.ClientKey,
		ConsumerSecret: o.ClientSecret,
		CallbackURL:    callbackURL,
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: base + "/OAuthGetRequestToken",
			AuthorizeURL:    base + "/OAuthAuthorizeToken",
			AccessTokenURL:  base + "/OAuthGetAccessToken",
		},
	}
}

// decorate adds the application name, scope and expiry the authorize page
// shows to the user.
func (o *OAuth) decorate(authURL *url.URL, returnURL string) {
	expiration := o.Expiration
	if expiration == "" {
		expiration = defaultExpiration
	}
	q := authURL.Query()
	q.Set("name", appName)
	q.Set("scope", appScope)
	q.Set("expiration", expiration)
	q.Set("return_url", returnURL)
	authURL.RawQuery = q.Encode()
}

func callbackHandler(results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		token, verifier, err := oauth1.ParseAuthorizationCallback(r)
		select {
		case results <- callbackResult{token: token, verifier: verifier, err: err}:
		default:
		}

		w.Header().Set("Content-Type", "text/html")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, "Authorization failed. You may close this window and head back to the command line.")
			return
		}
		io.WriteString(w, "Authorization almost complete! You may close this window and head back to the command line.")
	})
}
