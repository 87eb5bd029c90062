package spotify

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DeepLinkScheme is the custom URL scheme the desktop shell forwards OAuth redirects with
	DeepLinkScheme = "statisfy"
	// CallbackPath is where the authorization redirect lands
	CallbackPath = "/callback"

	callbackShutdownTimeout = 5 * time.Second
)

var (
	// ErrAuthDenied is returned when the user declined the authorization request
	ErrAuthDenied = errors.New("authorization denied")
	// ErrStateMismatch is returned for redirects that belong to another authorization request
	ErrStateMismatch = errors.New("authorization state mismatch")
	// ErrNoCode is returned for redirects without an authorization code
	ErrNoCode = errors.New("no authorization code in redirect")
)

// ParseCallback extracts the authorization code and state from a redirect. It accepts an
// http(s) redirect URL, a statisfy:// deep link, a bare "/callback?..." request target, or a
// pasted code on its own, which comes back with an empty state.
func ParseCallback(raw string) (code, state string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", ErrNoCode
	}
	if !strings.ContainsAny(raw, "?/:") {
		return raw, "", nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse redirect: %w", err)
	}
	q := u.Query()
	if reason := q.Get("error"); reason != "" {
		return "", "", fmt.Errorf("%w: %s", ErrAuthDenied, reason)
	}
	code = q.Get("code")
	if code == "" {
		return "", "", ErrNoCode
	}
	return code, q.Get("state"), nil
}

// IsDeepLink reports whether arg is a statisfy:// link.
func IsDeepLink(arg string) bool {
	u, err := url.Parse(strings.TrimSpace(arg))
	return err == nil && strings.EqualFold(u.Scheme, DeepLinkScheme)
}

type callbackResult struct {
	code string
	err  error
}

// deliver hands a result to the waiting flow without blocking when one already arrived.
func deliver(results chan<- callbackResult, res callbackResult) {
	select {
	case results <- res:
	default:
	}
}

func checkCallback(raw, state string) (string, error) {
	code, got, err := ParseCallback(raw)
	if err != nil {
		return "", err
	}
	if got != "" && got != state {
		return "", ErrStateMismatch
	}
	return code, nil
}

func callbackHandler(state string, results chan<- callbackResult, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, _, err := ParseCallback(r.URL.String())
		if err == nil && r.URL.Query().Get("state") != state {
			err = ErrStateMismatch
		}
		if errors.Is(err, ErrStateMismatch) || errors.Is(err, ErrNoCode) {
			logger.Warn("Rejected authorization callback", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		deliver(results, callbackResult{code: code, err: err})
		w.Header().Set("Content-Type", "text/html")
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, callbackDeniedPage)
			return
		}
		_, _ = io.WriteString(w, callbackDonePage)
	}
}

const callbackDonePage = `<!DOCTYPE html>
<html><head><title>Statisfy</title></head>
<body><h1>Statisfy is connected to Spotify</h1><p>You can close this window.</p></body></html>`

const callbackDeniedPage = `<!DOCTYPE html>
<html><head><title>Statisfy</title></head>
<body><h1>Authorization was declined</h1><p>Restart Statisfy to try again.</p></body></html>`

// listenAddr is where the callback listener binds: the redirect URL's own host for http
// redirects, the configured fallback for deep links.
func listenAddr(redirectURL, fallback string) string {
	u, err := url.Parse(redirectURL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Port() != "" {
		return u.Host
	}
	return fallback
}

// awaitCode waits for the authorization code from whichever arrives first: a redirect to
// the callback listener, or a code or redirect URL typed on input. ln and input may be nil.
func awaitCode(ctx context.Context, ln net.Listener, input io.Reader, state string, logger *zap.Logger) (string, error) {
	results := make(chan callbackResult, 1)

	if ln != nil {
		mux := http.NewServeMux()
		mux.HandleFunc(CallbackPath, callbackHandler(state, results, logger))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Authorization callback listener stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if input != nil {
		go func() {
			scanner := bufio.NewScanner(input)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				code, err := checkCallback(line, state)
				if err != nil && !errors.Is(err, ErrAuthDenied) {
					logger.Warn("Ignored pasted authorization input", zap.Error(err))
					continue
				}
				deliver(results, callbackResult{code: code, err: err})
				return
			}
		}()
	}

	select {
	case res := <-results:
		return res.code, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
