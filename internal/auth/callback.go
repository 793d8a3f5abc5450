package auth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrStateMismatch is returned when an authorization response carries a
// state other than the one sent with the request.
var ErrStateMismatch = errors.New("oauth state mismatch")

// CallbackServer receives the authorization redirect on a loopback
// redirect URI.
type CallbackServer struct {
	mu            sync.Mutex
	redirect      *url.URL
	expectedState string
	codeChan      chan string
	errChan       chan error
	server        *http.Server
	listener      net.Listener
}

// NewCallbackServer creates a server for redirectURI, which must use a
// loopback host.
func NewCallbackServer(redirectURI, expectedState string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if !IsLoopbackRedirect(redirectURI) {
		return nil, fmt.Errorf("redirect URI %s is not a loopback address", redirectURI)
	}
	return &CallbackServer{
		redirect:      u,
		expectedState: expectedState,
		codeChan:      make(chan string, 1),
		errChan:       make(chan error, 1),
	}, nil
}

// IsLoopbackRedirect reports whether redirectURI can be served locally.
func IsLoopbackRedirect(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Start listens on the redirect URI's host and port.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.redirect.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handleCallback)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.redirect.Host, err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.sendErr(err)
		}
	}()
	return nil
}

// Addr returns the address the server is listening on.
func (s *CallbackServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	code, err := codeFromQuery(r.URL.Query(), s.expectedState)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		s.sendErr(err)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, callbackHTML("Authorization failed", err.Error()))
		return
	}

	select {
	case s.codeChan <- code:
	default:
	}
	fmt.Fprint(w, callbackHTML("Authorization successful", "You can close this window and return to the terminal."))
}

func (s *CallbackServer) sendErr(err error) {
	select {
	case s.errChan <- err:
	default:
	}
}

// WaitForCode blocks until a code arrives, the callback fails, or ctx ends.
func (s *CallbackServer) WaitForCode(ctx context.Context) (string, error) {
	select {
	case code := <-s.codeChan:
		return code, nil
	case err := <-s.errChan:
		return "", err
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for authorization callback: %w", ctx.Err())
	}
}

// Stop shuts the server down.
func (s *CallbackServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ParseAuthorizationResponse extracts the code from what a user pasted:
// either the full redirect URL or the bare code. A URL must carry the
// expected state.
func ParseAuthorizationResponse(input, expectedState string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("no authorization code provided")
	}
	if !strings.Contains(input, "code=") && !strings.Contains(input, "error=") {
		return input, nil
	}

	raw := input
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	query, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	return codeFromQuery(query, expectedState)
}

func codeFromQuery(query url.Values, expectedState string) (string, error) {
	if errParam := query.Get("error"); errParam != "" {
		return "", fmt.Errorf("authorization denied: %s %s", errParam, query.Get("error_description"))
	}
	if query.Get("state") != expectedState {
		return "", ErrStateMismatch
	}
	code := query.Get("code")
	if code == "" {
		return "", errors.New("no authorization code received")
	}
	return code, nil
}

func callbackHTML(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>tanuki</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 15vh">
<h1>%s</h1>
<p>%s</p>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message))
}
