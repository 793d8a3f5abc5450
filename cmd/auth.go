package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/auth"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/output"
)

// loginTimeout bounds the wait for the browser redirect.
const loginTimeout = 5 * time.Minute

// NewCmdAuth creates the auth command with subcommands.
func NewCmdAuth() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to GitLab",
	}

	cmd.AddCommand(newCmdAuthLogin())
	cmd.AddCommand(newCmdAuthLogout())
	cmd.AddCommand(newCmdAuthStatus())

	return cmd
}

func newCmdAuthLogin() *cobra.Command {
	var manual bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with OAuth (authorization code + PKCE)",
		Long: `Sign in with the OAuth application configured under oauth.client_id.

The authorize URL is printed for you to open in a browser. When the
redirect URI points at this machine (127.0.0.1 or localhost) tanuki waits
for the redirect itself; otherwise, or with --manual, paste the URL you
were redirected to (or just the code) when prompted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd, manual)
		},
	}

	cmd.Flags().BoolVar(&manual, "manual", false, "Paste the redirect URL instead of listening for it")

	return cmd
}

func runAuthLogin(cmd *cobra.Command, manual bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	cfg := a.cfg
	if cfg.OAuth.ClientID == "" {
		return errors.New("oauth.client_id is not configured; run 'tanuki config set oauth.client_id <id>' or set TANUKI_OAUTH_CLIENT_ID")
	}

	verifier, err := auth.GenerateCodeVerifier(auth.DefaultVerifierLength)
	if err != nil {
		return err
	}
	state := uuid.NewString()
	authURL := a.oauth.AuthorizationURL(cfg.OAuth.ClientID, cfg.OAuth.RedirectURI, cfg.OAuth.Scopes,
		auth.GenerateCodeChallenge(verifier), state)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Open this URL in your browser to authorize tanuki:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  "+authURL)
	fmt.Fprintln(out)

	ctx := cmd.Context()
	var code string
	if !manual && auth.IsLoopbackRedirect(cfg.OAuth.RedirectURI) {
		code, err = waitForCallback(ctx, cfg.OAuth.RedirectURI, state, out)
	} else {
		code, err = promptForCode(cmd.InOrStdin(), out, state)
	}
	if err != nil {
		return err
	}

	tok, err := a.oauth.ExchangeCode(ctx, code, cfg.OAuth.RedirectURI, cfg.OAuth.ClientID, verifier)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %s", api.UserMessage(err))
	}
	if err := a.auth.Store(ctx, tok); err != nil {
		return err
	}

	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		log.Warn("signed in but could not load the current user", "error", err)
		fmt.Fprintln(out, output.Success("Signed in."))
		return nil
	}
	fmt.Fprintln(out, output.Success(fmt.Sprintf("Signed in as %s (@%s).", user.Name, user.Username)))
	return nil
}

func waitForCallback(ctx context.Context, redirectURI, state string, out io.Writer) (string, error) {
	srv, err := auth.NewCallbackServer(redirectURI, state)
	if err != nil {
		return "", err
	}
	if err := srv.Start(); err != nil {
		return "", err
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			log.Debug("callback server shutdown", "error", err)
		}
	}()

	fmt.Fprintf(out, "Waiting for the redirect on %s ...\n", redirectURI)
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()
	return srv.WaitForCode(ctx)
}

func promptForCode(in io.Reader, out io.Writer, state string) (string, error) {
	fmt.Fprint(out, "Paste the redirect URL or code: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return auth.ParseAuthorizationResponse(line, state)
}

func newCmdAuthLogout() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if err := a.auth.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("failed to sign out: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), output.Success("Signed out."))
			return nil
		},
	}
}

func newCmdAuthStatus() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who you are signed in as",
		RunE:  runAuthStatus,
	}
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintln(out, output.Field("Instance", a.cfg.BaseURL))
	fmt.Fprintln(out, output.Field("Credentials", a.tokens.Path()))

	tok, err := a.auth.ValidToken(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			fmt.Fprintln(out, output.Warning("Not signed in. Run 'tanuki auth login'."))
			return nil
		}
		return fmt.Errorf("failed to load token: %s", api.UserMessage(err))
	}

	if expiresAt, ok := tok.ExpiresAt(); ok {
		fmt.Fprintln(out, output.Field("Token expires", expiresAt.Local().Format(time.RFC1123)))
	} else {
		fmt.Fprintln(out, output.Field("Token expires", "never"))
	}
	if tok.Scope != "" {
		fmt.Fprintln(out, output.Field("Scopes", tok.Scope))
	}

	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		fmt.Fprintln(out, output.Failure("Token rejected: "+api.UserMessage(err)))
		return nil
	}
	fmt.Fprintln(out, output.Success(fmt.Sprintf("Signed in as %s (@%s)", user.Name, user.Username)))
	return nil
}

