package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"billtrack/internal/report/sheets"
)

const authTimeout = 5 * time.Minute

func newSheetsAuthCommand(a *app) *cobra.Command {
	var tokenFile string

	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize Google Sheets export with a user account and save the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tokenFile == "" {
				tokenFile = a.cfg.GoogleOAuthTokenFile
			}
			if tokenFile == "" {
				tokenFile = "token.json"
			}
			return runSheetsAuth(cmd, a, tokenFile)
		},
	}

	cmd.Flags().StringVar(&tokenFile, "token-file", "", "where to save the token (default $GOOGLE_OAUTH_TOKEN_FILE or token.json)")
	return cmd
}

func runSheetsAuth(cmd *cobra.Command, a *app, tokenFile string) error {
	oc, err := sheets.OAuthConfig(sheetCredentials(a.cfg))
	if err != nil {
		return err
	}
	// The OAuth client must list this URI among its authorized redirects.
	oc.RedirectURL = "http://localhost:" + a.cfg.OAuthRedirectPort + "/callback"

	ctx, stop := GracefulShutdown(cmd.Context(), a.logger)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		if msg := r.URL.Query().Get("error"); msg != "" {
			http.Error(w, "OAuth error: "+msg, http.StatusBadRequest)
			notify(errCh, fmt.Errorf("authorization denied: %s", msg))
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		notify(codeCh, r.URL.Query().Get("code"))
	})
	srv := &http.Server{Addr: ":" + a.cfg.OAuthRedirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			notify(errCh, err)
		}
	}()
	defer srv.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize:\n%s\n", oc.AuthCodeURL("billtrack", oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("authorization not completed: %w", ctx.Err())
	}

	tok, err := oc.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	if err := sheets.SaveToken(tokenFile, tok); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved token to %s\n", tokenFile)
	return err
}

// notify delivers only the first value; later callbacks are dropped.
func notify[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}
