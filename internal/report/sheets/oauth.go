package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// OAuthConfig builds the installed-app OAuth config from the client
// credentials, with the spreadsheets scope.
func OAuthConfig(creds Credentials) (*oauth2.Config, error) {
	b := []byte(strings.TrimSpace(creds.OAuthClientJSON))
	if len(b) == 0 {
		file := strings.TrimSpace(creds.OAuthClientFile)
		if file == "" {
			return nil, errors.New("missing OAuth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
		}
		var err error
		if b, err = os.ReadFile(file); err != nil {
			return nil, fmt.Errorf("read OAuth client file: %w", err)
		}
	}
	cfg, err := google.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}
	return cfg, nil
}

// LoadToken reads a token written by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return fmt.Errorf("write token: %w", err)
	}
	return f.Close()
}

func newOAuthService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	cfg, err := OAuthConfig(creds)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(creds.OAuthTokenFile)
	if err != nil {
		return nil, err
	}

	service, err := gsheet.NewService(ctx, goption.WithTokenSource(cfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}
