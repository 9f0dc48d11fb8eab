package sheets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gsheet "google.golang.org/api/sheets/v4"
)

const testClientJSON = `{"installed":{"client_id":"client-1","client_secret":"secret",` +
	`"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

func TestOAuthConfig(t *testing.T) {
	cfg, err := OAuthConfig(Credentials{OAuthClientJSON: testClientJSON})
	require.NoError(t, err)
	assert.Equal(t, "client-1", cfg.ClientID)
	assert.Equal(t, []string{gsheet.SpreadsheetsScope}, cfg.Scopes)

	file := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(file, []byte(testClientJSON), 0o600))
	cfg, err = OAuthConfig(Credentials{OAuthClientFile: file})
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.ClientSecret)

	_, err = OAuthConfig(Credentials{})
	assert.ErrorContains(t, err, "missing OAuth client")

	_, err = OAuthConfig(Credentials{OAuthClientJSON: `{"other":{}}`})
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	expiry := time.Date(2026, 10, 17, 16, 0, 0, 0, time.UTC)
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: expiry}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "rt", tok.RefreshToken)
	assert.True(t, tok.Expiry.Equal(expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNew_OAuthToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "at", RefreshToken: "rt"}))

	exp, err := New(context.Background(), "sheet-1", Credentials{
		OAuthClientJSON: testClientJSON,
		OAuthTokenFile:  path,
	})
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", exp.spreadsheetID)
}
