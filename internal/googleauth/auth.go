package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
)

// Scopes requested for one combined token covering both stores.
var Scopes = []string{
	drive.DriveScope,
	"https://www.googleapis.com/auth/photoslibrary",
}

// Client builds an authenticated HTTP client from the stored credential and
// token files. The returned client refreshes its token transparently.
func Client(ctx context.Context, credentialsFile, tokenFile string) (*http.Client, error) {
	cfg, err := loadConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	token, err := loadToken(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("load token: %w (run `drivesync auth` first)", err)
	}
	return cfg.Client(ctx, token), nil
}

// AuthCodeURL returns the browser URL to start the installed-app flow.
func AuthCodeURL(credentialsFile string) (string, error) {
	cfg, err := loadConfig(credentialsFile)
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline), nil
}

// Exchange redeems the pasted authorization code and persists the token.
func Exchange(ctx context.Context, credentialsFile, tokenFile, code string) error {
	cfg, err := loadConfig(credentialsFile)
	if err != nil {
		return err
	}
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(tokenFile, token)
}

func loadConfig(credentialsFile string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return cfg, nil
}

func loadToken(tokenFile string) (*oauth2.Token, error) {
	file, err := os.Open(tokenFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(file).Decode(token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return token, nil
}

func saveToken(tokenFile string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	file, err := os.OpenFile(tokenFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(token)
}
