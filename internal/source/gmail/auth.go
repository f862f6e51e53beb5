package gmail

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes are the OAuth scopes the provider needs.
var Scopes = []string{gmailv1.GmailReadonlyScope, gmailv1.GmailSendScope}

// ParseToken decodes an OAuth token document.
func ParseToken(data []byte) (*oauth2.Token, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decoding oauth token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("decoding oauth token: no access or refresh token")
	}
	return &tok, nil
}

// NewService builds a Gmail service from the OAuth client credentials
// document and an already-issued token. Token refresh is left to the
// oauth2 token source; no authorization flow is started here.
func NewService(ctx context.Context, credentialsJSON []byte, tok *oauth2.Token) (*gmailv1.Service, error) {
	cfg, err := google.ConfigFromJSON(credentialsJSON, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parsing oauth client credentials: %w", err)
	}

	svc, err := gmailv1.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return svc, nil
}
