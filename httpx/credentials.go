package httpx

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/oauth"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/config"
)

const refreshTokenTTL = 8760 * time.Hour

// UserStore holds the admin accounts and their refresh tokens.
type UserStore interface {
	CheckPassword(ctx context.Context, username, password string) error
	StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, ttl time.Duration) error
	ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) error
}

type credentialsVerifier struct {
	users UserStore
}

func CredentialsVerifier(users UserStore) oauth.CredentialsVerifier {
	return &credentialsVerifier{users}
}

func NewBearerServer(users UserStore, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(users), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	return cs.users.CheckPassword(r.Context(), username, password)
}
func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.users.StoreToken(context.Background(), credential, tokenID, refreshTokenID, refreshTokenTTL)
}
func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.users.ConsumeToken(context.Background(), credential, tokenID, refreshTokenID)
}
func (*credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{"roles": "admin"}, nil
}
func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}
func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
