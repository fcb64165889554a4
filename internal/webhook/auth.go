package webhook

import (
	"net/http"

	"redemption-service/internal/apperror"
	"redemption-service/internal/config"
)

// HeaderProviderToken is the header channel the provider authenticates with.
const HeaderProviderToken = "X-Pushinpay-Token"

// Authenticator gates inbound provider callbacks. Two independent credential
// channels are accepted, either sufficing: a shared secret in the `secret`
// query parameter, or a shared token in the provider header.
type Authenticator struct {
	secret        string
	providerToken string
}

func NewAuthenticator(cfg config.Webhook) *Authenticator {
	return &Authenticator{secret: cfg.Secret, providerToken: cfg.ProviderToken}
}

// Authenticate rejects the request unless one of the configured channels
// matches. A server with neither credential configured fails closed.
func (a *Authenticator) Authenticate(r *http.Request) error {
	if a.secret == "" && a.providerToken == "" {
		return apperror.ErrConfiguration
	}

	secret := r.URL.Query().Get("secret")
	if a.secret != "" && secret != "" && secret == a.secret {
		return nil
	}

	token := r.Header.Get(HeaderProviderToken)
	if a.providerToken != "" && token != "" && token == a.providerToken {
		return nil
	}

	return apperror.ErrUnauthenticated
}
