// Package identity проверяет токены внешнего провайдера входа.
package identity

import (
	"errors"
	"fmt"
	"strings"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
)

// ErrFederatedDisabled возвращается, если вход через Google не настроен.
var ErrFederatedDisabled = errors.New("federated sign-in is disabled")

// ErrInvalidToken возвращается для недействительного ID-токена.
var ErrInvalidToken = errors.New("invalid id token")

// Claims содержит данные пользователя из ID-токена.
type Claims struct {
	Sub   string
	Email string
	Name  string
}

// GoogleVerifier проверяет ID-токены Google для указанного client id.
type GoogleVerifier struct {
	clientID string
	verifier googleAuthIDTokenVerifier.Verifier
}

// NewGoogleVerifier создаёт проверку токенов. Пустой clientID отключает вход через Google.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: strings.TrimSpace(clientID)}
}

// Verify проверяет подпись и аудиторию токена и возвращает его утверждения.
func (g *GoogleVerifier) Verify(idToken string) (Claims, error) {
	if g == nil || g.clientID == "" {
		return Claims{}, ErrFederatedDisabled
	}

	if err := g.verifier.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claimSet.Sub == "" || claimSet.Email == "" {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Sub:   claimSet.Sub,
		Email: strings.ToLower(claimSet.Email),
		Name:  claimSet.Name,
	}, nil
}
