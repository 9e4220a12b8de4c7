package googleauth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var ErrInvalidIDToken = errors.New("invalid google id token")

type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Verifier checks Google ID tokens issued for a single OAuth client id.
type Verifier struct {
	clientID string
}

func NewVerifier(clientID string) *Verifier {
	return &Verifier{clientID: clientID}
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if v.clientID == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID is not configured")
	}

	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, ErrInvalidIDToken
	}

	id := &Identity{Subject: payload.Subject}
	id.Email, _ = payload.Claims["email"].(string)
	id.Name, _ = payload.Claims["name"].(string)
	id.Picture, _ = payload.Claims["picture"].(string)
	id.EmailVerified = emailVerified(payload.Claims)
	if id.Email == "" {
		return nil, ErrInvalidIDToken
	}
	return id, nil
}

// emailVerified reads the email_verified claim, which Google has sent both as
// a JSON bool and as the string "true".
func emailVerified(claims map[string]interface{}) bool {
	switch v := claims["email_verified"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
