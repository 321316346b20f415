package identity

import (
	"context"
	"errors"

	"cloud.google.com/go/auth/credentials/idtoken"
)

// FederatedClaims is what a federated credential proves about its holder.
type FederatedClaims struct {
	Subject string
	Email   string
	Name    string
}

// FederatedVerifier validates a credential issued by an external identity provider.
type FederatedVerifier interface {
	Verify(ctx context.Context, credential string) (FederatedClaims, error)
}

// GoogleVerifier validates Google ID tokens for one OAuth client.
type GoogleVerifier struct {
	ClientID string
}

func (g GoogleVerifier) Verify(ctx context.Context, credential string) (FederatedClaims, error) {
	payload, err := idtoken.Validate(ctx, credential, g.ClientID)
	if err != nil {
		return FederatedClaims{}, err
	}

	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	if email == "" {
		return FederatedClaims{}, errors.New("google token carries no email")
	}
	return FederatedClaims{Subject: payload.Subject, Email: email, Name: name}, nil
}
