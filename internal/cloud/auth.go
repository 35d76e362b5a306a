package cloud

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"

	"rotinas/internal/service"
)

// Verifier checks Firebase ID tokens.
type Verifier struct {
	client *auth.Client
}

func NewVerifier(ctx context.Context, app *firebase.App) (*Verifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firebase auth: %w", err)
	}
	return &Verifier{client: client}, nil
}

func (v *Verifier) VerifyIDToken(ctx context.Context, idToken string) (service.Account, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return service.Account{}, err
	}
	return accountFromToken(token), nil
}

func accountFromToken(token *auth.Token) service.Account {
	email, _ := token.Claims["email"].(string)
	return service.Account{UID: token.UID, Email: email}
}
