package cloud

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"

	"rotinas/internal/cloudsync"
	"rotinas/internal/config"
	"rotinas/internal/service"
)

var (
	_ cloudsync.RemoteStore    = (*Store)(nil)
	_ service.IdentityVerifier = (*Verifier)(nil)
)

func TestNewApp_RequiresProjectOrCredentials(t *testing.T) {
	_, err := NewApp(context.Background(), config.FirebaseConfig{SyncEnabled: true}, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("NewApp error = %v, want ErrNotConfigured", err)
	}
}

func TestAccountFromToken(t *testing.T) {
	tests := []struct {
		name  string
		token *auth.Token
		want  service.Account
	}{
		{"with email", &auth.Token{UID: "u1", Claims: map[string]interface{}{"email": "ana@example.com"}}, service.Account{UID: "u1", Email: "ana@example.com"}},
		{"without claims", &auth.Token{UID: "u2"}, service.Account{UID: "u2"}},
		{"non-string email", &auth.Token{UID: "u3", Claims: map[string]interface{}{"email": 7}}, service.Account{UID: "u3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accountFromToken(tt.token); got != tt.want {
				t.Errorf("accountFromToken = %+v, want %+v", got, tt.want)
			}
		})
	}
}
