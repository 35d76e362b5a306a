// Package cloud connects the sync and account flows to Firebase: Firestore as
// the remote document store and Firebase Auth as the identity provider.
package cloud

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"rotinas/internal/config"
)

var ErrNotConfigured = errors.New("firebase: project id or credentials file is required")

// NewApp initializes a Firebase app from a service account file, or from
// application default credentials when only a project id is set.
func NewApp(ctx context.Context, cfg config.FirebaseConfig, log *zap.Logger) (*firebase.App, error) {
	if cfg.ProjectID == "" && cfg.CredentialsFile == "" {
		return nil, ErrNotConfigured
	}
	if log == nil {
		log = zap.NewNop()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		log.Info("using firebase service account", zap.String("path", cfg.CredentialsFile))
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	} else {
		log.Info("using application default credentials for firebase")
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	return app, nil
}
