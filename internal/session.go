package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// issueSessionToken writes a fresh random token to path, readable by the
// current user only, and returns it. The shell reads the file to learn the
// Bearer token for this run.
func issueSessionToken(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create token dir: %w", err)
	}
	token := uuid.NewString()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("write session token: %w", err)
	}
	// An existing file keeps its old mode through O_TRUNC.
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write session token: %w", err)
	}
	if _, err := f.WriteString(token); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write session token: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write session token: %w", err)
	}
	return token, nil
}

// resolveToken returns the Bearer token the API enforces for this run and a
// cleanup func that removes any file it issued.
func resolveToken(cfg *AuthConfig) (string, func(), error) {
	switch cfg.Mode {
	case AuthModeSession:
		token, err := issueSessionToken(cfg.TokenFile)
		if err != nil {
			return "", nil, err
		}
		return token, func() { _ = os.Remove(cfg.TokenFile) }, nil
	case AuthModeToken:
		return cfg.Token, func() {}, nil
	default:
		return "", func() {}, nil
	}
}
