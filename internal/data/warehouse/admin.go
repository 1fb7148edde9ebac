package warehouse

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

// Role and user administration is plain DDL issuance. Identifiers are
// quoted with pgx's sanitizer because DDL cannot take bind parameters.

// CreateUser creates the database user name, described by an optional
// comment.
func (w *Warehouse) CreateUser(ctx context.Context, sess session.Session, name, comment string) error {
	w.log.Info("Creating user", "user", name)

	if err := sess.Exec(ctx, fmt.Sprintf("create user %s", quoteIdent(name))); err != nil {
		return fmt.Errorf("create user %q: %w", name, err)
	}
	if comment != "" {
		stmt := fmt.Sprintf("comment on role %s is %s", quoteIdent(name), quoteLiteral(comment))
		if err := sess.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("comment on role %q: %w", name, err)
		}
	}
	return nil
}

// GrantRoles grants each of roles to username.
func (w *Warehouse) GrantRoles(ctx context.Context, sess session.Session, username string, roles []string) error {
	if len(roles) == 0 {
		w.log.Warn("No roles provided; none will be granted", "user", username)
		return nil
	}
	for _, role := range roles {
		w.log.Info("Granting role", "role", role, "user", username)

		stmt := fmt.Sprintf("grant %s to %s", quoteIdent(role), quoteIdent(username))
		if err := sess.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("grant %q to %q: %w", role, username, err)
		}
	}
	return nil
}

// ResetPassword sets the password for username to a generated random string
// and returns the new password.
func (w *Warehouse) ResetPassword(ctx context.Context, sess session.Session, username string) (string, error) {
	password, err := randomPassword()
	if err != nil {
		return "", err
	}

	w.log.Info("Setting password of user", "user", username)

	stmt := fmt.Sprintf("alter user %s password %s", quoteIdent(username), quoteLiteral(password))
	if err := sess.Exec(ctx, stmt); err != nil {
		return "", fmt.Errorf("reset password of %q: %w", username, err)
	}
	return password, nil
}

func randomPassword() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
