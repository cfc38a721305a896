package db

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Permissions checked by the API.
const (
	PermMonitor   = "monitor"
	PermControl   = "control"
	PermConfigure = "configure"
)

// Roles and the permissions they grant.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
	RoleAdmin    = "admin"
)

var rolePermissions = map[string][]string{
	RoleViewer:   {PermMonitor},
	RoleOperator: {PermMonitor, PermControl},
	RoleAdmin:    {PermMonitor, PermControl, PermConfigure},
}

// TokenPrefix marks craftcon bearer tokens.
const TokenPrefix = "cc_"

var (
	ErrInvalidToken  = errors.New("invalid or revoked token")
	ErrUnknownRole   = errors.New("unknown role")
	ErrTokenNotFound = errors.New("token not found")
)

// Token is a stored API token. The secret itself is never persisted.
type Token struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Role       string     `json:"role"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	Revoked    bool       `json:"revoked"`
}

// HasPermission reports whether the token's role grants perm.
func (t *Token) HasPermission(perm string) bool {
	return RoleHasPermission(t.Role, perm)
}

// RoleHasPermission reports whether role grants perm.
func RoleHasPermission(role, perm string) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Roles returns the known role names, sorted.
func Roles() []string {
	out := make([]string, 0, len(rolePermissions))
	for r := range rolePermissions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func hashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// CreateToken stores a new token and returns it together with the secret,
// which is only available at creation time.
func (d *Database) CreateToken(label, role string) (*Token, string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if _, ok := rolePermissions[role]; !ok {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if strings.TrimSpace(label) == "" {
		return nil, "", fmt.Errorf("token label is required")
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	secret := TokenPrefix + hex.EncodeToString(raw)

	tok := &Token{
		ID:        uuid.NewString(),
		Label:     label,
		Role:      role,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	_, err := d.Exec(
		"INSERT INTO tokens (id, label, role, hash, created_at) VALUES (?, ?, ?, ?, ?)",
		tok.ID, tok.Label, tok.Role, hashToken(secret), tok.CreatedAt.Unix())
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	log.Info().Str("id", tok.ID).Str("label", label).Str("role", role).Msg("API token created")
	return tok, secret, nil
}

// ListTokens returns all tokens, oldest first.
func (d *Database) ListTokens() ([]Token, error) {
	rows, err := d.Query(
		"SELECT id, label, role, created_at, last_used_at, revoked FROM tokens ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *tok)
	}
	return tokens, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(s scanner) (*Token, error) {
	var (
		tok           Token
		created, used int64
		revoked       int
	)
	if err := s.Scan(&tok.ID, &tok.Label, &tok.Role, &created, &used, &revoked); err != nil {
		return nil, err
	}
	tok.CreatedAt = time.Unix(created, 0).UTC()
	if used > 0 {
		t := time.Unix(used, 0).UTC()
		tok.LastUsedAt = &t
	}
	tok.Revoked = revoked != 0
	return &tok, nil
}

// RevokeToken disables a token by id.
func (d *Database) RevokeToken(id string) error {
	res, err := d.Exec("UPDATE tokens SET revoked = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTokenNotFound
	}
	log.Info().Str("id", id).Msg("API token revoked")
	return nil
}

// Authenticate resolves a bearer secret to its token and records its use.
func (d *Database) Authenticate(secret string) (*Token, error) {
	if !strings.HasPrefix(secret, TokenPrefix) {
		return nil, ErrInvalidToken
	}

	row := d.QueryRow(
		"SELECT id, label, role, created_at, last_used_at, revoked FROM tokens WHERE hash = ?",
		hashToken(secret))
	tok, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	if tok.Revoked {
		return nil, ErrInvalidToken
	}

	now := time.Now().UTC().Truncate(time.Second)
	if _, err := d.Exec("UPDATE tokens SET last_used_at = ? WHERE id = ?", now.Unix(), tok.ID); err != nil {
		log.Warn().Err(err).Str("id", tok.ID).Msg("failed to record token use")
	} else {
		tok.LastUsedAt = &now
	}
	return tok, nil
}

// TokenHasPermission authenticates secret and checks perm against its role.
func (d *Database) TokenHasPermission(secret, perm string) (bool, error) {
	tok, err := d.Authenticate(secret)
	if err != nil {
		return false, err
	}
	return tok.HasPermission(perm), nil
}
