package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const signingSecretKey = "signing_secret"

// GetSigningSecret retrieves the token signing secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Insert-if-absent followed by a re-select keeps concurrent startups in
// agreement on a single value.
func GetSigningSecret(ctx context.Context, db *sqlx.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating signing secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		db.Rebind(`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`),
		signingSecretKey, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing signing secret: %w", err)
	}

	var secret string
	err = db.GetContext(ctx, &secret,
		db.Rebind(`SELECT value FROM settings WHERE key = ?`), signingSecretKey,
	)
	if err != nil {
		return "", fmt.Errorf("querying signing secret: %w", err)
	}

	return secret, nil
}
