package teams

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	goerrors "github.com/goliatone/go-errors"
)

// NewInviteToken mints an opaque, single-use invitation token. Only its hash
// is persisted; the raw token travels to the invitee out of band.
func NewInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate invite token")
	}
	return hex.EncodeToString(buf), nil
}

// HashInviteToken returns the storable digest of an invitation token. Opaque
// random tokens carry full entropy already, so a plain SHA-256 suffices; no
// KDF is needed.
func HashInviteToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
