package signer

import "errors"

// Signing failure modes. All are fatal to a publish operation: the engine
// never publishes an unsigned or partially signed distribution state.
var (
	ErrKeyNotFound        = errors.New("signing key not found")
	ErrKeyExpired         = errors.New("signing key expired")
	ErrBackendUnavailable = errors.New("signing backend unavailable")
)

// Signer produces the signature artifacts of a release manifest. Input
// bytes are treated as opaque and signed verbatim; re-canonicalizing them
// here would break downstream verification.
type Signer interface {
	// SignCleartext produces the inline-signed document (InRelease)
	SignCleartext(data []byte) ([]byte, error)

	// SignDetached produces the detached signature (Release.gpg)
	SignDetached(data []byte) ([]byte, error)

	// PublicKey returns the armored public key for distribution
	PublicKey() ([]byte, error)
}
