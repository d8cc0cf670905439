package signer

import (
	"bytes"
	"crypto"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// GPGSigner signs with an OpenPGP key selected from a keyring file by
// key identifier.
type GPGSigner struct {
	entity *openpgp.Entity
	clock  func() time.Time
}

// NewGPGSigner loads a keyring (armored or binary) and binds to the key
// matching keyID (a fingerprint or key-id suffix, case-insensitive). An
// empty keyID selects the first key in the ring.
func NewGPGSigner(keyringPath, keyID, passphrase string) (*GPGSigner, error) {
	if keyringPath == "" {
		return nil, fmt.Errorf("%w: keyring path is empty", ErrKeyNotFound)
	}

	keyFile, err := os.Open(keyringPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyNotFound, err)
	}
	defer keyFile.Close()

	entities, err := openpgp.ReadArmoredKeyRing(keyFile)
	if err != nil {
		// retry as a binary keyring
		if _, serr := keyFile.Seek(0, 0); serr != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, serr)
		}
		entities, err = openpgp.ReadKeyRing(keyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	entity, err := selectEntity(entities, keyID)
	if err != nil {
		return nil, err
	}

	if passphrase != "" {
		if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
			if err := entity.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
				return nil, fmt.Errorf("%w: cannot decrypt private key: %v", ErrBackendUnavailable, err)
			}
		}
		for _, subkey := range entity.Subkeys {
			if subkey.PrivateKey != nil && subkey.PrivateKey.Encrypted {
				if err := subkey.PrivateKey.Decrypt([]byte(passphrase)); err != nil {
					return nil, fmt.Errorf("%w: cannot decrypt subkey: %v", ErrBackendUnavailable, err)
				}
			}
		}
	}

	if entity.PrivateKey == nil {
		return nil, fmt.Errorf("%w: key %s has no private part", ErrKeyNotFound, keyID)
	}

	return &GPGSigner{entity: entity, clock: time.Now}, nil
}

// NewGPGSignerFromEntity wraps an in-memory entity, used by tests and by
// callers that manage keys themselves.
func NewGPGSignerFromEntity(entity *openpgp.Entity) *GPGSigner {
	return &GPGSigner{entity: entity, clock: time.Now}
}

// selectEntity finds the keyring entry matching a key identifier.
func selectEntity(entities openpgp.EntityList, keyID string) (*openpgp.Entity, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: keyring is empty", ErrKeyNotFound)
	}

	if keyID == "" {
		return entities[0], nil
	}

	want := normalizeKeyID(keyID)
	for _, entity := range entities {
		fingerprint := strings.ToUpper(fmt.Sprintf("%x", entity.PrimaryKey.Fingerprint))
		if strings.HasSuffix(fingerprint, want) {
			return entity, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, keyID)
}

func normalizeKeyID(keyID string) string {
	keyID = strings.ToUpper(strings.ReplaceAll(keyID, " ", ""))
	return strings.TrimPrefix(keyID, "0X")
}

// Fingerprint returns the bound key's full fingerprint in hex.
func (s *GPGSigner) Fingerprint() string {
	return strings.ToUpper(fmt.Sprintf("%x", s.entity.PrimaryKey.Fingerprint))
}

// checkUsable rejects signing with an expired key.
func (s *GPGSigner) checkUsable() error {
	ident := s.entity.PrimaryIdentity()
	if ident != nil && ident.SelfSignature != nil && s.entity.PrimaryKey.KeyExpired(ident.SelfSignature, s.clock()) {
		return fmt.Errorf("%w: %s", ErrKeyExpired, s.Fingerprint())
	}
	return nil
}

func (s *GPGSigner) config() *packet.Config {
	return &packet.Config{DefaultHash: crypto.SHA512, Time: s.clock}
}

// SignCleartext produces the inline-signed form of data (InRelease).
func (s *GPGSigner) SignCleartext(data []byte) ([]byte, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := clearsign.Encode(&buf, s.entity.PrivateKey, s.config())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return buf.Bytes(), nil
}

// SignDetached produces the armored detached signature of data
// (Release.gpg).
func (s *GPGSigner) SignDetached(data []byte) ([]byte, error) {
	if err := s.checkUsable(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), s.config()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return buf.Bytes(), nil
}

// PublicKey returns the armored public key of the bound entity.
func (s *GPGSigner) PublicKey() ([]byte, error) {
	var buf bytes.Buffer

	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}

	if err := s.entity.Serialize(w); err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
