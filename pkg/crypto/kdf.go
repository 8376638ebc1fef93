package crypto

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KDFParams are the Argon2id cost factors used to stretch configured
// passphrases into signing keys.
type KDFParams struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLength uint32
}

// DefaultKDFParams follows the Argon2id minimums recommended for
// interactive use (19 MiB, two passes).
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 2, MemoryKiB: 19 * 1024, Threads: 1, KeyLength: 32}
}

func (p KDFParams) validate() error {
	switch {
	case p.Time == 0:
		return fmt.Errorf("kdf: time cost must be greater than zero")
	case p.Threads == 0:
		return fmt.Errorf("kdf: threads must be greater than zero")
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("kdf: memory must be at least 8 KiB per thread")
	case p.KeyLength < 32:
		return fmt.Errorf("kdf: key length must be at least 32 bytes (got %d)", p.KeyLength)
	}
	return nil
}

// DeriveSigningKey stretches passphrase with salt. The same inputs always
// produce the same key, so every replica signing with a shared passphrase and
// salt accepts the others' tokens.
func DeriveSigningKey(passphrase, salt string, params KDFParams) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("kdf: passphrase is required")
	}
	if len(salt) < 16 {
		return nil, fmt.Errorf("kdf: salt must be at least 16 bytes (got %d)", len(salt))
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey([]byte(passphrase), []byte(salt), params.Time, params.MemoryKiB, params.Threads, params.KeyLength), nil
}
