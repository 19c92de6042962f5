package security

import (
	"errors"
	"fmt"

	"github.com/vaultline/trustengine/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes recovery keys with bcrypt. The plaintext key is
// shown to the user exactly once at burn time; only this hash survives.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash recovery key: %w", err)
	}
	return string(hashed), nil
}

func (h *BcryptHasher) Compare(hash, key string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("%w: recovery key mismatch", domain.ErrInvalidRecoveryKey)
		}
		return fmt.Errorf("compare recovery key: %w", err)
	}
	return nil
}
