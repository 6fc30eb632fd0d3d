// Package vault stores credential sets per domain, encrypting each value
// before it reaches a backend.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/VenkatGGG/site-sherpa/internal/logging"
)

// Backend persists already-encrypted values. Put replaces the whole set for a
// domain.
type Backend interface {
	Name() string
	Put(ctx context.Context, domain string, sealed map[string]string) error
	Fetch(ctx context.Context, domain string) (map[string]string, bool, error)
}

type Vault struct {
	backend Backend
	cipher  *Cipher
	logger  *zap.Logger
}

func New(backend Backend, cipher *Cipher, logger *zap.Logger) (*Vault, error) {
	if backend == nil {
		return nil, errors.New("vault backend is required")
	}
	if cipher == nil {
		return nil, errors.New("vault cipher is required")
	}
	return &Vault{backend: backend, cipher: cipher, logger: logging.OrNop(logger)}, nil
}

func (v *Vault) Backend() string {
	return v.backend.Name()
}

// Save encrypts and stores the non-empty values of creds for domain. A set
// with no non-empty values is not written.
func (v *Vault) Save(ctx context.Context, domain string, creds map[string]string) error {
	key := NormalizeDomain(domain)
	if key == "" {
		return errors.New("domain is required")
	}

	sealed := make(map[string]string, len(creds))
	for label, value := range creds {
		label = strings.TrimSpace(label)
		if label == "" || strings.TrimSpace(value) == "" {
			continue
		}
		ciphertext, err := v.cipher.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", label, err)
		}
		sealed[label] = ciphertext
	}
	if len(sealed) == 0 {
		return nil
	}
	if err := v.backend.Put(ctx, key, sealed); err != nil {
		return fmt.Errorf("%s put: %w", v.backend.Name(), err)
	}
	return nil
}

// Get returns the decrypted set for domain. Values that fail to decrypt are
// dropped individually.
func (v *Vault) Get(ctx context.Context, domain string) (map[string]string, bool, error) {
	key := NormalizeDomain(domain)
	if key == "" {
		return nil, false, errors.New("domain is required")
	}
	sealed, ok, err := v.backend.Fetch(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%s fetch: %w", v.backend.Name(), err)
	}
	if !ok {
		return nil, false, nil
	}

	out := make(map[string]string, len(sealed))
	for label, ciphertext := range sealed {
		plaintext, err := v.cipher.Decrypt(ciphertext)
		if err != nil {
			v.logger.Warn("dropping undecryptable credential field",
				zap.String("domain", key),
				zap.String("label", label),
				zap.Error(err),
			)
			continue
		}
		if plaintext == "" {
			continue
		}
		out[label] = plaintext
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}

// Labels returns the stored field labels for domain without decrypting them.
func (v *Vault) Labels(ctx context.Context, domain string) ([]string, error) {
	key := NormalizeDomain(domain)
	if key == "" {
		return nil, errors.New("domain is required")
	}
	sealed, ok, err := v.backend.Fetch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", v.backend.Name(), err)
	}
	if !ok {
		return nil, nil
	}
	labels := make([]string, 0, len(sealed))
	for label := range sealed {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}

// NormalizeDomain lowercases domain and strips a port and a leading "www.".
func NormalizeDomain(domain string) string {
	host := strings.ToLower(strings.TrimSpace(domain))
	if strings.Count(host, ":") == 1 {
		host = host[:strings.Index(host, ":")]
	}
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host, ".")
}
