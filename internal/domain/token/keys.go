package token

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

const secretSize = 32

// Key is the HMAC secret used by the codec. ID is set when the secret came from a JWK.
type Key struct {
	ID     string
	Secret []byte
}

// LoadSecret resolves the signing secret. An explicit secret wins over a key file.
func LoadSecret(envSecret, jwkPath string) (Key, error) {
	if envSecret != "" {
		return Key{Secret: []byte(envSecret)}, nil
	}
	if jwkPath == "" {
		return Key{}, ErrMissingSecret
	}
	return LoadJWK(jwkPath)
}

// LoadJWK reads a symmetric (oct) JWK from path.
func LoadJWK(path string) (Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Key{}, fmt.Errorf("failed to read key file %s: %w", path, err)
	}
	return ParseJWK(data)
}

// ParseJWK decodes a symmetric (oct) JWK.
func ParseJWK(data []byte) (Key, error) {
	k, err := jwk.ParseKey(data)
	if err != nil {
		return Key{}, fmt.Errorf("failed to parse key: %w", err)
	}

	var secret []byte
	if err := jwk.Export(k, &secret); err != nil {
		return Key{}, fmt.Errorf("key is not a symmetric key: %w", err)
	}
	if len(secret) == 0 {
		return Key{}, ErrMissingSecret
	}

	kid, _ := k.KeyID()
	return Key{ID: kid, Secret: secret}, nil
}

// GenerateJWK creates a random 256-bit HMAC key and returns it as JSON.
func GenerateJWK(kid string) ([]byte, error) {
	if kid == "" {
		return nil, errors.New("key ID is required")
	}

	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	k, err := jwk.Import(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to convert secret to JWK: %w", err)
	}
	if err := k.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := k.Set(jwk.AlgorithmKey, jwa.HS256()); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	data, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode key: %w", err)
	}
	return data, nil
}
