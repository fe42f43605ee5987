package keys

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduyeet/authgate/internal/domain/token"
)

func TestGenerateAndShowKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret.jwk")

	var out bytes.Buffer
	require.NoError(t, generateKey(path, "2025-04", &out))
	assert.Contains(t, out.String(), "2025-04")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	key, err := token.LoadJWK(path)
	require.NoError(t, err)
	assert.Equal(t, "2025-04", key.ID)
	assert.Len(t, key.Secret, 32)

	out.Reset()
	require.NoError(t, showKey(path, &out))
	assert.Contains(t, out.String(), "256 bits")
	assert.NotContains(t, out.String(), string(key.Secret))
}

func TestGenerateKey_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.jwk")
	require.NoError(t, generateKey(path, "a", &bytes.Buffer{}))

	err := generateKey(path, "b", &bytes.Buffer{})
	assert.ErrorContains(t, err, "already exists")

	key, err := token.LoadJWK(path)
	require.NoError(t, err)
	assert.Equal(t, "a", key.ID)
}

func TestCommand_UnknownSubcommand(t *testing.T) {
	c := &Command{}
	assert.Error(t, c.Run(nil))
	assert.EqualError(t, c.Run([]string{"rotate"}), "unknown subcommand: rotate")
}
