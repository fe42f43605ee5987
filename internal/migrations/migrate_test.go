package migrations

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/eduyeet/authgate/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_InvalidConfig(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		assert.Error(t, RunMigrations(nil))
	})

	t.Run("empty database config", func(t *testing.T) {
		err := RunMigrations(&config.Config{})
		assert.ErrorContains(t, err, "database host and name are required")
	})

	t.Run("unreachable database", func(t *testing.T) {
		cfg := &config.Config{
			Database: config.DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     1,
				User:     "nobody",
				Password: "nothing",
				DBName:   "authgate",
				SSLMode:  "disable",
			},
		}

		err := RunMigrations(cfg)
		assert.ErrorContains(t, err, "failed to create migrate instance")
	})
}

func TestMigrationFiles(t *testing.T) {
	entries, err := fs.ReadDir(migrationFS, "sql")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_[a-z_]+\.(up|down)\.sql$`)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		assert.Regexp(t, pattern, name)
		base := strings.TrimSuffix(strings.TrimSuffix(name, ".up.sql"), ".down.sql")
		if strings.HasSuffix(name, ".up.sql") {
			ups[base] = true
		} else {
			downs[base] = true
		}
	}

	assert.Len(t, ups, 3)
	assert.Equal(t, ups, downs, "every up migration has a matching down")
}

func TestSessionsMigration_RevocationColumns(t *testing.T) {
	data, err := fs.ReadFile(migrationFS, "sql/000002_create_sessions_table.up.sql")
	require.NoError(t, err)

	sql := string(data)
	for _, column := range []string{"revoked_at", "revoked_by", "revoked_by_ip", "revoked_reason", "expires_at", "last_used"} {
		assert.Contains(t, sql, column)
	}
	assert.NotContains(t, strings.ToUpper(sql), "DELETE FROM")
}
