package migrate

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kycdesk/kycdesk/internal/app/migrate/migrations"
)

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, "postgres://x", nil)
	assert.Error(t, err)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"00001_users.sql", "00002_kyc_submissions.sql"}, files)

	body, err := fs.ReadFile(migrations.FS, "00002_kyc_submissions.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "user_id       TEXT NOT NULL UNIQUE")
}
