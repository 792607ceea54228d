package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"LIBRARY_STORE", "LIBRARY_BOOKS_FILE", "LIBRARY_MEMBERS_FILE", "LIBRARY_DB", "LIBRARY_LOG", "LIBRARY_VERBOSE"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "file", cfg.Store)
	assert.Equal(t, "books.csv", cfg.BooksFile)
	assert.Equal(t, "members.csv", cfg.MembersFile)
	assert.Equal(t, "library.db", cfg.DBPath)
	assert.Empty(t, cfg.LogPath)
	assert.False(t, cfg.Verbose)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LIBRARY_STORE", "sqlite")
	t.Setenv("LIBRARY_DB", "data/lib.db")
	t.Setenv("LIBRARY_VERBOSE", "true")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, "data/lib.db", cfg.DBPath)
	assert.True(t, cfg.Verbose)
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LIBRARY_BOOKS_FILE=from-dotenv.csv\nLIBRARY_MEMBERS_FILE=people.csv\n"), 0o644))
	t.Setenv("LIBRARY_BOOKS_FILE", "from-env.csv")
	t.Setenv("LIBRARY_MEMBERS_FILE", "")
	os.Unsetenv("LIBRARY_MEMBERS_FILE")

	cfg := Load()
	assert.Equal(t, "from-env.csv", cfg.BooksFile)
	assert.Equal(t, "people.csv", cfg.MembersFile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"file ok", Config{Store: "file", BooksFile: "b", MembersFile: "m"}, false},
		{"file missing members", Config{Store: "file", BooksFile: "b"}, true},
		{"sqlite ok", Config{Store: "sqlite", DBPath: "x.db"}, false},
		{"sqlite missing path", Config{Store: "sqlite"}, true},
		{"unknown store", Config{Store: "mongo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
