package testutil

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/lepinkainen/ook/internal/config"
)

// ResetConfig resets viper to the application defaults for the duration of
// the test.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	config.SetDefaults()
	t.Cleanup(viper.Reset)
}

// SetupTestDB points the library and cache databases into env and returns
// the library path. It implies ResetConfig.
func SetupTestDB(t *testing.T, env *TestEnv) string {
	t.Helper()

	ResetConfig(t)
	dbPath := env.Path("ook.db")
	viper.Set("db.path", dbPath)
	viper.Set("cache.dbfile", env.Path("cache.db"))
	return dbPath
}
