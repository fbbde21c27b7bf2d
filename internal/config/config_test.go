package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Store: StoreConfig{
			Driver:   DriverSQLite,
			DataPath: "/some/path",
		},
		Notifier: NotifierConfig{
			Enabled:     true,
			Schedule:    "0 0 * * *",
			OverdueDays: 4,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_Store(t *testing.T) {
	tests := []struct {
		name    string
		store   StoreConfig
		wantErr string
	}{
		{"sqlite", StoreConfig{Driver: DriverSQLite, DataPath: "/data"}, ""},
		{"badger", StoreConfig{Driver: DriverBadger, DataPath: "/data"}, ""},
		{"postgres", StoreConfig{Driver: DriverPostgres, PostgresDSN: "postgres://localhost/library"}, ""},
		{"postgres without dsn", StoreConfig{Driver: DriverPostgres}, "POSTGRES_DSN is required"},
		{"empty data path", StoreConfig{Driver: DriverBadger}, "data path cannot be empty"},
		{"unknown driver", StoreConfig{Driver: "mongo", DataPath: "/data"}, "invalid store driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Store = tt.store

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Notifier(t *testing.T) {
	cfg := validConfig()
	cfg.Notifier.OverdueDays = 0
	assert.ErrorContains(t, cfg.Validate(), "overdue days")

	cfg = validConfig()
	cfg.Notifier.Schedule = ""
	assert.ErrorContains(t, cfg.Validate(), "schedule is required")

	// A disabled notifier needs no schedule.
	cfg.Notifier.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MailRequiresSender(t *testing.T) {
	cfg := validConfig()
	cfg.Mail.SMTPHost = "smtp.example.com"
	assert.ErrorContains(t, cfg.Validate(), "MAIL_FROM")

	cfg.Mail.From = "library@example.com"
	assert.NoError(t, cfg.Validate())
}

func TestExpandDataPath_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	expected := filepath.Join(homeDir, "LibraryAPI", "data")
	assert.Equal(t, expected, cfg.Store.DataPath)
}

func TestExpandDataPath_TildeExpansion(t *testing.T) {
	cfg := &Config{Store: StoreConfig{DataPath: "~/my-data"}}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "my-data"), cfg.Store.DataPath)
}

func TestExpandDataPath_RelativePath(t *testing.T) {
	cfg := &Config{Store: StoreConfig{DataPath: "relative/path"}}

	err := cfg.expandDataPath()
	require.NoError(t, err)

	// Should be converted to absolute path.
	assert.True(t, filepath.IsAbs(cfg.Store.DataPath))
	assert.Contains(t, cfg.Store.DataPath, "relative/path")
}

func TestGetConfigValue_Precedence(t *testing.T) {
	// Test flag value takes priority.
	result := getConfigValue("flag-value", "ENV_KEY", "default-value")
	assert.Equal(t, "flag-value", result)

	// Test env var when flag is empty.
	t.Setenv("TEST_ENV_KEY", "env-value")

	result = getConfigValue("", "TEST_ENV_KEY", "default-value")
	assert.Equal(t, "env-value", result)

	// Test default when both are empty.
	result = getConfigValue("", "NONEXISTENT_KEY", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestGetIntAndBoolConfigValue(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_BOOL", "Yes")

	assert.Equal(t, 12, getIntConfigValue("", "TEST_INT", 3))
	assert.Equal(t, 3, getIntConfigValue("", "TEST_BAD_INT", 3))
	assert.Equal(t, 7, getIntConfigValue("7", "TEST_INT", 3))

	assert.True(t, getBoolConfigValue("", "TEST_BOOL", false))
	assert.False(t, getBoolConfigValue("no", "TEST_BOOL", true))
	assert.True(t, getBoolConfigValue("", "TEST_MISSING_BOOL", true))
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("", "TEST_MISSING_DURATION", "15s")
	require.NoError(t, err)
	assert.Equal(t, "15s", d.String())

	_, err = parseDuration("soon", "TEST_MISSING_DURATION", "15s")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a , ,http://b"))
	assert.Nil(t, splitList(""))
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
ENV=staging
STORE_DRIVER=badger
# Comment line
QUOTED_VALUE="some value"
SINGLE_QUOTED='another value'
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))

	// t.Setenv registers cleanup; clearing makes the .env values apply.
	for _, key := range []string{"ENV", "STORE_DRIVER", "QUOTED_VALUE", "SINGLE_QUOTED"} {
		t.Setenv(key, "")
	}

	err := loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "staging", os.Getenv("ENV"))
	assert.Equal(t, "badger", os.Getenv("STORE_DRIVER"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
	assert.Equal(t, "another value", os.Getenv("SINGLE_QUOTED"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o644))
	t.Setenv("VALID_KEY", "")

	err := loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	err := loadEnvFile("/nonexistent/file/.env")
	assert.Error(t, err)
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	t.Setenv("TEST_VAR", "original-value")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`TEST_VAR=new-value`), 0o644))

	require.NoError(t, loadEnvFile(envFile))

	// Original value should be preserved.
	assert.Equal(t, "original-value", os.Getenv("TEST_VAR"))
}

func TestLoadEnvFile_Whitespace(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(`  KEY_WITH_SPACES  =  value with spaces  `), 0o644))
	t.Setenv("KEY_WITH_SPACES", "")

	require.NoError(t, loadEnvFile(envFile))

	// Whitespace should be trimmed.
	assert.Equal(t, "value with spaces", os.Getenv("KEY_WITH_SPACES"))
}
