package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/uqtable/internal/store"
)

func TestApplyStoreDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   StoreConfig
		want StoreConfig
	}{
		{
			name: "empty is sqlite",
			want: StoreConfig{Type: "sqlite", Database: DefaultStoreDatabase},
		},
		{
			name: "sqlite keeps database",
			in:   StoreConfig{Type: "sqlite", Database: "x.db"},
			want: StoreConfig{Type: "sqlite", Database: "x.db"},
		},
		{
			name: "postgres port and sslmode",
			in:   StoreConfig{Type: "postgres", Database: "uq"},
			want: StoreConfig{Type: "postgres", Database: "uq", Port: 5432, SSLMode: "disable"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			ApplyStoreDefaults(&got)
			assert.Equal(t, tt.want, got)
		})
	}
	ApplyStoreDefaults(nil)
}

func TestValidateStore(t *testing.T) {
	assert.NoError(t, ValidateStore(nil))
	assert.NoError(t, ValidateStore(&StoreConfig{Type: "sqlite"}))
	assert.NoError(t, ValidateStore(&StoreConfig{Type: "Postgres", Database: "uq"}))
	assert.ErrorContains(t, ValidateStore(&StoreConfig{}), "store type is required")
	assert.ErrorContains(t, ValidateStore(&StoreConfig{Type: "postgres"}), "database is required")

	err := ValidateStore(&StoreConfig{Type: "mysql"})
	var ue *store.UnknownStoreTypeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "mysql", ue.Type)
}

func TestValidateFormatAndPartition(t *testing.T) {
	assert.NoError(t, ValidateFormat("csv"))
	assert.Error(t, ValidateFormat("xlsx"))
	assert.NoError(t, ValidatePartition(&PartitionConfig{Column: 2}))
	assert.Error(t, ValidatePartition(&PartitionConfig{Column: -1}))
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	content := `format: json
partition:
  column: 1
store:
  type: postgres
  database: results
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameAlt), []byte(content), 0o600))

	cfg, err = LoadFromDir(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, PartitionConfig{Sentinel: DefaultSentinel, Column: 1}, *cfg.Partition)
	assert.Equal(t, StoreConfig{Type: "postgres", Database: "results", Port: 5432, SSLMode: "disable"}, *cfg.Store)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("format: csv\n"), 0o600))

	assert.Equal(t, root, FindProjectRoot(nested, 5))
	assert.Equal(t, "", FindProjectRoot(nested, 1))
	assert.Equal(t, filepath.Join(root, ConfigFileName), FindConfigFile(root))
}
