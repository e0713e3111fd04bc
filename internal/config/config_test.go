package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "btide.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeConfig(t, `
directory: /srv/packages
max_peers: 12
port: 8080
admin_addr: 127.0.0.1:9090
log_level: debug
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/packages", cfg.Directory)
	require.Equal(t, 12, cfg.MaxPeers)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "127.0.0.1:9090", cfg.AdminAddr)
	require.Equal(t, filepath.Join("/srv/packages", "registry.db"), cfg.Registry)
	require.Equal(t, logrus.DebugLevel, cfg.Level())
	require.Equal(t, ":8080", cfg.ListenAddr())
}

func TestLoadFileLegacyFormat(t *testing.T) {
	path := writeConfig(t, "directory:/tmp/pkgs\nmax_peers:4\nport:9001\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/pkgs", cfg.Directory)
	require.Equal(t, 4, cfg.MaxPeers)
	require.Equal(t, 9001, cfg.Port)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileExpandsEnv(t *testing.T) {
	t.Setenv("BTIDE_TEST_ROOT", "/data")
	path := writeConfig(t, "directory: ${BTIDE_TEST_ROOT}/pkgs\nregistry: ${BTIDE_TEST_ROOT}/reg.db\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "/data/pkgs", cfg.Directory)
	require.Equal(t, "/data/reg.db", cfg.Registry)
}

func TestLoadFileValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    error
	}{
		{name: "missing directory", content: "port: 9000\n", want: ErrDirectoryRequired},
		{name: "max peers low", content: "directory: d\nmax_peers: 0\n", want: ErrInvalidMaxPeers},
		{name: "max peers high", content: "directory: d\nmax_peers: 2049\n", want: ErrInvalidMaxPeers},
		{name: "port low", content: "directory: d\nport: 80\n", want: ErrInvalidPort},
		{name: "port high", content: "directory: d\nport: 70000\n", want: ErrInvalidPort},
		{name: "log level", content: "directory: d\nlog_level: loud\n", want: ErrInvalidLogLevel},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tc.content))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRequiresEnv(t *testing.T) {
	t.Setenv("BTIDE_CONFIG", "")
	_, err := Load()
	require.ErrorIs(t, err, ErrNoConfigPath)

	t.Setenv("BTIDE_CONFIG", writeConfig(t, "directory: d\n"))
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "d", cfg.Directory)
}

func TestEnsureDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")
	require.NoError(t, EnsureDirectory(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	require.NoError(t, EnsureDirectory(dir))

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	require.ErrorIs(t, EnsureDirectory(file), ErrNotDirectory)
}
