// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webactions/internal/config"
	"github.com/xkilldash9x/webactions/internal/observability"
)

// resetForTest isolates a test from package state, the working directory and
// any .env or config.yaml lying around.
func resetForTest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	cfgFile = ""
	envFile = filepath.Join(dir, ".env")
	osExit = os.Exit

	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	t.Cleanup(observability.ResetForTest)
	return dir
}

// executeCommand runs the CLI with args against a fresh viper instance.
func executeCommand(t *testing.T, args ...string) (string, *viper.Viper, error) {
	t.Helper()
	v := viper.New()
	root := buildRootCmd(v)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), v, err
}

// writeTempFile writes content to name inside dir and returns the path.
func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
