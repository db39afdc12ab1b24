package report

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAllure writes a shell script standing in for the allure binary.
func fakeAllure(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "allure")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestAllureCLI_Generate(t *testing.T) {
	// $2 is the results dir, $4 the output dir.
	bin := fakeAllure(t, `mkdir -p "$4" && printf '<html>%s</html>' "$(ls "$2")" > "$4/index.html"`)

	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "a-result.json"), []byte(`{}`), 0o644))
	out := filepath.Join(t.TempDir(), "report")

	require.NoError(t, NewAllureCLI(bin).Generate(context.Background(), in, out))

	html, err := os.ReadFile(filepath.Join(out, IndexFile))
	require.NoError(t, err)
	assert.Equal(t, "<html>a-result.json</html>", string(html))
}

func TestAllureCLI_GenerateFailure(t *testing.T) {
	bin := fakeAllure(t, `echo "cannot read results" >&2; exit 3`)

	err := NewAllureCLI(bin).Generate(context.Background(), t.TempDir(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read results")
}

func TestAllureCLI_GenerateWithoutIndex(t *testing.T) {
	bin := fakeAllure(t, `exit 0`)

	err := NewAllureCLI(bin).Generate(context.Background(), t.TempDir(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), IndexFile)
}

func TestAllureCLI_MissingBinary(t *testing.T) {
	err := NewAllureCLI(filepath.Join(t.TempDir(), "nope")).Generate(context.Background(), t.TempDir(), t.TempDir())
	assert.Error(t, err)
}
