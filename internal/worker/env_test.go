package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvFileSkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# a comment\n\nFOO=bar\nexport BAZ=qux\nQUOTED=\"has spaces\"\nSINGLE='also quoted'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	env, err := parseEnvFile(path)
	require.NoError(t, err)

	assert.Contains(t, env, "FOO=bar")
	assert.Contains(t, env, "BAZ=qux")
	assert.Contains(t, env, "QUOTED=has spaces")
	assert.Contains(t, env, "SINGLE=also quoted")
}

func TestParseEnvFileSplitsOnFirstEqualsOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("URL=https://example.com/a=b\n"), 0o644))

	env, err := parseEnvFile(path)
	require.NoError(t, err)
	assert.Contains(t, env, "URL=https://example.com/a=b")
}

func TestStripWrappingQuotes(t *testing.T) {
	assert.Equal(t, "bare", stripWrappingQuotes("bare"))
	assert.Equal(t, "value", stripWrappingQuotes(`"value"`))
	assert.Equal(t, "value", stripWrappingQuotes("'value'"))
	assert.Equal(t, `"mismatched'`, stripWrappingQuotes(`"mismatched'`))
}

func TestLoadChildEnvAlwaysCarriesBaselinePathAndRole(t *testing.T) {
	env := LoadChildEnv(context.Background(), "")
	assert.Contains(t, env, "WORKER_ROLE=host")

	found := false
	for _, e := range env {
		if len(e) >= 5 && e[:5] == "PATH=" {
			found = true
		}
	}
	assert.True(t, found, "expected a PATH entry in the assembled environment")
}
