package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extraCatalog = `rules:
  - id: CUSTOM_RULE
    title: Custom sink
    severity: high
    message: Tainted data reaches a custom sink.
    sources:
      - getQueryParam
    sinks:
      - customSink
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRuleSetDefaults(t *testing.T) {
	rs, err := loadRuleSet("")
	require.NoError(t, err)
	assert.NotEmpty(t, rs.Rules, "built-in catalogue should not be empty")
}

func TestLoadRuleSetMergesUserCatalog(t *testing.T) {
	path := writeCatalog(t, extraCatalog)

	rs, err := loadRuleSet(path)
	require.NoError(t, err)

	custom, ok := rs.ByID("CUSTOM_RULE")
	require.True(t, ok, "user rule should be merged in")
	assert.Equal(t, "Custom sink", custom.Title)

	_, ok = rs.ByID("SQLI")
	assert.True(t, ok, "built-in rules should survive the merge")
}

func TestLoadRuleSetMissingFile(t *testing.T) {
	_, err := loadRuleSet(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRulesListCommand(t *testing.T) {
	cmd := newRulesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"list"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "SQLI")
	assert.Contains(t, out.String(), "rule(s)")
}

func TestRulesValidateCommand(t *testing.T) {
	t.Run("valid catalogue", func(t *testing.T) {
		path := writeCatalog(t, extraCatalog)

		cmd := newRulesCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"validate", path})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "1 valid rule(s)")
	})

	t.Run("invalid catalogue", func(t *testing.T) {
		path := writeCatalog(t, "rules:\n  - id: BROKEN\n")

		cmd := newRulesCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"validate", path})

		require.Error(t, cmd.Execute())
	})
}
