package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stockflow/stockflow-backend/pkg/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "import", "import-history", "scan-alerts", "tail", "token"}, names)
}

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--tenant", "acme", "--name", "Dana", "--role", "clerk"})
	require.NoError(t, root.Execute())

	cfg, _, err := loadConfig()
	require.NoError(t, err)
	claims, err := httputil.NewAuthenticator(&cfg.JWT).Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.TenantID)
	assert.Equal(t, "Dana", claims.Name)
	assert.Equal(t, "stockctl", claims.Subject)
}

func TestImportRequiresTenant(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"import", "rows.csv"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "tenant" not set`)
}
