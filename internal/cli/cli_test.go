package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/treevu/internal/http/middleware"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)

	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()

	return out.String(), err
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_ISSUER", "treevu")

	out, err := execute(t, "token", "emp-1", "--role", "employer", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := middleware.NewAuthenticator("s3cret", "treevu", nil).Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "emp-1", claims.Subject)
	assert.Equal(t, middleware.RoleEmployer, claims.Role)

	_, err = execute(t, "token", "emp-1", "--role", "root")
	assert.ErrorContains(t, err, "unknown role")
}

func TestToken_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := execute(t, "token", "emp-1", "--role", "employee")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestReport(t *testing.T) {
	out, err := execute(t, "report", "merchant", "--account", "", "--output", "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "offer_id,merchant,title,cost_points,redemptions,points_redeemed", lines[0])

	_, err = execute(t, "report", "employee", "--account", "", "--output", "")
	assert.ErrorContains(t, err, "account")

	_, err = execute(t, "report", "auditor")
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	out, err := execute(t, "sweep")
	require.NoError(t, err)
	assert.Equal(t, "expired 0 withdrawals\n", out)
}
