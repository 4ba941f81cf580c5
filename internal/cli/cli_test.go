package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentindosimont/keyquery/internal/lookup"
	"github.com/valentindosimont/keyquery/internal/remote"
	"github.com/valentindosimont/keyquery/internal/token"
)

var validToken = "sk-" + strings.Repeat("a1B2", 12)

type gateway struct {
	srv  *httptest.Server
	hits atomic.Int32
	fail bool
}

func newGateway(t *testing.T, fail bool) *gateway {
	t.Helper()
	g := &gateway{fail: fail}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.hits.Add(1)
		if g.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case remote.SubscriptionPath:
			_, _ = w.Write([]byte(`{"hard_limit_usd": 20, "access_until": 0}`))
		case remote.UsagePath:
			_, _ = w.Write([]byte(`{"total_usage": 1234}`))
		case remote.TokenLogPath:
			_, _ = w.Write([]byte(`{"success": true, "message": "", "data": [
				{"created_at": 1700000000, "model_name": "gpt-4", "type": 2, "quota": 150, "prompt_tokens": 10, "completion_tokens": 5, "use_time": 3},
				{"created_at": 1700000100, "model_name": "", "type": 1, "quota": 0, "content": "top up"}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func writeConfig(t *testing.T, baseURL string, history bool) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
lookup:
  base_url: %s
display:
  timezone: UTC
log:
  level: "off"
history:
  enabled: %t
  db_path: %s
`, baseURL, history, filepath.Join(dir, "history.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	out, err := run(t, "", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "query")
	assert.Contains(t, out, "history")
	assert.Contains(t, out, "--config")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "keyquery dev\n", out)
}

func TestQueryCmdFlags(t *testing.T) {
	cmd := newQueryCmd(new(string))

	csvFlag := cmd.Flags().Lookup("csv")
	require.NotNil(t, csvFlag)
	assert.Equal(t, "", csvFlag.DefValue)

	copyFlag := cmd.Flags().Lookup("copy")
	require.NotNil(t, copyFlag)
	assert.Equal(t, "false", copyFlag.DefValue)
}

func TestQueryPrintsBalanceAndRecords(t *testing.T) {
	g := newGateway(t, false)
	cfg := writeConfig(t, g.srv.URL, false)

	out, err := run(t, "", "--config", cfg, "query", validToken)
	require.NoError(t, err)

	assert.Contains(t, out, "$20.00")
	assert.Contains(t, out, "$7.66")
	assert.Contains(t, out, "$12.34")
	assert.Contains(t, out, "never expires")
	assert.Contains(t, out, "gpt-4")
	assert.Contains(t, out, "2 records (1 billable)")
	assert.NotContains(t, out, validToken)
	assert.EqualValues(t, 3, g.hits.Load())
}

func TestQueryReadsTokenFromStdin(t *testing.T) {
	g := newGateway(t, false)
	cfg := writeConfig(t, g.srv.URL, false)

	out, err := run(t, validToken+"\n", "--config", cfg, "query", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "$7.66")
}

func TestQueryRejectsMalformedToken(t *testing.T) {
	g := newGateway(t, false)
	cfg := writeConfig(t, g.srv.URL, false)

	_, err := run(t, "", "--config", cfg, "query", "sk-short")
	require.Error(t, err)
	assert.ErrorIs(t, err, token.ErrMalformed)
	assert.EqualValues(t, 0, g.hits.Load())
}

func TestQueryRejectsEmptyStdin(t *testing.T) {
	g := newGateway(t, false)
	cfg := writeConfig(t, g.srv.URL, false)

	_, err := run(t, "\n", "--config", cfg, "query")
	assert.ErrorIs(t, err, token.ErrEmpty)
}

func TestQueryTransportFailure(t *testing.T) {
	g := newGateway(t, true)
	cfg := writeConfig(t, g.srv.URL, false)

	out, err := run(t, "", "--config", cfg, "query", validToken)
	require.Error(t, err)
	assert.ErrorIs(t, err, lookup.ErrFetchFailed)
	assert.NotContains(t, out, "500")
}

func TestQueryWritesCSV(t *testing.T) {
	g := newGateway(t, false)
	cfg := writeConfig(t, g.srv.URL, false)
	csvPath := filepath.Join(t.TempDir(), "usage.csv")

	out, err := run(t, "", "--config", cfg, "query", validToken, "--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+csvPath)

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\ufeffTime,Model,Use Time")))
	assert.Contains(t, string(data), "gpt-4")
	assert.Contains(t, string(data), "top up")
}

func TestHistoryAfterQuery(t *testing.T) {
	g := newGateway(t, false)
	cfg := writeConfig(t, g.srv.URL, true)

	_, err := run(t, "", "--config", cfg, "query", validToken)
	require.NoError(t, err)

	out, err := run(t, "", "--config", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "1 lookups: 1 success")
	assert.NotContains(t, out, validToken)
}

func TestHistoryDisabled(t *testing.T) {
	cfg := writeConfig(t, "http://127.0.0.1:1", false)

	_, err := run(t, "", "--config", cfg, "history")
	assert.Error(t, err)
}

func TestCopyRequiresBalance(t *testing.T) {
	g := newGateway(t, false)
	cfg := writeConfig(t, g.srv.URL, false)
	t.Setenv("KEYQUERY_LOOKUP_SHOW_BALANCE", "false")

	out, err := run(t, "", "--config", cfg, "query", "--copy", validToken)
	require.ErrorIs(t, err, errNoBalance)
	assert.NotContains(t, out, "Balance copied")
	assert.NotContains(t, out, "Remaining:")
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in, dir, name string
	}{
		{"out.csv", ".", "out.csv"},
		{"/tmp/x/out.csv", "/tmp/x/", "out.csv"},
	}
	for _, tt := range tests {
		dir, name := splitPath(tt.in)
		assert.Equal(t, tt.dir, dir, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
	}
}
