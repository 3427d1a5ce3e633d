package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	powerunifi "github.com/OpenCHAMI/maas-power-unifi/internal"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/secrets"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unifiStub is a self-hosted controller with one switch whose port 2 is on.
type unifiStub struct {
	mu       sync.Mutex
	requests []string
	bodies   map[string]string
}

func (u *unifiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.requests = append(u.requests, r.Method+" "+r.URL.Path)
	u.bodies[r.Method+" "+r.URL.Path] = string(b)
	u.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/login":
		var creds map[string]string
		_ = json.Unmarshal(b, &creds)
		if creds["password"] != "pw" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"meta":{"rc":"error","msg":"api.err.Invalid"},"data":[]}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "unifises", Value: "session", Path: "/"})
		fmt.Fprint(w, `{"meta":{"rc":"ok"},"data":[]}`)
	case "/api/logout":
		fmt.Fprint(w, `{"meta":{"rc":"ok"},"data":[]}`)
	case "/api/s/default/stat/device":
		fmt.Fprint(w, `{"meta":{"rc":"ok"},"data":[{"_id":"dev1","mac":"aa:bb:cc:dd:ee:ff","port_table":[{"port_idx":2,"poe_mode":"auto"}],"port_overrides":[]}]}`)
	case "/api/s/default/rest/device/dev1", "/api/s/default/cmd/devmgr":
		fmt.Fprint(w, `{"meta":{"rc":"ok"},"data":[]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"meta":{"rc":"error","msg":"api.err.NotFound"},"data":[]}`)
	}
}

func newStub(t *testing.T) (*unifiStub, *httptest.Server) {
	t.Helper()
	stub := &unifiStub{bodies: map[string]string{}}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return stub, srv
}

func writeTestConfig(t *testing.T, url string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := fmt.Sprintf(`url = %q

[[devices]]
mac = "AA-BB-CC-DD-EE-FF"
machines = [
  { maas_id = "abc123", port_id = 2 },
  { maas_id = "abc123", port_id = 4 },
]
`, url)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

// resetState puts the flags and viper back to their defaults so that no
// value from an earlier run leaks into the next one.
func resetState(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			// flags without a valid default (such as --action) keep their
			// value, but are no longer marked as set
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetState(sub)
	}
	if c == rootCmd {
		viper.Reset()
		for key, flag := range boundFlags {
			checkBindFlagError(viper.BindPFlag(key, flag))
		}
		initViper()
		cfg = nil
	}
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetState(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--log-level", "disabled"}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	path := writeTestConfig(t, "https://unifi.local:8443")

	out, err := run(t, "-c", path, "list", "--format", "list")
	require.NoError(t, err)
	assert.Equal(t, "abc123 aa:bb:cc:dd:ee:ff 2\nabc123 aa:bb:cc:dd:ee:ff 4\n", out)

	out, err = run(t, "-c", path, "list", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"maas_id":"abc123","mac":"aa:bb:cc:dd:ee:ff","port":2},
		{"maas_id":"abc123","mac":"aa:bb:cc:dd:ee:ff","port":4}
	]`, out)
}

func TestCheck(t *testing.T) {
	out, err := run(t, "-c", writeTestConfig(t, "https://unifi.local:8443"), "check")
	require.NoError(t, err)
	assert.Contains(t, out, "devices: 1\n")
	assert.Contains(t, out, "machines: 2\n")
	assert.Contains(t, out, "warning: machine abc123 is bound more than once")
	assert.True(t, strings.HasSuffix(out, "config OK\n"))
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "--config-file", "", "list")
	require.Error(t, err)
	assert.Equal(t, powerunifi.ExitConfig, powerunifi.ExitCode(err))

	_, err = run(t, "-c", filepath.Join(t.TempDir(), "missing.toml"), "list")
	assert.Equal(t, powerunifi.ExitConfig, powerunifi.ExitCode(err))
}

func TestPower(t *testing.T) {
	stub, srv := newStub(t)
	path := writeTestConfig(t, srv.URL)

	out, err := run(t, "-c", path, "-u", "admin", "-p", "pw", "power", "abc123", "-a", "off")
	require.NoError(t, err)
	assert.Equal(t, "abc123: success\n", out)
	assert.Equal(t, []string{
		"POST /api/login",
		"GET /api/s/default/stat/device",
		"PUT /api/s/default/rest/device/dev1",
		"POST /api/logout",
	}, stub.requests)
	assert.JSONEq(t, `{"port_overrides":[{"port_idx":2,"poe_mode":"off"}]}`, stub.bodies["PUT /api/s/default/rest/device/dev1"])
}

func TestPowerErrors(t *testing.T) {
	stub, srv := newStub(t)
	path := writeTestConfig(t, srv.URL)

	_, err := run(t, "-c", path, "-u", "admin", "-p", "pw", "power", "nope", "-a", "on")
	assert.Equal(t, powerunifi.ExitNotFound, powerunifi.ExitCode(err))
	assert.Empty(t, stub.requests)

	_, err = run(t, "-c", path, "-u", "admin", "-p", "wrong", "power", "abc123", "-a", "on")
	assert.Equal(t, powerunifi.ExitAuth, powerunifi.ExitCode(err))

	_, err = run(t, "-c", path, "-u", "admin", "-p", "pw", "power", "abc123", "-a", "reboot")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	_, srv := newStub(t)
	path := writeTestConfig(t, srv.URL)

	out, err := run(t, "-c", path, "-u", "admin", "-p", "pw", "status", "abc123", "--format", "list")
	require.NoError(t, err)
	assert.Equal(t, "running\n", out)

	out, err = run(t, "-c", path, "-u", "admin", "-p", "pw", "status", "abc123", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"maas_id":"abc123","status":"running"}`, out)
}

func TestSecrets(t *testing.T) {
	key, err := secrets.GenerateMasterKey()
	require.NoError(t, err)
	t.Setenv(secrets.MasterKeyEnv, key)
	file := filepath.Join(t.TempDir(), "secrets.json")

	_, err = run(t, "--secrets-file", file, "secrets", "store", "https://UNIFI.local:8443/", "admin:pa:ss")
	require.NoError(t, err)

	out, err := run(t, "--secrets-file", file, "secrets", "retrieve", "https://unifi.local:8443")
	require.NoError(t, err)
	assert.Equal(t, "https://unifi.local:8443: {\"username\":\"admin\",\"password\":\"pa:ss\"}\n", out)

	out, err = run(t, "--secrets-file", file, "secrets", "list")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "https://unifi.local:8443: "))

	input := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"username":"root","password":"pw"}`+"\n"), 0o600))
	_, err = run(t, "--secrets-file", file, "-i", "secrets", "store", "default", "-f", input, "--format", "json")
	require.NoError(t, err)
	out, err = run(t, "--secrets-file", file, "secrets", "retrieve", "default")
	require.NoError(t, err)
	assert.Equal(t, "default: {\"username\":\"root\",\"password\":\"pw\"}\n", out)

	_, err = run(t, "--secrets-file", file, "secrets", "store", "default", "admin:pw", "--input-file", input)
	assert.Error(t, err)

	_, err = run(t, "--secrets-file", file, "secrets", "remove", "https://unifi.local:8443")
	require.NoError(t, err)
	_, err = run(t, "--secrets-file", file, "secrets", "retrieve", "https://unifi.local:8443")
	assert.Error(t, err)
}

func TestParseSecretValue(t *testing.T) {
	creds, err := parseSecretValue("eyJ1c2VybmFtZSI6ImFkbWluIiwicGFzc3dvcmQiOiJwdyJ9", "base64")
	require.NoError(t, err)
	assert.Equal(t, secrets.Credentials{Username: "admin", Password: "pw"}, creds)

	_, err = parseSecretValue("admin", "basic")
	assert.Error(t, err)
	_, err = parseSecretValue(`{"username":"admin"}`, "json")
	assert.Error(t, err)
	_, err = parseSecretValue("admin:pw", "xml")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	SetVersionInfo("v9.9.9", "deadbeef", "")
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "v9.9.9\n", out)

	out, err = run(t, "version", "--rev")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef\n", out)
}
