package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	powerunifi "github.com/OpenCHAMI/maas-power-unifi/internal"
	"github.com/OpenCHAMI/maas-power-unifi/internal/config"
	"github.com/OpenCHAMI/maas-power-unifi/pkg/unifi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
url = "https://unifi.local:8443"

[[devices]]
mac = "aa:bb:cc:dd:ee:ff"
machines = [
  { maas_id = "abc123", port_id = 2 },
  { maas_id = "def456", port_id = 7 },
]
`

type fakeController struct {
	mu      sync.Mutex
	state   unifi.PortState
	err     error
	hang    bool
	actions []unifi.PowerAction
	ports   []int
}

func (f *fakeController) Authenticate(context.Context, unifi.Credentials) error {
	return nil
}

func (f *fakeController) SetPortPower(ctx context.Context, _ string, port int, action unifi.PowerAction) error {
	if f.hang {
		<-ctx.Done()
		return &unifi.NetworkError{Op: "power port", Err: ctx.Err()}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	f.ports = append(f.ports, port)
	return f.err
}

func (f *fakeController) PortPower(_ context.Context, _ string, port int) (unifi.PortState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ports = append(f.ports, port)
	return f.state, f.err
}

func (f *fakeController) Logout(context.Context) {}

func newTestServer(t *testing.T, ctl *fakeController) *Server {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfig))
	require.NoError(t, err)
	return &Server{
		Config: cfg,
		NewController: func() (powerunifi.Controller, error) {
			return ctl, nil
		},
		Credentials: unifi.Credentials{Username: "admin", Password: "pw"},
	}
}

func serve(t *testing.T, s *Server, method, path, id string) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if id != "" {
		req.Header.Set(s.idHeader(), id)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	body := map[string]string{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec, body
}

func TestPowerStatus(t *testing.T) {
	tests := []struct {
		state unifi.PortState
		want  string
	}{
		{unifi.PortOn, StatusRunning},
		{unifi.PortOff, StatusStopped},
		{unifi.PortUnknown, StatusUnknown},
	}
	for _, tt := range tests {
		ctl := &fakeController{state: tt.state}
		rec, body := serve(t, newTestServer(t, ctl), http.MethodGet, "/power-status", "def456")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, map[string]string{"status": tt.want}, body)
		assert.Equal(t, []int{7}, ctl.ports)
	}
}

func TestPowerActions(t *testing.T) {
	for path, action := range map[string]unifi.PowerAction{
		"/power-on":    unifi.ActionOn,
		"/power-off":   unifi.ActionOff,
		"/power-cycle": unifi.ActionCycle,
	} {
		ctl := &fakeController{}
		rec, body := serve(t, newTestServer(t, ctl), http.MethodPost, path, "abc123")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, map[string]string{"status": StatusOK}, body, path)
		assert.Equal(t, []unifi.PowerAction{action}, ctl.actions, path)
		assert.Equal(t, []int{2}, ctl.ports, path)
	}
}

func TestMissingHeader(t *testing.T) {
	ctl := &fakeController{}
	rec, body := serve(t, newTestServer(t, ctl), http.MethodPost, "/power-on", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "system_id")
	assert.Empty(t, ctl.actions)
}

func TestCustomIDHeader(t *testing.T) {
	ctl := &fakeController{state: unifi.PortOn}
	s := newTestServer(t, ctl)
	s.IDHeader = "X-Machine-Id"
	rec, body := serve(t, s, http.MethodGet, "/power-status", "abc123")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusRunning, body["status"])
}

func TestUnknownMachine(t *testing.T) {
	ctl := &fakeController{}
	rec, body := serve(t, newTestServer(t, ctl), http.MethodPost, "/power-off", "missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["error"], "missing")
	assert.Empty(t, ctl.actions)
}

func TestControllerErrors(t *testing.T) {
	ctl := &fakeController{err: &unifi.AuthError{StatusCode: 401, Msg: "api.err.LoginRequired"}}
	rec, body := serve(t, newTestServer(t, ctl), http.MethodPost, "/power-on", "abc123")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, body["error"], "LoginRequired")
}

func TestControllerFactoryError(t *testing.T) {
	s := newTestServer(t, nil)
	s.NewController = func() (powerunifi.Controller, error) {
		return nil, errors.New("bad controller url")
	}
	rec, body := serve(t, s, http.MethodGet, "/power-status", "abc123")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "bad controller url", body["error"])
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&config.NotFoundError{MaasID: "x"}, http.StatusNotFound},
		{&unifi.DeviceNotFoundError{MAC: "aa:bb:cc:dd:ee:ff"}, http.StatusNotFound},
		{&unifi.PortNotFoundError{MAC: "aa:bb:cc:dd:ee:ff", Port: 9}, http.StatusNotFound},
		{&unifi.AuthError{Msg: "denied"}, http.StatusBadGateway},
		{&unifi.ControllerError{Op: "list devices", StatusCode: 500}, http.StatusBadGateway},
		{&unifi.NetworkError{Op: "log in", Err: errors.New("connection refused")}, http.StatusBadGateway},
		{&unifi.NetworkError{Op: "log in", Err: timeoutError{}}, http.StatusGatewayTimeout},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusCode(tt.err), "%v", tt.err)
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	s := newTestServer(t, &fakeController{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, &fakeController{state: unifi.PortOn})

	rec, _ := serve(t, s, http.MethodGet, "/power-status", "abc123")
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)

	req := httptest.NewRequest(http.MethodGet, "/power-status", nil)
	req.Header.Set("system_id", "abc123")
	req.Header.Set("X-Request-Id", "maas-42")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, "maas-42", rec.Header().Get("X-Request-Id"))
}

func TestRequestTimeout(t *testing.T) {
	s := newTestServer(t, &fakeController{hang: true})
	s.RequestTimeout = 20 * time.Millisecond

	req := httptest.NewRequest(http.MethodPost, "/power-on", nil)
	req.Header.Set(DefaultIDHeader, "abc123")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Empty(t, rec.Body.String(), "only the timeout middleware should answer")
}
