package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/internal/core/service"
	"github.com/wirepool/wirepool-go/internal/credential"
	"github.com/wirepool/wirepool-go/internal/eventbus"
	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

type fixture struct {
	handler   *Handler
	orch      *service.SessionOrchestrator
	directory *service.NodeDirectory
	bus       *eventbus.Bus
}

func catalogNode(id, region string, premium bool) *domain.ServerNode {
	return &domain.ServerNode{
		ID:          id,
		Name:        id,
		Address:     "203.0.113.10:51820",
		PublicKey:   "pub-" + id,
		Region:      region,
		IsPremium:   premium,
		Active:      true,
		MaxCapacity: 10,
		HealthState: domain.HealthHealthy,
	}
}

func newFixture(t *testing.T, nodes ...*domain.ServerNode) *fixture {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Output: io.Discard})
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	directory := service.NewNodeDirectory()
	if len(nodes) == 0 {
		nodes = []*domain.ServerNode{catalogNode("node-1", "eu-west", false)}
	}
	for _, n := range nodes {
		if err := directory.AddNode(n); err != nil {
			t.Fatalf("AddNode(%s): %v", n.ID, err)
		}
	}

	issuer, err := credential.NewIssuer(credential.Config{})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	bus := eventbus.New(eventbus.Config{})
	t.Cleanup(bus.Close)

	cfg := service.OrchestratorConfig{
		ConnectDeadline: 2 * time.Second,
		SettleDelay:     10 * time.Millisecond,
	}
	orch := service.NewSessionOrchestrator(cfg, directory, issuer, nil, nil, nil, bus)

	return &fixture{
		handler:   New(orch, directory, bus, log),
		orch:      orch,
		directory: directory,
		bus:       bus,
	}
}

func (f *fixture) do(t *testing.T, method, path, clientID string, body string) (*httptest.ResponseRecorder, *Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if clientID != "" {
		req.Header.Set(ClientIDHeader, clientID)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env Response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v\n%s", err, rec.Body.String())
		}
	}
	return rec, &env
}

func decodeData[T any](t *testing.T, env *Response) T {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func TestHandler_Connect(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/v1/connect", "client-1", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if env.Code != "OK" {
		t.Errorf("envelope code = %q", env.Code)
	}

	data := decodeData[ConnectResponse](t, env)
	if data.Session.State != "connecting" {
		t.Errorf("session state = %q, want connecting", data.Session.State)
	}
	if data.Session.ClientID != "client-1" {
		t.Errorf("client = %q", data.Session.ClientID)
	}
	if data.Node.ID != "node-1" {
		t.Errorf("node = %q", data.Node.ID)
	}
	if data.Credential.PrivateKey == "" {
		t.Error("credential must be returned on connect")
	}
	if !strings.Contains(data.Config, "[Interface]") || !strings.Contains(data.Config, "[Peer]") {
		t.Errorf("config not rendered:\n%s", data.Config)
	}
}

func TestHandler_Connect_RequiresClientID(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/v1/connect", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Code != "WP-ARG-1001" {
		t.Errorf("code = %q", env.Code)
	}
}

func TestHandler_Connect_BadBody(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/v1/connect", "client-1", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Code != "WP-SYS-4000" {
		t.Errorf("code = %q", env.Code)
	}
}

func TestHandler_Connect_PinUnknownNode(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/v1/connect", "client-1", `{"node_id":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env.Code != "WP-NODE-4040" {
		t.Errorf("code = %q", env.Code)
	}
}

func TestHandler_Connect_NoCapacity(t *testing.T) {
	hot := catalogNode("node-1", "eu-west", false)
	hot.CurrentLoad = 95
	f := newFixture(t, hot)

	rec, env := f.do(t, http.MethodPost, "/v1/connect", "client-1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if env.Code != "WP-NODE-5030" {
		t.Errorf("code = %q", env.Code)
	}
}

func connectAndSettle(t *testing.T, f *fixture, clientID string) SessionResponse {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, "/v1/connect", clientID, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("connect: %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData[ConnectResponse](t, env)

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, env := f.do(t, http.MethodGet, "/v1/sessions/"+data.Session.ID, clientID, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("get session: %d", rec.Code)
		}
		s := decodeData[SessionResponse](t, env)
		if s.State == "connected" {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never connected, state %q", s.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandler_Status(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/v1/status", "client-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status with no session = %d, want 404", rec.Code)
	}
	if env.Code != "WP-SESS-4040" {
		t.Errorf("code = %q", env.Code)
	}

	sess := connectAndSettle(t, f, "client-1")

	rec, env = f.do(t, http.MethodGet, "/v1/status", "client-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeData[SessionResponse](t, env)
	if got.ID != sess.ID || got.State != "connected" {
		t.Errorf("status session = %+v", got)
	}
}

func TestHandler_Disconnect(t *testing.T) {
	f := newFixture(t)
	sess := connectAndSettle(t, f, "client-1")

	rec, env := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/disconnect", "client-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect = %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData[DisconnectResponse](t, env)
	if data.Session.State != "disconnected" {
		t.Errorf("state = %q", data.Session.State)
	}
	if data.DurationSeconds < 0 {
		t.Errorf("duration = %v", data.DurationSeconds)
	}
}

func TestHandler_Disconnect_Ownership(t *testing.T) {
	f := newFixture(t)
	sess := connectAndSettle(t, f, "client-1")

	rec, env := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/disconnect", "client-2", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if env.Code != "WP-SESS-4030" {
		t.Errorf("code = %q", env.Code)
	}
}

func TestHandler_Disconnect_UnknownSession(t *testing.T) {
	f := newFixture(t)
	rec, env := f.do(t, http.MethodPost, "/v1/sessions/wpss-00000000000000000000000000/disconnect", "client-1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env.Code != "WP-SESS-4040" {
		t.Errorf("code = %q", env.Code)
	}
}

func TestHandler_SessionMetrics(t *testing.T) {
	f := newFixture(t)
	sess := connectAndSettle(t, f, "client-1")

	body := `{"bytes_up_delta":100,"bytes_down_delta":400,"speed_mbps":95.5,"ping_ms":12}`
	rec, env := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/metrics", "client-1", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeData[SessionResponse](t, env)
	if got.BytesUp != 100 || got.BytesDown != 400 {
		t.Errorf("bytes = %d/%d", got.BytesUp, got.BytesDown)
	}
	if got.SpeedMbps != 95.5 || got.PingMS != 12 {
		t.Errorf("snapshots = %v/%d", got.SpeedMbps, got.PingMS)
	}
}

func TestHandler_SessionMetrics_NotConnected(t *testing.T) {
	f := newFixture(t)
	sess := connectAndSettle(t, f, "client-1")
	f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/disconnect", "client-1", "")

	rec, env := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/metrics", "client-1",
		`{"bytes_up_delta":1}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if env.Code != "WP-SESS-4091" {
		t.Errorf("code = %q", env.Code)
	}
}

func TestHandler_ListNodes(t *testing.T) {
	f := newFixture(t,
		catalogNode("node-eu", "eu-west", false),
		catalogNode("node-us", "us-east", true),
	)

	rec, env := f.do(t, http.MethodGet, "/v1/nodes", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data := decodeData[ListNodesResponse](t, env)
	if data.Total != 2 {
		t.Fatalf("Total = %d, want 2", data.Total)
	}

	rec, env = f.do(t, http.MethodGet, "/v1/nodes?region=eu-west", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data = decodeData[ListNodesResponse](t, env)
	if data.Total != 1 || data.Nodes[0].ID != "node-eu" {
		t.Errorf("region filter = %+v", data)
	}

	rec, env = f.do(t, http.MethodGet, "/v1/nodes?premium=true", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	data = decodeData[ListNodesResponse](t, env)
	if data.Total != 1 || data.Nodes[0].ID != "node-us" {
		t.Errorf("premium filter = %+v", data)
	}
}

func TestHandler_Health(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if env.Code != "OK" {
		t.Errorf("code = %q", env.Code)
	}

	rec, _ = f.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}

func TestHandler_Ready_NoNodes(t *testing.T) {
	f := newFixture(t)
	if err := f.directory.Deactivate("node-1"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	rec, _ := f.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
}

func TestHandler_Events(t *testing.T) {
	f := newFixture(t)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/v1/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set(ClientIDHeader, "client-1")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	// Wait for the subscription to land, then publish through the bus.
	deadline := time.Now().Add(2 * time.Second)
	for f.bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.bus.Publish("client-1", domain.NewEvent(domain.EventSessionStarted, map[string]any{"session_id": "wpss-x"}))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 2 {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line != "" {
			lines = append(lines, line)
		}
	}

	if lines[0] != "event: session_started" {
		t.Errorf("event line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "data: ") || !strings.Contains(lines[1], "wpss-x") {
		t.Errorf("data line = %q", lines[1])
	}
}

func TestHandler_Events_RequiresClientID(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodGet, "/v1/events", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
