package daemon

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/relay/internal/bus"
	"github.com/matheus3301/relay/internal/config"
	"github.com/matheus3301/relay/internal/status"
	"github.com/matheus3301/relay/internal/store"
)

// shortTempDir keeps socket paths under the 104-char Unix socket limit on macOS.
func shortTempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func healthClient(t *testing.T, socketPath string) healthpb.HealthClient {
	t.Helper()
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func waitForHealth(t *testing.T, hc healthpb.HealthClient, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last healthpb.HealthCheckResponse_ServingStatus
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		cancel()
		if err == nil {
			last = resp.Status
			if last == want {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("health = %v, want %v", last, want)
}

func TestControlServerHealth(t *testing.T) {
	tmpDir := shortTempDir(t, "relay-ctl-*")
	cfg := config.Default()
	cfg.DataDir = tmpDir
	cfg.Control.Socket = filepath.Join(tmpDir, "d.sock")

	b := bus.New()
	machine := status.NewMachine(b)
	srv, err := NewControlServer(cfg, b, zap.NewNop())
	if err != nil {
		t.Fatalf("NewControlServer() error: %v", err)
	}
	srv.Watch(machine)
	go func() { _ = srv.Start() }()

	info, err := os.Stat(cfg.Control.Socket)
	if err != nil {
		t.Fatalf("socket not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("socket perm = %o, want 0600", perm)
	}

	hc := healthClient(t, cfg.Control.Socket)
	waitForHealth(t, hc, healthpb.HealthCheckResponse_NOT_SERVING)

	if err := machine.Transition(status.Serving); err != nil {
		t.Fatal(err)
	}
	waitForHealth(t, hc, healthpb.HealthCheckResponse_SERVING)

	if err := machine.Transition(status.Draining); err != nil {
		t.Fatal(err)
	}
	waitForHealth(t, hc, healthpb.HealthCheckResponse_NOT_SERVING)

	srv.Stop(context.Background())
	if _, err := os.Stat(cfg.Control.Socket); !os.IsNotExist(err) {
		t.Errorf("socket still present after Stop: %v", err)
	}
}

func TestControlServerReplacesStaleSocket(t *testing.T) {
	tmpDir := shortTempDir(t, "relay-stale-*")
	cfg := config.Default()
	cfg.DataDir = tmpDir
	cfg.Control.Socket = filepath.Join(tmpDir, "d.sock")
	if err := os.WriteFile(cfg.Control.Socket, []byte("stale"), 0600); err != nil {
		t.Fatal(err)
	}

	srv, err := NewControlServer(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewControlServer() over stale socket: %v", err)
	}
	srv.Stop(context.Background())
}

func TestHTTPServerAddrInUse(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	first, err := NewHTTPServer(cfg, nil, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = first.listener.Close() }()

	cfg.HTTP.Addr = first.Addr()
	if _, err := NewHTTPServer(cfg, nil, zap.NewNop()); err == nil {
		t.Fatal("expected error binding an address in use")
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves without errors.
func TestFxModuleWiring(t *testing.T) {
	tmpDir := shortTempDir(t, "relay-fx-*")
	p := Params{
		ConfigPath: filepath.Join(tmpDir, "missing.toml"),
		DataDir:    tmpDir,
		HTTPAddr:   "127.0.0.1:0",
		SocketPath: filepath.Join(tmpDir, "d.sock"),
	}
	if err := fx.ValidateApp(Module(p)); err != nil {
		t.Fatalf("fx.ValidateApp() error: %v", err)
	}
}

func TestDaemonLifecycle(t *testing.T) {
	tmpDir := shortTempDir(t, "relay-life-*")
	t.Setenv("RELAY_HOME", tmpDir)
	socketPath := filepath.Join(tmpDir, "d.sock")

	var (
		httpSrv *HTTPServer
		db      *store.DB
		machine *status.Machine
	)
	app := fxtest.New(t,
		Module(Params{
			ConfigPath: filepath.Join(tmpDir, "missing.toml"),
			DataDir:    tmpDir,
			HTTPAddr:   "127.0.0.1:0",
			SocketPath: socketPath,
		}),
		fx.Populate(&httpSrv, &db, &machine),
	)
	app.RequireStart()

	if machine.Current() != status.Serving {
		t.Fatalf("state = %s, want SERVING", machine.Current())
	}
	waitForHealth(t, healthClient(t, socketPath), healthpb.HealthCheckResponse_SERVING)

	base := "http://" + httpSrv.Addr()
	do := func(method, target, body string) int {
		t.Helper()
		req, err := http.NewRequest(method, base+target, strings.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	if code := do(http.MethodPut, "/users/bob", `{"data":{"phone":"+5585999990000","tokens":["tok-bob"]}}`); code != http.StatusOK {
		t.Fatalf("PUT user = %d, want 200", code)
	}
	if code := do(http.MethodPost, "/users/alice/chats/bob/messages", `{"data":{"id":"m1","type":"text","text":"hi"}}`); code != http.StatusCreated {
		t.Fatalf("POST message = %d, want 201", code)
	}

	ctx := context.Background()
	deadline := time.Now().Add(3 * time.Second)
	for {
		copyRec, ok, err := db.Get(ctx, store.MessagePath("bob", "alice", "m1"))
		if err != nil {
			t.Fatal(err)
		}
		d, err := db.GetDelivery(ctx, "m1:bob")
		if err != nil {
			t.Fatal(err)
		}
		if ok && copyRec["status"] == "sent" && d != nil && d.Status == "sent" {
			if d.SuccessCount != 1 {
				t.Errorf("success count = %d, want 1", d.SuccessCount)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivery not completed: copy=%v delivery=%+v", copyRec, d)
		}
		time.Sleep(20 * time.Millisecond)
	}

	app.RequireStop()
	if machine.Current() != status.Stopped {
		t.Errorf("state after stop = %s, want STOPPED", machine.Current())
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after stop: %v", err)
	}
}
