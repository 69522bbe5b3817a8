package e2e_test

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	binaries      = map[string]string{}
	binaryErrs    = map[string]error{}
	binaryMu      sync.Mutex
	sharedTempDir string
)

// TestMain sets up and tears down shared test resources.
func TestMain(m *testing.M) {
	var err error
	sharedTempDir, err = os.MkdirTemp("", "h2kv-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	stopPostgres()
	_ = os.RemoveAll(sharedTempDir)

	os.Exit(code)
}

// ServerConfig holds configuration for starting the h2kv server.
type ServerConfig struct {
	Port      int
	Engine    string // badger, sqlite, postgres, memory
	DSN       string
	DataPath  string
	SyncDir   string
	WriteBack bool
	Ignore    string
	LogLevel  string // default: error
}

// buildBinary compiles ./cmd/<name> once per test run and returns its path.
func buildBinary(t *testing.T, name string) string {
	t.Helper()

	binaryMu.Lock()
	defer binaryMu.Unlock()

	if err, ok := binaryErrs[name]; ok {
		t.Fatalf("failed to build %s: %v", name, err)
	}
	if p, ok := binaries[name]; ok {
		return p
	}

	p := filepath.Join(sharedTempDir, name)
	cmd := exec.Command("go", "build", "-o", p, "./cmd/"+name)
	cmd.Dir = getProjectRoot(t)
	output, err := cmd.CombinedOutput()
	if err != nil {
		binaryErrs[name] = fmt.Errorf("build binary: %w\nOutput: %s", err, output)
		t.Fatalf("failed to build %s: %v", name, binaryErrs[name])
	}

	binaries[name] = p
	return p
}

// getProjectRoot returns the root directory of the h2kv module.
func getProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err, "get working directory")

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// createConfigFile writes a config file for the server and returns its path.
func createConfigFile(t *testing.T, cfg ServerConfig) string {
	t.Helper()

	engine := cfg.Engine
	if engine == "" {
		engine = "badger"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `server:
  host: 127.0.0.1
  port: %d
  shutdown_timeout: 5s

storage:
  engine: %s
  path: "%s"
  dsn: "%s"
`, cfg.Port, engine, cfg.DataPath, cfg.DSN)

	if cfg.SyncDir != "" {
		fmt.Fprintf(&sb, `
sync:
  dir: "%s"
  write_back: %t
  ignore: "%s"
`, cfg.SyncDir, cfg.WriteBack, cfg.Ignore)
	}

	logLevel := cfg.LogLevel
	if logLevel == "" {
		logLevel = "error"
	}
	fmt.Fprintf(&sb, "\nlog:\n  level: %s\n", logLevel)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(configPath, []byte(sb.String()), 0o600)
	require.NoError(t, err, "write config file")

	return configPath
}

// serverProcess is a running h2kv server.
type serverProcess struct {
	URL        string
	ConfigPath string
	cmd        *exec.Cmd
	exited     chan struct{}
	waitErr    error
}

// Resync asks the server to run a sync pass.
func (s *serverProcess) Resync(t *testing.T) {
	t.Helper()
	require.NoError(t, s.cmd.Process.Signal(syscall.SIGHUP))
}

// Stop terminates the server and waits for it to exit.
func (s *serverProcess) Stop(t *testing.T) {
	t.Helper()
	_ = s.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-s.exited:
	case <-time.After(15 * time.Second):
		_ = s.cmd.Process.Kill()
		t.Fatal("server did not stop")
	}
}

// startServer starts the h2kv binary with the given configuration and waits
// until it answers. The server is stopped when the test ends.
func startServer(t *testing.T, cfg ServerConfig) *serverProcess {
	t.Helper()

	srv := launchServer(t, cfg, os.Stderr)
	waitForServer(t, srv, 15*time.Second)
	return srv
}

// launchServer starts the h2kv binary without waiting for it to listen. Its
// log output goes to stderr.
func launchServer(t *testing.T, cfg ServerConfig, stderr io.Writer) *serverProcess {
	t.Helper()

	binary := buildBinary(t, "h2kv")
	configPath := createConfigFile(t, cfg)

	cmd := exec.Command(binary, "serve", "--config", configPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = stderr

	require.NoError(t, cmd.Start(), "start server")

	srv := &serverProcess{
		URL:        fmt.Sprintf("http://127.0.0.1:%d", cfg.Port),
		ConfigPath: configPath,
		cmd:        cmd,
		exited:     make(chan struct{}),
	}
	go func() {
		srv.waitErr = cmd.Wait()
		close(srv.exited)
	}()

	t.Cleanup(func() { srv.Stop(t) })

	return srv
}

// logWatch passes log output through to stderr and closes seen once a
// line containing want has been written.
type logWatch struct {
	want string
	seen chan struct{}

	mu   sync.Mutex
	buf  []byte
	once sync.Once
}

func newLogWatch(want string) *logWatch {
	return &logWatch{want: want, seen: make(chan struct{})}
}

func (w *logWatch) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	found := bytes.Contains(w.buf, []byte(w.want))
	w.mu.Unlock()

	if found {
		w.once.Do(func() { close(w.seen) })
	}
	return os.Stderr.Write(p)
}

// waitForServer polls the server until it responds or times out.
func waitForServer(t *testing.T, srv *serverProcess, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	client := newH2CClient(t)

	for time.Now().Before(deadline) {
		select {
		case <-srv.exited:
			t.Fatalf("server exited during startup: %v", srv.waitErr)
		default:
		}

		resp, err := client.Get(srv.URL + "/?limit=1")
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	t.Fatalf("server failed to start within %v", timeout)
}

// newH2CClient returns a client that only speaks cleartext HTTP/2.
func newH2CClient(t *testing.T) *http.Client {
	t.Helper()

	var protocols http.Protocols
	protocols.SetUnencryptedHTTP2(true)
	transport := &http.Transport{Protocols: &protocols}
	t.Cleanup(transport.CloseIdleConnections)

	return &http.Client{Transport: transport, Timeout: 10 * time.Second}
}

// request sends a request and returns the response with its body read.
func request(t *testing.T, client *http.Client, method, url, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(data)
}

// getOpenPort finds an available TCP port.
func getOpenPort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "find open port")

	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close(), "close port")

	return port
}

// writeFile writes a file below dir, creating parent directories.
func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
}

// readFile returns the content of a file below dir, or "" if it is missing.
func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return ""
	}
	return string(data)
}
