// Package config centralizes the environment-driven settings shared by the
// lb, api and worker roles. Each role reads only the fields it needs.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	defaultProcessorCutoutMicros = 100_000
	defaultResetTimeoutSeconds   = 6
	defaultHTTPWorkers           = 16
	defaultWorkerSocket          = "/var/run/worker.sock"
	defaultAPISocket             = "/var/run/api0.sock"
	defaultLBPort                = "9999"
	defaultBufferPoolSize        = 1024
	defaultBufferSize            = 512
	defaultAPIControlPlanePort   = 7080
)

// Config holds every knob named in spec §6 plus the expansion's extras
// (API_N multi-instance discovery, control-plane signing key path).
type Config struct {
	// Shared
	ProcessorDefault  string
	ProcessorFallback string
	ProcessorCutout   time.Duration
	ResetTimeout      time.Duration
	HTTPWorkers       int
	WorkerSocket      string

	// LB
	PublicAddr           string
	APISockets           []string
	APIControlPlaneAddrs []string
	BufferPoolSize       int
	BufferSize           int
	LBReusePort          bool

	// API
	APIListenNetwork string // "unix" or "tcp"
	APIListenAddr    string
	APIControlPlane  string

	// control plane (expansion)
	ControlPlaneAddr string
	KeysFile         string

	// admin HTTP surface (expansion): /healthz + Prometheus /metrics,
	// one address per role. Empty disables the listener for that role.
	LBAdminAddr     string
	APIAdminAddr    string
	WorkerAdminAddr string

	LogFormat string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Load reads the process environment into a Config, applying the
// defaults documented in spec §6.
func Load() Config {
	cutout := getenvInt("PROCESSOR_CUTOUT", defaultProcessorCutoutMicros)
	reset := getenvInt("RESET_TIMEOUT", defaultResetTimeoutSeconds)

	return Config{
		ProcessorDefault:  getenv("PROCESSOR_DEFAULT", "http://payment-processor-default:8080"),
		ProcessorFallback: getenv("PROCESSOR_FALLBACK", "http://payment-processor-fallback:8080"),
		ProcessorCutout:   time.Duration(cutout) * time.Microsecond,
		ResetTimeout:      time.Duration(reset) * time.Second,
		HTTPWorkers:       getenvInt("HTTP_WORKERS", defaultHTTPWorkers),
		WorkerSocket:      getenv("WORKER_SOCKET", defaultWorkerSocket),

		PublicAddr:           getenv("LB_ADDR", ":"+defaultLBPort),
		APISockets:           apiSockets(),
		APIControlPlaneAddrs: apiControlPlaneAddrs(),
		BufferPoolSize:       getenvInt("BUFFER_POOL_SIZE", defaultBufferPoolSize),
		BufferSize:           getenvInt("BUFFER_SIZE", defaultBufferSize),
		LBReusePort:          getenvBool("LB_SO_REUSEPORT", false),

		APIListenNetwork: getenv("API_LISTEN_NETWORK", "unix"),
		APIListenAddr:    getenv("API_SOCKET", defaultAPISocket),
		APIControlPlane:  getenv("API_CONTROL_PLANE_ADDR", "127.0.0.1:"+strconv.Itoa(defaultAPIControlPlanePort)),

		ControlPlaneAddr: getenv("CONTROL_PLANE_ADDR", "127.0.0.1:7070"),
		KeysFile:         getenv("CONTROL_PLANE_KEYS", "config/keys.json"),

		LBAdminAddr:     getenv("LB_ADMIN_ADDR", ":9100"),
		APIAdminAddr:    getenv("API_ADMIN_ADDR", ":9101"),
		WorkerAdminAddr: getenv("WORKER_ADMIN_ADDR", ":9102"),

		LogFormat: getenv("LOG_FORMAT", "console"),
	}
}

// apiSockets mirrors original_source/src/data.rs: API_N selects how
// many /var/run/api<i>.sock instances the LB fans out to; unset means
// exactly one instance at the legacy single-socket path.
func apiSockets() []string {
	n := getenvInt("API_N", 0)
	if n <= 0 {
		return []string{getenv("API_SOCKET", defaultAPISocket)}
	}
	sockets := make([]string, n)
	for i := 0; i < n; i++ {
		sockets[i] = apiSocketName(i)
	}
	return sockets
}

func apiSocketName(i int) string {
	return "/var/run/api" + strconv.Itoa(i) + ".sock"
}

// apiControlPlaneAddrs gives the LB one control-plane address per API
// instance, index-aligned with apiSockets, so the health prober can
// skip a backend whose own control-plane listener stops answering.
func apiControlPlaneAddrs() []string {
	n := getenvInt("API_N", 0)
	if n <= 0 {
		return []string{getenv("API_CONTROL_PLANE_ADDR", "127.0.0.1:"+strconv.Itoa(defaultAPIControlPlanePort))}
	}
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		addrs[i] = "127.0.0.1:" + strconv.Itoa(defaultAPIControlPlanePort+i)
	}
	return addrs
}
