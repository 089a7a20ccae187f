package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all orchestrator configuration. It is built once at startup
// and passed by reference; components never read the environment directly.
type Config struct {
	Auth    AuthConfig
	Proxy   ProxyConfig
	Display DisplayConfig
	Browser BrowserConfig
	App     AppConfig
	Health  HealthConfig
	Paths   PathsConfig
	Logging LogConfig
	API     APIConfig
}

// AuthConfig holds the service authentication key consumed by the task API.
type AuthConfig struct {
	APIKey string `envconfig:"BROWSER_SERVICE_API_KEY"`
}

// ProxyConfig holds the reverse proxy settings.
type ProxyConfig struct {
	// ListenPort is assigned externally by the platform (e.g. App Runner).
	ListenPort   int    `envconfig:"PORT" default:"80"`
	ConfigPath   string `envconfig:"NGINX_CONF_PATH" default:"/etc/nginx/conf.d/default.conf"`
	TemplatePath string `envconfig:"NGINX_TEMPLATE_PATH" default:"/etc/nginx/templates/default.conf.tmpl"`
}

// DisplayConfig holds virtual display and remote-desktop settings.
type DisplayConfig struct {
	Name        string `envconfig:"DISPLAY" default:":99"`
	Resolution  string `envconfig:"RESOLUTION" default:"1920x1080x24"`
	VNCPassword string `envconfig:"VNC_PASSWORD" default:""`
	VNCPort     int    `envconfig:"VNC_PORT" default:"5900"`
	NoVNCPort   int    `envconfig:"NOVNC_PORT" default:"6080"`
}

// BrowserConfig holds the debuggable browser settings.
type BrowserConfig struct {
	Binary        string `envconfig:"BROWSER_BIN" default:"chromium"`
	DebugPort     int    `envconfig:"CHROME_DEBUG_PORT" default:"9222"`
	DebugPortMax  int    `envconfig:"CHROME_DEBUG_PORT_MAX" default:"9300"`
	ExtraArgsLine string `envconfig:"BROWSER_EXTRA_ARGS" default:""`
}

// AppConfig holds the application server launch settings and ports.
type AppConfig struct {
	Command string `envconfig:"WEBUI_CMD" default:"python3"`
	Script  string `envconfig:"WEBUI_SCRIPT" default:"webui.py"`
	Dir     string `envconfig:"WEBUI_DIR" default:"/app"`
	UIPort  int    `envconfig:"WEBUI_PORT" default:"7788"`
	APIPort int    `envconfig:"WEBUI_API_PORT" default:"7789"`
}

// HealthConfig holds health aggregation knobs.
type HealthConfig struct {
	MaxRetries   int           `envconfig:"HEALTH_MAX_RETRIES" default:"3"`
	RetryDelay   time.Duration `envconfig:"HEALTH_RETRY_DELAY" default:"2s"`
	Timeout      time.Duration `envconfig:"HEALTH_TIMEOUT" default:"5s"`
	ServicesFile string        `envconfig:"HEALTH_SERVICES_FILE" default:""`
}

// PathsConfig holds filesystem locations produced for downstream consumers.
type PathsConfig struct {
	StateDir    string `envconfig:"STATE_DIR" default:"/var/run/browserbox"`
	ResultsRoot string `envconfig:"RESULTS_ROOT" default:"./tmp"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// APIConfig holds the introspection API settings.
type APIConfig struct {
	Port              int    `envconfig:"ORCHESTRATOR_PORT" default:"8085"`
	AllowedOrigins    string `envconfig:"ALLOWED_ORIGINS" default:""`
	RequestsPerSecond int    `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int    `envconfig:"RATE_LIMIT_BURST" default:"100"`
}

// Load loads configuration from environment variables. The service API key
// has no default: startup must abort without it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Auth.APIKey == "" {
		return nil, fmt.Errorf("BROWSER_SERVICE_API_KEY must be set")
	}
	if cfg.Browser.DebugPortMax < cfg.Browser.DebugPort {
		return nil, fmt.Errorf("CHROME_DEBUG_PORT_MAX (%d) below CHROME_DEBUG_PORT (%d)",
			cfg.Browser.DebugPortMax, cfg.Browser.DebugPort)
	}
	return &cfg, nil
}

// Origins splits the ALLOWED_ORIGINS list into individual origins.
func (a APIConfig) Origins() []string {
	if a.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(a.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LeasePath is where the allocated debug-port lease is exported.
func (p PathsConfig) LeasePath() string {
	return filepath.Join(p.StateDir, "debug-port.json")
}

// SocketPath returns the X11 unix socket for the display name (":99" -> X99).
func (d DisplayConfig) SocketPath() string {
	num := strings.TrimPrefix(d.Name, ":")
	return filepath.Join("/tmp/.X11-unix", "X"+num)
}
