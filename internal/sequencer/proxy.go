package sequencer

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// RouteTable carries the port mapping the reverse proxy needs: the
// externally assigned listen port plus every internal upstream.
type RouteTable struct {
	ListenPort int
	AppPort    int // root path -> application server (UI)
	APIPort    int // api prefix -> application API
	BridgePort int // /vnc/ -> websocket bridge
	DebugPort  int // /debug/ -> debuggable browser
	HealthPort int // /health -> introspection API
}

// defaultProxyTemplate is used when no template file is installed. The
// routing contract is owned by nginx; this only substitutes ports.
const defaultProxyTemplate = `server {
    listen {{.ListenPort}};

    location / {
        proxy_pass http://127.0.0.1:{{.AppPort}};
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
        proxy_set_header Host $host;
    }

    location /api/ {
        proxy_pass http://127.0.0.1:{{.APIPort}}/;
        proxy_set_header Host $host;
    }

    location /vnc/ {
        proxy_pass http://127.0.0.1:{{.BridgePort}}/;
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
    }

    location /debug/ {
        proxy_pass http://127.0.0.1:{{.DebugPort}}/;
    }

    location /health {
        proxy_pass http://127.0.0.1:{{.HealthPort}}/health;
    }
}
`

// RenderProxyConfig writes the reverse-proxy config with the route table
// substituted. A template file at templatePath takes precedence over the
// built-in one.
func RenderProxyConfig(templatePath, outPath string, routes RouteTable) error {
	text := defaultProxyTemplate
	if templatePath != "" {
		if data, err := os.ReadFile(templatePath); err == nil {
			text = string(data)
		}
	}

	tmpl, err := template.New("proxy").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse proxy template: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("failed to create proxy config dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create proxy config: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, routes); err != nil {
		return fmt.Errorf("failed to render proxy config: %w", err)
	}
	return nil
}
