package sequencer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/browserbox/browserbox/internal/infrastructure/config"
	"github.com/browserbox/browserbox/internal/infrastructure/logging"
	"github.com/browserbox/browserbox/internal/ports"
	"github.com/browserbox/browserbox/internal/supervisor"
)

// Stage couples a program with its readiness signal. Later stages assume
// earlier ones are already listening.
type Stage struct {
	Program supervisor.Program
	Ready   ReadyCheck // nil means no wait
}

// Sequencer launches the managed service stack in dependency order.
type Sequencer struct {
	cfg    *config.Config
	sup    *supervisor.Supervisor
	logger *logging.Logger
}

// New creates a sequencer.
func New(cfg *config.Config, sup *supervisor.Supervisor, logger *logging.Logger) *Sequencer {
	return &Sequencer{cfg: cfg, sup: sup, logger: logger.Component("sequencer")}
}

// Stages builds the fixed startup order: virtual display, remote-desktop
// stack, websocket bridge, debuggable browser, application server, reverse
// proxy (foreground).
func (s *Sequencer) Stages(lease ports.Lease) []Stage {
	cfg := s.cfg
	displayEnv := []string{"DISPLAY=" + cfg.Display.Name}

	stages := []Stage{
		{
			Program: supervisor.Program{
				Name:        "xvfb",
				Command:     "Xvfb",
				Args:        []string{cfg.Display.Name, "-screen", "0", cfg.Display.Resolution, "-ac"},
				Required:    true,
				MaxRetries:  3,
				GracePeriod: 2 * time.Second,
				Backoff:     time.Second,
			},
			Ready: WaitForSocket(cfg.Display.SocketPath(), 10*time.Second),
		},
		{
			Program: supervisor.Program{
				Name:        "x11vnc",
				Command:     "x11vnc",
				Args:        s.vncArgs(),
				Env:         displayEnv,
				MaxRetries:  3,
				GracePeriod: 2 * time.Second,
				Backoff:     time.Second,
			},
			Ready: WaitForPort(cfg.Display.VNCPort, 10*time.Second),
		},
		{
			Program: supervisor.Program{
				Name:        "fluxbox",
				Command:     "fluxbox",
				Env:         displayEnv,
				MaxRetries:  3,
				GracePeriod: 2 * time.Second,
				Backoff:     time.Second,
			},
			Ready: Settle(500 * time.Millisecond),
		},
		{
			Program: supervisor.Program{
				Name:    "websockify",
				Command: "websockify",
				Args: []string{
					"--web", "/usr/share/novnc",
					fmt.Sprintf("%d", cfg.Display.NoVNCPort),
					fmt.Sprintf("localhost:%d", cfg.Display.VNCPort),
				},
				MaxRetries:  3,
				GracePeriod: 2 * time.Second,
				Backoff:     time.Second,
			},
			Ready: WaitForPort(cfg.Display.NoVNCPort, 10*time.Second),
		},
		{
			Program: supervisor.Program{
				Name:        "browser",
				Command:     cfg.Browser.Binary,
				Args:        s.browserArgs(lease.Bound),
				Env:         displayEnv,
				MaxRetries:  3,
				GracePeriod: 5 * time.Second,
				Backoff:     2 * time.Second,
			},
			Ready: WaitForPort(lease.Bound, 20*time.Second),
		},
		{
			Program: supervisor.Program{
				Name:    "webui",
				Command: cfg.App.Command,
				Args: []string{
					cfg.App.Script,
					"--ip", "127.0.0.1",
					"--port", fmt.Sprintf("%d", cfg.App.UIPort),
					"--api-port", fmt.Sprintf("%d", cfg.App.APIPort),
				},
				Dir:         cfg.App.Dir,
				Env:         displayEnv,
				Required:    true,
				MaxRetries:  3,
				GracePeriod: 5 * time.Second,
				Backoff:     2 * time.Second,
			},
			Ready: WaitForPort(cfg.App.APIPort, 60*time.Second),
		},
		{
			Program: supervisor.Program{
				Name:       "nginx",
				Command:    "nginx",
				Args:       []string{"-g", "daemon off;"},
				Required:   true,
				Foreground: true,
			},
			Ready: WaitForPort(cfg.Proxy.ListenPort, 10*time.Second),
		},
	}
	return stages
}

// Run renders the proxy config and starts every stage in order. Missing
// optional binaries are logged and skipped; a required stage failing to
// start or become ready aborts startup.
func (s *Sequencer) Run(ctx context.Context, lease ports.Lease) error {
	if err := RenderProxyConfig(s.cfg.Proxy.TemplatePath, s.cfg.Proxy.ConfigPath, RouteTable{
		ListenPort: s.cfg.Proxy.ListenPort,
		AppPort:    s.cfg.App.UIPort,
		APIPort:    s.cfg.App.APIPort,
		BridgePort: s.cfg.Display.NoVNCPort,
		DebugPort:  lease.Bound,
		HealthPort: s.cfg.API.Port,
	}); err != nil {
		return err
	}

	for _, stage := range s.Stages(lease) {
		if err := s.runStage(ctx, stage); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequencer) runStage(ctx context.Context, stage Stage) error {
	name := stage.Program.Name
	err := s.sup.Start(ctx, stage.Program)
	if err != nil {
		if errors.Is(err, supervisor.ErrMissingBinary) && !stage.Program.Required {
			s.logger.Warn("optional component missing, skipping",
				zap.String("program", name),
				zap.String("command", stage.Program.Command),
			)
			return nil
		}
		return fmt.Errorf("failed to start %s: %w", name, err)
	}

	if stage.Ready == nil {
		return nil
	}
	if err := stage.Ready(ctx); err != nil {
		if !stage.Program.Required {
			s.logger.Warn("optional component not ready, continuing",
				zap.String("program", name),
				zap.Error(err),
			)
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logger.Info("stage ready", zap.String("program", name))
	return nil
}

func (s *Sequencer) vncArgs() []string {
	args := []string{
		"-display", s.cfg.Display.Name,
		"-forever", "-shared",
		"-rfbport", fmt.Sprintf("%d", s.cfg.Display.VNCPort),
	}
	if s.cfg.Display.VNCPassword != "" {
		args = append(args, "-passwd", s.cfg.Display.VNCPassword)
	} else {
		args = append(args, "-nopw")
	}
	return args
}

func (s *Sequencer) browserArgs(debugPort int) []string {
	size := "1920,1080"
	if parts := strings.SplitN(s.cfg.Display.Resolution, "x", 3); len(parts) >= 2 {
		size = parts[0] + "," + parts[1]
	}
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", debugPort),
		"--remote-debugging-address=0.0.0.0",
		"--no-sandbox",
		"--disable-gpu",
		"--disable-dev-shm-usage",
		"--disable-default-apps",
		"--start-maximized",
		"--window-size=" + size,
	}
	if s.cfg.Browser.ExtraArgsLine != "" {
		args = append(args, strings.Fields(s.cfg.Browser.ExtraArgsLine)...)
	}
	return args
}
