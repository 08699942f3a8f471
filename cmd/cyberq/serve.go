package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/cyberq/internal/config"
	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/logging"
	"github.com/muurk/cyberq/internal/metrics"
	"github.com/muurk/cyberq/internal/mqtt"
	"github.com/muurk/cyberq/internal/poller"
	"github.com/muurk/cyberq/internal/server"
)

var listenAddr string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides http.listen)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll a controller and serve its state",
	Long: `Poll the controller continuously and expose its state:

  GET  /health, /metrics, /api/sensors, /api/sensors/{key}
  POST /api/sensors/{key}   {"value": ...}
  GET  /ws                  state pushed after every poll

With mqtt.enable set, every sensor is also published to retained
<base_topic>/<serial>/<KEY>/state topics and <KEY>/set topics accept writes.

Settings come from defaults, the --config YAML file (or CONFIG_FILE), and
CYBERQ_* environment variables such as CYBERQ_DEVICE_HOST or
CYBERQ_MQTT_HOST. --device, --port and --log-level override them.`,
	Example: `  # Serve a controller on :9120
  cyberq serve --device 192.168.1.50

  # Use a settings file and publish to MQTT
  cyberq serve --config /etc/cyberq.yaml

  # Environment only
  CYBERQ_DEVICE_HOST=192.168.1.50 CYBERQ_MQTT_ENABLE=true CYBERQ_MQTT_HOST=broker cyberq serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings(configFile)
	if err != nil {
		return err
	}

	level := logLevel
	if level == "" {
		level = settings.LogLevel
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}
	logging.Info("Settings loaded", zap.Any("settings", settings.Redacted()))

	host, port := settings.Device.Host, settings.Device.Port
	if deviceTarget != "" {
		t, err := resolveTarget(loadRegistry())
		if err != nil {
			return err
		}
		host, port = t.Host, t.Port
	} else if devicePort != 0 {
		port = devicePort
	}
	if host == "" {
		return fmt.Errorf("no controller configured: set device.host, CYBERQ_DEVICE_HOST or --device")
	}
	if listenAddr != "" {
		settings.HTTP.Listen = listenAddr
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := cyberq.NewClient(host, port, nil)
	p := poller.New(client,
		poller.WithInterval(settings.Poll.Interval()),
		poller.WithTimeout(settings.Poll.Timeout()))

	collector := metrics.New()
	p.Subscribe(collector.Update)

	srv, err := server.New(server.Config{
		Listen:   settings.HTTP.Listen,
		CertFile: settings.HTTP.CertFile,
		KeyFile:  settings.HTTP.KeyFile,
	}, p, collector.Handler())
	if err != nil {
		return err
	}

	// The first poll supplies the serial number used in MQTT topics.
	first := p.Poll(ctx)
	if first.LastError != nil {
		logging.Warn("Initial refresh failed, continuing to poll",
			zap.String("device", fmt.Sprintf("%s:%d", host, port)),
			zap.String("error", cyberq.GetShortErrorMessage(first.LastError)))
	} else {
		logging.Info("Connected to controller", zap.String("controller", first.Identity.Summary()))
		rememberDevice(loadRegistry(), first.Identity)
	}

	if settings.MQTT.Enable {
		bridge, err := mqtt.Connect(settings.MQTT, mqtt.DeviceID(first.Identity), p)
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker %s:%d: %w", settings.MQTT.Host, settings.MQTT.Port, err)
		}
		defer bridge.Close()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()

	err = srv.Run(ctx)
	cancel()
	wg.Wait()
	return err
}
