package cyberq

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/cyberq/internal/logging"
	"github.com/muurk/cyberq/internal/version"
)

const (
	// DefaultPort is the controller's HTTP port
	DefaultPort = 80

	// DefaultTimeout is the per-request HTTP timeout
	DefaultTimeout = 10 * time.Second

	// RefreshTimeout bounds a whole Refresh when the caller's context has no deadline
	RefreshTimeout = 20 * time.Second

	// ConfigRefreshInterval is the fixed floor between full config reads
	ConfigRefreshInterval = 10 * time.Minute

	// Manufacturer is reported for every controller
	Manufacturer = "BBQ Guru"

	ModelCloud = "CyberQ Cloud"
	ModelWiFi  = "CyberQ WiFi"
)

const (
	statusPath = "status.xml"
	configPath = "config.xml"
)

// configPages are scraped, in order, on each config refresh in cloud mode
var configPages = []Page{PageControl, PageIndex, PageSystem}

// Client talks to a single CyberQ controller.
//
// Calls must not overlap: Refresh and Set each run a sequence of requests
// and mutate the client's identity and current snapshot. Snapshots already
// returned by Refresh are never modified.
type Client struct {
	host       string
	port       int
	baseURL    string
	httpClient *http.Client
	registry   *Registry

	sensors *Store

	mac             string
	serialNumber    string
	softwareVersion string
	hardwareVersion string
	cloud           bool
	lastConfig      time.Time

	now func() time.Time
}

// Identity is a copy of the controller's identity fields
type Identity struct {
	Host            string    `json:"host"`
	Port            int       `json:"port"`
	MAC             string    `json:"mac"`
	SerialNumber    string    `json:"serial_number"`
	SoftwareVersion string    `json:"software_version"`
	HardwareVersion string    `json:"hardware_version"`
	Manufacturer    string    `json:"manufacturer"`
	Model           string    `json:"model"`
	Name            string    `json:"name"`
	Cloud           bool      `json:"cloud"`
	LastConfig      time.Time `json:"last_config,omitzero"`
}

// NewClient creates a client for the controller at host:port.
// httpClient may be nil, in which case one with DefaultTimeout is used.
// No requests are made until the first Refresh.
func NewClient(host string, port int, httpClient *http.Client) *Client {
	if port == 0 {
		port = DefaultPort
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	reg := DefaultRegistry()
	return &Client{
		host:       host,
		port:       port,
		baseURL:    "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
		httpClient: httpClient,
		registry:   reg,
		sensors:    NewStore(reg),
		now:        time.Now,
	}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + path
}

// Refresh reads the controller state and returns a new snapshot.
//
// A full config read runs first when none has succeeded yet or the last one
// is older than ConfigRefreshInterval; status.xml is read every time. On
// error no sensor values are committed and the previous snapshot stays
// current. Identity learned before the failure is kept.
func (c *Client) Refresh(ctx context.Context) (*Store, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, RefreshTimeout)
		defer cancel()
	}

	next := c.sensors.Clone()

	configured := false
	if c.configDue() {
		if err := c.refreshConfig(ctx, next); err != nil {
			return nil, err
		}
		configured = true
	}

	body, err := c.get(ctx, statusPath)
	if err != nil {
		return nil, err
	}
	if err := DecodeStatusXML(next, body); err != nil {
		logging.LogRawBytes("Undecodable status.xml", body)
		return nil, err
	}

	c.sensors = next
	if configured {
		c.lastConfig = c.now()
	}
	return next, nil
}

func (c *Client) configDue() bool {
	return c.lastConfig.IsZero() || c.now().Sub(c.lastConfig) > ConfigRefreshInterval
}

func (c *Client) refreshConfig(ctx context.Context, store *Store) error {
	var configBody []byte

	// Identity probe. Only an HTTP status error means the controller is
	// behind the cloud relay; connection failures leave the mode undecided.
	// In cloud mode wifi.htm is read until it yields a MAC.
	if c.mac == "" {
		if !c.cloud {
			body, err := c.get(ctx, configPath)
			switch {
			case err == nil:
				configBody = body
			case IsHTTPError(err):
				logging.Info("config.xml unavailable, using cloud mode",
					zap.String("host", c.host),
					zap.Error(err))
				c.cloud = true
			default:
				return err
			}
		}
		if c.cloud {
			if err := c.bootstrapWiFi(ctx); err != nil {
				return err
			}
		}
	}

	if !c.cloud {
		if configBody == nil {
			body, err := c.get(ctx, configPath)
			if err != nil {
				return err
			}
			configBody = body
		}
		id, err := DecodeConfigXML(store, configBody)
		if err != nil {
			logging.LogRawBytes("Undecodable config.xml", configBody)
			return err
		}
		if id.MAC != "" {
			c.mac = id.MAC
			c.serialNumber = id.SerialNumber
		}
		if id.SoftwareVersion != "" {
			c.softwareVersion = id.SoftwareVersion
		}
	} else {
		for _, page := range configPages {
			body, err := c.get(ctx, string(page))
			if err != nil {
				return err
			}
			if err := DecodeHTML(store, string(body)); err != nil {
				return err
			}
		}
	}

	logging.Debug("Config read",
		zap.String("serial", c.serialNumber),
		zap.Bool("cloud", c.cloud))
	return nil
}

func (c *Client) bootstrapWiFi(ctx context.Context) error {
	body, err := c.get(ctx, string(PageWiFi))
	if err != nil {
		return err
	}
	id := DecodeWiFiPage(string(body))
	c.mac = id.MAC
	c.serialNumber = id.SerialNumber
	c.softwareVersion = id.SoftwareVersion
	c.hardwareVersion = id.HardwareVersion
	logging.Info("Identified controller from wifi page",
		zap.String("mac", c.mac),
		zap.String("firmware", c.softwareVersion),
		zap.String("hardware", c.hardwareVersion))
	return nil
}

// Set writes value to the sensor named key (or its alias).
//
// The value is encoded before any request is made, so bounds, option and
// read-only violations never reach the controller. The controller answers
// the POST with the updated page, which is decoded into a new snapshot.
func (c *Client) Set(ctx context.Context, key string, value any) (bool, error) {
	current, err := c.sensors.Get(key)
	if err != nil {
		return false, err
	}
	d := current.Descriptor()

	wire, err := d.Encode(value)
	if err != nil {
		return false, err
	}
	wireKey := d.WireKey(c.cloud)

	logging.Info("Writing sensor",
		zap.String("sensor", d.Name),
		zap.String("wire_key", wireKey),
		zap.String("value", wire),
		zap.String("page", string(d.Page)))

	body, err := c.post(ctx, string(d.Page), url.Values{wireKey: {wire}})
	if err != nil {
		return false, err
	}

	next := c.sensors.Clone()
	if err := DecodeHTML(next, string(body)); err != nil {
		return false, err
	}
	c.sensors = next
	return true, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, NewNetworkError("failed to create request", err)
	}
	return c.do(req, path)
}

func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewNetworkError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) ([]byte, error) {
	req.Header.Set("User-Agent", version.UserAgent())
	logging.LogDeviceRequest(req.Method, req.URL.String())
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		devErr := ClassifyNetworkError(err, c.host)
		devErr.Message = fmt.Sprintf("%s %s: %s", req.Method, path, devErr.Message)
		return nil, devErr
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	logging.LogDeviceResponse(req.URL.String(), resp.StatusCode, len(body), time.Since(start))
	if err != nil {
		devErr := ClassifyNetworkError(err, c.host)
		devErr.Message = fmt.Sprintf("reading %s: %s", path, devErr.Message)
		return nil, devErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := NewHTTPError(resp.StatusCode, fmt.Sprintf("%s %s returned %s", req.Method, path, resp.Status))
		httpErr.Host = c.host
		return nil, httpErr
	}
	return body, nil
}

// Sensors returns the current snapshot
func (c *Client) Sensors() *Store { return c.sensors }

// Registry returns the descriptor table used for decoding
func (c *Client) Registry() *Registry { return c.registry }

func (c *Client) Host() string            { return c.host }
func (c *Client) Port() int               { return c.port }
func (c *Client) BaseURL() string         { return c.baseURL }
func (c *Client) MAC() string             { return c.mac }
func (c *Client) SerialNumber() string    { return c.serialNumber }
func (c *Client) SoftwareVersion() string { return c.softwareVersion }
func (c *Client) HardwareVersion() string { return c.hardwareVersion }
func (c *Client) Manufacturer() string    { return Manufacturer }

// CloudMode reports whether the controller was detected behind the cloud relay
func (c *Client) CloudMode() bool { return c.cloud }

// LastConfigRefresh returns when config was last read; zero if never
func (c *Client) LastConfigRefresh() time.Time { return c.lastConfig }

// Model distinguishes cloud-relay controllers from local ones
func (c *Client) Model() string {
	if c.cloud {
		return ModelCloud
	}
	return ModelWiFi
}

// Name is the display name, derived from the serial number
func (c *Client) Name() string {
	return "CyberQ " + c.serialNumber
}

// Identity returns a copy of the identity fields
func (c *Client) Identity() Identity {
	return Identity{
		Host:            c.host,
		Port:            c.port,
		MAC:             c.mac,
		SerialNumber:    c.serialNumber,
		SoftwareVersion: c.softwareVersion,
		HardwareVersion: c.hardwareVersion,
		Manufacturer:    Manufacturer,
		Model:           c.Model(),
		Name:            c.Name(),
		Cloud:           c.cloud,
		LastConfig:      c.lastConfig,
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("CyberQ %s: serial %s MAC: %s", c.baseURL, c.serialNumber, c.mac)
}
