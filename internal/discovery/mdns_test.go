package discovery

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "cyberq.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
			},
			wantIP:   "192.168.1.50",
			wantPort: 80,
		},
		{
			name: "custom port",
			entry: &zeroconf.ServiceEntry{
				HostName: "printer.local.",
				Port:     8080,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.100")},
			},
			wantIP:   "192.168.1.100",
			wantPort: 8080,
		},
		{
			name: "no port defaults to 80",
			entry: &zeroconf.ServiceEntry{
				HostName: "cyberq.local.",
				AddrIPv4: []net.IP{net.ParseIP("172.16.0.1")},
			},
			wantIP:   "172.16.0.1",
			wantPort: 80,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "cyberq.local.",
				Port:     80,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 80,
		},
		{
			name: "prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "cyberq.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			wantIP:   "192.168.1.50",
			wantPort: 80,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				HostName: "cyberq.local.",
				Port:     80,
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if c != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", c)
				}
				return
			}
			if c == nil {
				t.Fatal("parseServiceEntry() = nil, want candidate")
			}
			if c.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", c.IP, tt.wantIP)
			}
			if c.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", c.Port, tt.wantPort)
			}
			if c.Hostname != tt.entry.HostName {
				t.Errorf("Hostname = %v, want %v", c.Hostname, tt.entry.HostName)
			}
			if time.Since(c.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", c.DiscoveredAt)
			}
		})
	}
}

func TestParseServiceEntry_Metadata(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		HostName: "cyberq.local.",
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
		Text:     []string{"path=/", "flag", "version=1.0=beta"},
	}
	entry.Instance = "CyberQ WiFi"

	c := parseServiceEntry(entry)
	if c == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	if c.Instance != "CyberQ WiFi" {
		t.Errorf("Instance = %q", c.Instance)
	}

	want := map[string]string{"path": "/", "flag": "", "version": "1.0=beta"}
	if len(c.Metadata) != len(want) {
		t.Errorf("Metadata has %d entries, want %d", len(c.Metadata), len(want))
	}
	for key, value := range want {
		if got, ok := c.Metadata[key]; !ok || got != value {
			t.Errorf("Metadata[%q] = %q, want %q", key, got, value)
		}
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func fakeBrowse(entries ...*zeroconf.ServiceEntry) BrowseFunc {
	return func(ctx context.Context, service, domain string, out chan *zeroconf.ServiceEntry) error {
		if service != ServiceType || domain != ServiceDomain {
			return errors.New("unexpected service " + service + domain)
		}
		go func() {
			for _, e := range entries {
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}
}

func TestScanner_Scan(t *testing.T) {
	entry := func(ip string, port int) *zeroconf.ServiceEntry {
		return &zeroconf.ServiceEntry{
			HostName: "host.local.",
			Port:     port,
			AddrIPv4: []net.IP{net.ParseIP(ip)},
		}
	}
	scanner := &Scanner{
		Timeout: 200 * time.Millisecond,
		browse: fakeBrowse(
			entry("192.168.1.50", 80),
			entry("192.168.1.50", 80),
			entry("192.168.1.60", 8080),
			&zeroconf.ServiceEntry{HostName: "noaddr.local."},
		),
	}

	candidates, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("Scan() returned %d candidates, want 2", len(candidates))
	}
	if candidates[0].Address() != "192.168.1.50:80" || candidates[1].Address() != "192.168.1.60:8080" {
		t.Errorf("Scan() = %v, %v", candidates[0], candidates[1])
	}
}

func TestScanner_ScanBrowseError(t *testing.T) {
	scanner := &Scanner{
		Timeout: time.Second,
		browse: func(context.Context, string, string, chan *zeroconf.ServiceEntry) error {
			return errors.New("no multicast interface")
		},
	}

	if _, err := scanner.Scan(context.Background()); err == nil {
		t.Fatal("Scan() expected error")
	}
}

const (
	testConfigXML = `<?xml version="1.0" encoding="ISO-8859-1"?>
<nutcallstatus>
<COOK>
<COOK_NAME>Big Green Egg</COOK_NAME>
<COOK_SET>2250</COOK_SET>
</COOK>
<WIFI>
<MAC>00:1E:C0:12:AB:CD</MAC>
</WIFI>
<FWVER>1.7</FWVER>
</nutcallstatus>`

	testStatusXML = `<?xml version="1.0" encoding="ISO-8859-1"?>
<nutcstatus>
<OUTPUT_PERCENT>100</OUTPUT_PERCENT>
<COOK_TEMP>3343</COOK_TEMP>
<FAN_SHORTED>0</FAN_SHORTED>
</nutcstatus>`
)

func controllerHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/config.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, testConfigXML)
	})
	mux.HandleFunc("/status.xml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, testStatusXML)
	})
	return mux
}

func candidateFor(t *testing.T, h http.Handler) *Candidate {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	return &Candidate{Instance: "test", IP: u.Hostname(), Port: port}
}

func TestScanner_Identify(t *testing.T) {
	scanner := NewScanner()
	c := candidateFor(t, controllerHandler())

	r := scanner.Identify(context.Background(), c)
	if !r.IsCyberQ() {
		t.Fatalf("Identify() error = %v", r.Err)
	}
	if r.Identity.SerialNumber != "ABCD" {
		t.Errorf("SerialNumber = %q, want ABCD", r.Identity.SerialNumber)
	}
	if r.Identity.SoftwareVersion != "1.7" {
		t.Errorf("SoftwareVersion = %q, want 1.7", r.Identity.SoftwareVersion)
	}
	if r.Identity.Cloud {
		t.Error("Cloud = true for a controller serving config.xml")
	}
}

func TestScanner_IdentifyAll(t *testing.T) {
	scanner := NewScanner()
	controller := candidateFor(t, controllerHandler())
	other := candidateFor(t, http.NotFoundHandler())

	results := scanner.IdentifyAll(context.Background(), []*Candidate{other, controller})
	if len(results) != 2 {
		t.Fatalf("IdentifyAll() returned %d results", len(results))
	}
	if results[0].Candidate != other || results[0].IsCyberQ() {
		t.Errorf("results[0] = %+v, want non-CyberQ", results[0])
	}
	if results[1].Candidate != controller || !results[1].IsCyberQ() {
		t.Errorf("results[1] = %+v, want CyberQ", results[1])
	}
}

func TestScanner_Discover(t *testing.T) {
	c := candidateFor(t, controllerHandler())
	port, ip := c.Port, net.ParseIP(c.IP)

	scanner := &Scanner{
		Timeout: 200 * time.Millisecond,
		browse: fakeBrowse(&zeroconf.ServiceEntry{
			HostName: "cyberq.local.",
			Port:     port,
			AddrIPv4: []net.IP{ip},
		}),
	}

	results, err := scanner.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(results) != 1 || !results[0].IsCyberQ() {
		t.Fatalf("Discover() = %+v", results)
	}
}
