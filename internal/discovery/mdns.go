package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type the controller's web server advertises
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout is how long a scan listens for advertisements
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is assumed when an advertisement carries no port
	DefaultPort = 80
)

// BrowseFunc browses for service on domain, sending entries until ctx ends
type BrowseFunc func(ctx context.Context, service, domain string, entries chan *zeroconf.ServiceEntry) error

func zeroconfBrowse(ctx context.Context, service, domain string, entries chan *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, service, domain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// Scanner handles mDNS discovery and identification
type Scanner struct {
	// Timeout is the maximum time to listen for advertisements
	Timeout time.Duration

	// HTTPClient is used to identify candidates; nil uses cyberq's default
	HTTPClient *http.Client

	browse BrowseFunc
}

// NewScanner creates a scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		browse:  zeroconfBrowse,
	}
}

// Scan collects every HTTP service advertised before the timeout,
// de-duplicated by address.
func (s *Scanner) Scan(ctx context.Context) ([]*Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu         sync.Mutex
		candidates []*Candidate
		seen       = make(map[string]bool)
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				c := parseServiceEntry(entry)
				if c == nil {
					continue
				}
				mu.Lock()
				if !seen[c.Address()] {
					seen[c.Address()] = true
					candidates = append(candidates, c)
					logging.Debug("mDNS candidate", zap.String("candidate", c.String()))
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	browse := s.browse
	if browse == nil {
		browse = zeroconfBrowse
	}
	if err := browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, err
	}

	<-ctx.Done()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return candidates, nil
}

// Identify probes c with a one-shot refresh
func (s *Scanner) Identify(ctx context.Context, c *Candidate) Result {
	client := cyberq.NewClient(c.IP, c.Port, s.HTTPClient)
	if _, err := client.Refresh(ctx); err != nil {
		logging.Debug("Candidate is not a CyberQ", zap.String("address", c.Address()), zap.Error(err))
		return Result{Candidate: c, Err: err}
	}
	return Result{Candidate: c, Identity: client.Identity()}
}

// IdentifyAll probes every candidate concurrently, returning results in
// candidate order.
func (s *Scanner) IdentifyAll(ctx context.Context, candidates []*Candidate) []Result {
	results := make([]Result, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Identify(ctx, c)
		}()
	}
	wg.Wait()
	return results
}

// Discover scans and identifies in one step
func (s *Scanner) Discover(ctx context.Context) ([]Result, error) {
	candidates, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	logging.Info("mDNS scan complete", zap.Int("candidates", len(candidates)))
	return s.IdentifyAll(ctx, candidates), nil
}

// parseServiceEntry converts a zeroconf entry to a Candidate, or nil when
// the entry has no usable address
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Candidate {
	if entry == nil {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Candidate{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// DiscoverDevices runs a scan and identification with the given timeout
func DiscoverDevices(ctx context.Context, timeout time.Duration) ([]Result, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Discover(ctx)
}
