package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/cyberq/internal/cyberq"
)

// Candidate is an HTTP service seen on the network that may be a CyberQ
type Candidate struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "cyberq.local.")
	Hostname string

	// IP is the first advertised address, IPv4 preferred
	IP string

	// Port is the advertised HTTP port (80 when none was given)
	Port int

	// Metadata holds the TXT record key=value pairs
	Metadata map[string]string

	// DiscoveredAt is when the advertisement was received
	DiscoveredAt time.Time
}

// String returns a human-readable representation of the candidate
func (c *Candidate) String() string {
	return fmt.Sprintf("%s (%s) at %s", c.Instance, c.Hostname, c.Address())
}

// Address returns host:port for the candidate
func (c *Candidate) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// GetMetadata retrieves a TXT value by key, or "" if absent
func (c *Candidate) GetMetadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// Result is the outcome of probing one candidate
type Result struct {
	Candidate *Candidate

	// Identity is filled in when the candidate answered as a CyberQ
	Identity cyberq.Identity

	// Err is why the candidate could not be identified
	Err error
}

// IsCyberQ reports whether the candidate answered as a controller
func (r Result) IsCyberQ() bool {
	return r.Err == nil
}
