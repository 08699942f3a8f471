// Package discovery finds CyberQ controllers on the local network.
//
// The controller's web server advertises itself as a plain "_http._tcp"
// service, so an mDNS browse returns every web server on the segment.
// Discovery therefore runs in two steps:
//
//  1. Scan collects every advertised HTTP service as a Candidate
//  2. Identify probes each candidate with a one-shot refresh; candidates
//     that do not answer like a controller are reported with the error
//
// # Usage Example
//
//	results, err := discovery.DiscoverDevices(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, r := range results {
//	    if r.IsCyberQ() {
//	        fmt.Printf("%s serial %s\n", r.Candidate.Address(), r.Identity.SerialNumber)
//	    }
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Controllers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
