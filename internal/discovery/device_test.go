package discovery

import (
	"errors"
	"testing"
)

func TestCandidate_String(t *testing.T) {
	c := &Candidate{
		Instance: "CyberQ WiFi",
		Hostname: "cyberq.local.",
		IP:       "192.168.1.50",
		Port:     80,
	}

	expected := "CyberQ WiFi (cyberq.local.) at 192.168.1.50:80"
	if c.String() != expected {
		t.Errorf("Candidate.String() = %v, want %v", c.String(), expected)
	}
}

func TestCandidate_Address(t *testing.T) {
	tests := []struct {
		name      string
		candidate *Candidate
		expected  string
	}{
		{
			name:      "standard HTTP port",
			candidate: &Candidate{IP: "192.168.1.50", Port: 80},
			expected:  "192.168.1.50:80",
		},
		{
			name:      "custom port",
			candidate: &Candidate{IP: "10.0.0.5", Port: 8080},
			expected:  "10.0.0.5:8080",
		},
		{
			name:      "IPv6",
			candidate: &Candidate{IP: "fe80::1", Port: 80},
			expected:  "[fe80::1]:80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.candidate.Address(); got != tt.expected {
				t.Errorf("Candidate.Address() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCandidate_GetMetadata(t *testing.T) {
	c := &Candidate{Metadata: map[string]string{"path": "/"}}

	if got := c.GetMetadata("path"); got != "/" {
		t.Errorf("GetMetadata(path) = %q, want /", got)
	}
	if got := c.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}

	var empty Candidate
	if got := empty.GetMetadata("anything"); got != "" {
		t.Errorf("GetMetadata() with nil map = %q, want empty", got)
	}
}

func TestResult_IsCyberQ(t *testing.T) {
	if !(Result{}).IsCyberQ() {
		t.Error("IsCyberQ() = false for result without error")
	}
	if (Result{Err: errors.New("404")}).IsCyberQ() {
		t.Error("IsCyberQ() = true for result with error")
	}
}
