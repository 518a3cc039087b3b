package netutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"203.0.113.7:51034":  "203.0.113.7",
		"203.0.113.7":        "203.0.113.7",
		" 203.0.113.7 ":      "203.0.113.7",
		"[2001:db8::1]:8443": "2001:db8::1",
		"2001:DB8::1":        "2001:db8::1",
		"localhost:10443":    "localhost",
		"":                   "",
	}

	for in, want := range tests {
		if got := NormalizeAddr(in); got != want {
			t.Fatalf("NormalizeAddr(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote_addr_only",
			remoteAddr: "203.0.113.7:51034",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded_for_first_hop",
			remoteAddr: "10.0.0.2:33000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.2"},
			want:       "198.51.100.4",
		},
		{
			name:       "forwarded_for_single",
			remoteAddr: "10.0.0.2:33000",
			headers:    map[string]string{"X-Forwarded-For": " 198.51.100.4 "},
			want:       "198.51.100.4",
		},
		{
			name:       "forwarded_for_beats_real_ip",
			remoteAddr: "10.0.0.2:33000",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.4",
				"X-Real-Ip":       "192.0.2.9",
			},
			want: "198.51.100.4",
		},
		{
			name:       "real_ip_fallback",
			remoteAddr: "10.0.0.2:33000",
			headers:    map[string]string{"X-Real-Ip": "192.0.2.9"},
			want:       "192.0.2.9",
		},
		{
			name:       "blank_forwarded_for_ignored",
			remoteAddr: "203.0.113.7:51034",
			headers:    map[string]string{"X-Forwarded-For": " , 10.0.0.2"},
			want:       "203.0.113.7",
		},
		{
			name:       "ipv6_remote",
			remoteAddr: "[2001:db8::1]:8443",
			want:       "2001:db8::1",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodPost, "/api/register", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tc.want {
				t.Errorf("ClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}
