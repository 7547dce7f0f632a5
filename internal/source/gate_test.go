package source

import "testing"

func TestIsSecureURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"https url", "https://cdn.example.com/x.jpg", true},
		{"blob reference", "blob:abc", false},
		{"data url", "data:image/png;base64,AAA", false},
		{"plain http", "http://cdn.example.com/x.jpg", false},
		{"relative path", "/uploads/x.jpg", false},
		{"empty", "", false},
		{"scheme only", "https://", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSecureURL(tc.url); got != tc.want {
				t.Fatalf("IsSecureURL(%q) = %v, want %v", tc.url, got, tc.want)
			}
		})
	}
}

func TestGateLifecycle(t *testing.T) {
	gate := NewGate()
	if gate.Ready() {
		t.Fatalf("empty gate must not be ready")
	}

	gate.Set("blob:preview-123")
	if gate.Ready() {
		t.Fatalf("preview reference must not make the gate ready")
	}

	gate.Set("https://cdn.example.com/x.jpg")
	if !gate.Ready() {
		t.Fatalf("secure url should make the gate ready")
	}
	if gate.URL() != "https://cdn.example.com/x.jpg" {
		t.Fatalf("URL() = %q", gate.URL())
	}

	gate.Set("https://cdn.example.com/y.jpg")
	if gate.URL() != "https://cdn.example.com/y.jpg" {
		t.Fatalf("a new upload must replace the previous one")
	}

	gate.Clear()
	if gate.Ready() || gate.URL() != "" {
		t.Fatalf("Clear must empty the gate")
	}
}
