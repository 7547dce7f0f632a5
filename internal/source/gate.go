package source

import (
	"strings"
	"sync"
)

// Gate holds the most recent uploaded asset's durable URL and answers whether
// it is usable for dispatch. Only absolute https URLs ever reach a provider;
// transient local references (blob:, data:, relative paths) never do.
type Gate struct {
	mu  sync.Mutex
	url string
}

// NewGate returns an empty gate.
func NewGate() *Gate {
	return &Gate{}
}

// Set replaces the stored URL. Passing an empty string clears the gate.
func (g *Gate) Set(url string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.url = strings.TrimSpace(url)
}

// Clear drops the stored URL.
func (g *Gate) Clear() {
	g.Set("")
}

// URL returns the stored URL, ready or not.
func (g *Gate) URL() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.url
}

// Ready reports whether the stored URL is usable for dispatch.
func (g *Gate) Ready() bool {
	return IsSecureURL(g.URL())
}

// IsSecureURL reports whether url is an absolute secure-scheme reference.
func IsSecureURL(url string) bool {
	return strings.HasPrefix(url, "https://") && len(url) > len("https://")
}
