package models

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "degraded"
	Uptime  string       `json:"uptime"`
	Browser BrowserStats `json:"browser"`
	Cache   CacheStats   `json:"cache"`
	Version string       `json:"version"`
}

// BrowserStats reports the state of the shared browser.
type BrowserStats struct {
	State       string `json:"state"`
	Launches    int64  `json:"launches"`
	ActivePages int    `json:"active_pages"`
}

// CacheStats reports result cache occupancy.
type CacheStats struct {
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"max_entries"`
	TTL        string `json:"ttl"`
}

// Version is reported by /api/health and the CLI.
const Version = "0.1.0"
