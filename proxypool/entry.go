package proxypool

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Entry is one egress identity in the pool. Identity fields are fixed at
// load time; health fields are mutated only by the owning Pool under its
// lock. Duplicate endpoints are allowed and each keeps its own health.
type Entry struct {
	Host       string
	Port       int
	Protocol   string // "http", "https" or "socks5"
	Username   string
	Password   string
	Country    string // ISO code, upper case
	Datacenter string

	failures    int
	blacklisted bool
	lastUsed    time.Time
	lastChecked time.Time
}

// Endpoint returns the host:port identity. Blacklist decisions survive a
// reload keyed by this value.
func (e *Entry) Endpoint() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL renders the entry as a proxy URL, credentials included.
func (e *Entry) URL() *url.URL {
	scheme := e.Protocol
	if scheme == "" {
		scheme = "http"
	}
	u := &url.URL{Scheme: scheme, Host: e.Endpoint()}
	if e.Username != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	}
	return u
}

// EntryStatus is a read-only health snapshot of one entry.
type EntryStatus struct {
	Endpoint    string    `json:"endpoint"`
	Protocol    string    `json:"protocol"`
	Country     string    `json:"country,omitempty"`
	Datacenter  string    `json:"datacenter,omitempty"`
	Failures    int       `json:"failures"`
	Blacklisted bool      `json:"blacklisted"`
	LastUsed    time.Time `json:"last_used"`
	LastChecked time.Time `json:"last_checked"`
}

func (e *Entry) status() EntryStatus {
	return EntryStatus{
		Endpoint:    e.Endpoint(),
		Protocol:    e.Protocol,
		Country:     e.Country,
		Datacenter:  e.Datacenter,
		Failures:    e.failures,
		Blacklisted: e.blacklisted,
		LastUsed:    e.lastUsed,
		LastChecked: e.lastChecked,
	}
}
