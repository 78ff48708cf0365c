package proxypool

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YourlocalJay/reddit-persona-validator/internal/shared/types"
)

// Source yields proxy entries for the pool. Load is called once at startup
// and again on every reload.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]*Entry, error)
}

// CountryResolver tags entries that carry no country code of their own.
// Implemented by the geo package; nil disables tagging.
type CountryResolver interface {
	Country(ip net.IP) (string, error)
}

// FileSource reads proxy descriptors from a file. A ".json" path is parsed
// as an array of descriptor objects; anything else is line format with one
// descriptor per line ("host:port", "host:port:user:pass" or
// "user:pass@host:port", optional scheme prefix, "#" comments).
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Load(_ context.Context) ([]*Entry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	var entries []*Entry
	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		entries, err = parseJSON(data)
	} else {
		entries, err = parseLines(data)
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s yields no entries", ErrInvalidSource, s.Path)
	}
	return entries, nil
}

type jsonProxy struct {
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Protocol   string `json:"protocol"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Country    string `json:"countryCode"`
	Datacenter string `json:"dc"`
}

func parseJSON(data []byte) ([]*Entry, error) {
	var raw []jsonProxy
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	entries := make([]*Entry, 0, len(raw))
	for i, p := range raw {
		proto, err := normalizeProtocol(p.Protocol)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidSource, i, err)
		}
		if p.IP == "" || p.Port < 1 || p.Port > 65535 {
			return nil, fmt.Errorf("%w: entry %d: bad endpoint %q:%d", ErrInvalidSource, i, p.IP, p.Port)
		}
		entries = append(entries, &Entry{
			Host:       p.IP,
			Port:       p.Port,
			Protocol:   proto,
			Username:   p.Username,
			Password:   p.Password,
			Country:    strings.ToUpper(p.Country),
			Datacenter: p.Datacenter,
		})
	}
	return entries, nil
}

func parseLines(data []byte) ([]*Entry, error) {
	var entries []*Entry
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSource, i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func parseLine(line string) (*Entry, error) {
	proto := ""
	if i := strings.Index(line, "://"); i >= 0 {
		proto = line[:i]
		line = line[i+3:]
	}
	proto, err := normalizeProtocol(proto)
	if err != nil {
		return nil, err
	}

	e := &Entry{Protocol: proto}
	if at := strings.LastIndex(line, "@"); at >= 0 {
		user, pass, _ := strings.Cut(line[:at], ":")
		e.Username, e.Password = user, pass
		line = line[at+1:]
	}

	parts := strings.Split(line, ":")
	switch len(parts) {
	case 2:
		e.Host = parts[0]
	case 4:
		if e.Username != "" {
			return nil, fmt.Errorf("credentials given twice in %q", line)
		}
		e.Host, e.Username, e.Password = parts[0], parts[2], parts[3]
	default:
		return nil, fmt.Errorf("unrecognized descriptor %q", line)
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("bad port in %q", line)
	}
	e.Port = port
	if e.Host == "" {
		return nil, fmt.Errorf("empty host in %q", line)
	}
	return e, nil
}

func normalizeProtocol(p string) (string, error) {
	switch strings.ToLower(p) {
	case "", "http":
		return "http", nil
	case "https":
		return "https", nil
	case "socks5", "socks5h", "socks":
		return "socks5", nil
	default:
		return "", fmt.Errorf("unsupported protocol %q", p)
	}
}

// Filter excludes entries from the pool at load time. Entries that do not
// match are dropped entirely, not merely deprioritized.
type Filter struct {
	Countries  []string // upper-cased ISO codes; empty means any
	IPFamily   int      // 0 any, 4 or 6; non-IP hosts only match 0
	Datacenter string
}

// FilterFromConf parses the comma-separated country list from config.
func FilterFromConf(conf types.ProxyConf) Filter {
	f := Filter{IPFamily: conf.IPFamily, Datacenter: conf.Datacenter}
	for _, c := range strings.Split(conf.Countries, ",") {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			f.Countries = append(f.Countries, c)
		}
	}
	return f
}

func (f Filter) match(e *Entry) bool {
	if len(f.Countries) > 0 {
		found := false
		for _, c := range f.Countries {
			if e.Country == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.IPFamily != 0 {
		ip := net.ParseIP(e.Host)
		if ip == nil {
			return false
		}
		if v4 := ip.To4() != nil; (f.IPFamily == 4) != v4 {
			return false
		}
	}
	if f.Datacenter != "" && e.Datacenter != f.Datacenter {
		return false
	}
	return true
}
