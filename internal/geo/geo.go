// Package geo resolves IPs to country codes from a local MaxMind database,
// used to tag proxy entries that arrive without an origin country.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Resolver implements proxypool.CountryResolver over a GeoIP2/GeoLite2
// country database.
type Resolver struct {
	db *geoip2.Reader
}

// Open loads the database. An empty path means the feature is off: the
// caller gets (nil, nil) and entries stay untagged.
func Open(path string) (*Resolver, error) {
	if path == "" {
		return nil, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open %s: %w", path, err)
	}
	return &Resolver{db: db}, nil
}

// Country returns the ISO 3166-1 alpha-2 code, or "" when the database has
// no record for the IP.
func (r *Resolver) Country(ip net.IP) (string, error) {
	rec, err := r.db.Country(ip)
	if err != nil {
		return "", fmt.Errorf("geo: lookup %s: %w", ip, err)
	}
	return rec.Country.IsoCode, nil
}

func (r *Resolver) Close() error {
	return r.db.Close()
}
