// Package geo resolves client IPs to ISO country codes.
package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Resolver maps an IP address to an ISO 3166-1 country code. An error (or
// an empty code) means the lookup failed; callers treat that as "country
// unknown", never as a reason to fail.
type Resolver interface {
	Country(ip string) (string, error)
}

// ResolverFunc adapts a plain function to a Resolver.
type ResolverFunc func(ip string) (string, error)

func (f ResolverFunc) Country(ip string) (string, error) {
	return f(ip)
}

// MaxMind reads country codes from a GeoLite2/GeoIP2 mmdb file.
type MaxMind struct {
	reader *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}

	log.Info().Str("path", path).Msg("geoip database loaded")

	return &MaxMind{reader: reader}, nil
}

func (m *MaxMind) Country(ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid ip %q", ip)
	}

	record, err := m.reader.Country(parsed)
	if err != nil {
		return "", err
	}
	if record.Country.IsoCode == "" {
		return "", fmt.Errorf("no country for ip %q", ip)
	}

	return record.Country.IsoCode, nil
}

func (m *MaxMind) Close() error {
	return m.reader.Close()
}
