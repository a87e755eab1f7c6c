package tracker

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/ferhatb/linkstats/internal/geo"
	"github.com/ferhatb/linkstats/internal/repo"
)

// ClickContext is the request-derived input to a click record.
type ClickContext struct {
	IP        string
	Referer   string
	UserAgent string
}

// Recorder turns a link resolution event into a persisted click.
type Recorder struct {
	clicks   *repo.ClicksRepo
	resolver geo.Resolver
}

// NewRecorder builds a recorder. resolver may be nil; clicks then record
// with an unknown country.
func NewRecorder(clicks *repo.ClicksRepo, resolver geo.Resolver) *Recorder {
	return &Recorder{clicks: clicks, resolver: resolver}
}

// Record persists one click for the link. Geolocation failure degrades to a
// null country and never fails the call; only a storage failure does.
func (r *Recorder) Record(ctx context.Context, link *repo.Link, cc ClickContext) (*repo.Click, error) {
	click := &repo.Click{
		LinkID:      link.ID,
		IP:          cc.IP,
		Country:     r.lookupCountry(cc.IP),
		Referer:     emptyToNil(cc.Referer),
		RefererHost: NormalizeHost(emptyToNil(cc.Referer)),
		UserAgent:   emptyToNil(cc.UserAgent),
	}

	return r.clicks.Create(ctx, click)
}

func (r *Recorder) lookupCountry(ip string) *string {
	if r.resolver == nil {
		return nil
	}

	country, err := r.resolver.Country(ip)
	if err != nil || country == "" {
		log.Debug().Err(err).Str("ip", ip).Msg("geolocation failed")
		return nil
	}

	return &country
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
