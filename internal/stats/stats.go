// Package stats turns click records into bucketed aggregates.
package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ferhatb/linkstats/internal"
	"github.com/ferhatb/linkstats/internal/repo"
)

// Bucketing selects how clicks are grouped. The set is closed; anything
// else is rejected at parse time.
type Bucketing int

const (
	BucketDay Bucketing = iota
	BucketCountry
	BucketReferer
)

func (b Bucketing) String() string {
	switch b {
	case BucketDay:
		return "day"
	case BucketCountry:
		return "country"
	case BucketReferer:
		return "referer"
	}
	return "unknown"
}

// ParseBucketing maps the wire value of stats_type to a Bucketing.
func ParseBucketing(s string) (Bucketing, error) {
	switch s {
	case "day":
		return BucketDay, nil
	case "country":
		return BucketCountry, nil
	case "referer":
		return BucketReferer, nil
	}
	return 0, internal.Validationf("invalid analytics type requested")
}

const dayLayout = "2006-01-02"

// DateRange bounds a stats query to [From, To] whole days, UTC. Either side
// may be open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// ParseDateRange validates left/right bounds given as YYYY-MM-DD. Empty
// strings leave the corresponding side open.
func ParseDateRange(left, right string) (DateRange, error) {
	var r DateRange

	if left != "" {
		t, err := time.ParseInLocation(dayLayout, left, time.UTC)
		if err != nil {
			return DateRange{}, internal.Validationf("invalid left_bound date")
		}
		r.From = &t
	}

	if right != "" {
		t, err := time.ParseInLocation(dayLayout, right, time.UTC)
		if err != nil {
			return DateRange{}, internal.Validationf("invalid right_bound date")
		}
		r.To = &t
	}

	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return DateRange{}, internal.Validationf("right_bound precedes left_bound")
	}

	return r, nil
}

// bounds converts the inclusive day range into the repo's from-inclusive,
// to-exclusive timestamp pair.
func (r DateRange) bounds() (*time.Time, *time.Time) {
	var to *time.Time
	if r.To != nil {
		end := r.To.AddDate(0, 0, 1)
		to = &end
	}
	return r.From, to
}

// Engine answers bucketed stats queries for a link or a tag. Inputs are
// assumed validated; authorization happens before the engine is reached.
type Engine struct {
	clicks *repo.ClicksRepo
}

func NewEngine(clicks *repo.ClicksRepo) *Engine {
	return &Engine{clicks: clicks}
}

// ForLink buckets the clicks of a single link.
func (e *Engine) ForLink(ctx context.Context, linkID int64, by Bucketing, dates DateRange) ([]repo.Bucket, error) {
	return e.query(ctx, repo.LinkScope(linkID), by, dates)
}

// ForTag buckets the clicks of every link carrying the tag.
func (e *Engine) ForTag(ctx context.Context, tag string, by Bucketing, dates DateRange) ([]repo.Bucket, error) {
	return e.query(ctx, repo.TagScope(tag), by, dates)
}

func (e *Engine) query(ctx context.Context, scope repo.ClickScope, by Bucketing, dates DateRange) ([]repo.Bucket, error) {
	from, to := dates.bounds()

	var (
		buckets []repo.Bucket
		err     error
	)
	switch by {
	case BucketDay:
		buckets, err = e.clicks.CountsByDay(ctx, scope, from, to)
	case BucketCountry:
		buckets, err = e.clicks.CountsByCountry(ctx, scope, from, to)
	case BucketReferer:
		buckets, err = e.clicks.CountsByReferer(ctx, scope, from, to)
	default:
		return nil, internal.Validationf("invalid analytics type requested")
	}
	if err != nil {
		return nil, internal.AnalyticsError(err, "failed to compute %s stats", by)
	}

	log.Debug().
		Int64("link_id", scope.LinkID).
		Str("tag", scope.Tag).
		Stringer("bucketing", by).
		Int("buckets", len(buckets)).
		Msg("stats computed")

	return buckets, nil
}
