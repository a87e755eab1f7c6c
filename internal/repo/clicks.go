package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rs/zerolog/log"

	"github.com/ferhatb/linkstats/internal"
)

// Click is one recorded resolution of a short link. Immutable once written.
type Click struct {
	ID          int64   `json:"id"`
	LinkID      int64   `json:"link_id"`
	IP          string  `json:"ip"`
	Country     *string `json:"country"`
	Referer     *string `json:"referer"`
	RefererHost *string `json:"referer_host"`
	UserAgent   *string `json:"user_agent"`
	CreatedAt   Date    `json:"created_at"`
}

// Bucket is one row of a grouped click count: a calendar day, a country
// code, or a referer host, depending on the query.
type Bucket struct {
	Label  string `json:"label" db:"label"`
	Clicks int64  `json:"clicks" db:"clicks"`
}

// ClickScope restricts a bucket query to one link or to every link carrying
// a tag. Exactly one of the two fields is set.
type ClickScope struct {
	LinkID int64
	Tag    string
}

func LinkScope(linkID int64) ClickScope {
	return ClickScope{LinkID: linkID}
}

func TagScope(tag string) ClickScope {
	return ClickScope{Tag: tag}
}

type clickRow struct {
	ID          int64   `db:"id" goqu:"skipinsert"`
	LinkID      int64   `db:"link_id"`
	IP          string  `db:"ip"`
	Country     *string `db:"country"`
	Referer     *string `db:"referer"`
	RefererHost *string `db:"referer_host"`
	UserAgent   *string `db:"user_agent"`
	CreatedAt   Date    `db:"created_at"`
}

type ClicksRepo struct {
	db *sql.DB
}

func NewClicksRepo(db *sql.DB) *ClicksRepo {
	return &ClicksRepo{db: db}
}

// Create persists the click and returns it with id and timestamp filled in.
func (r *ClicksRepo) Create(ctx context.Context, click *Click) (*Click, error) {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Int64("link_id", click.LinkID).Str("ip", click.IP).Msg("recording click")

	createdAt := click.CreatedAt
	if createdAt.Time().IsZero() {
		createdAt = NewDate(time.Now())
	}

	query := executor.Insert("clicks").
		Cols("link_id", "ip", "country", "referer", "referer_host", "user_agent", "created_at").
		Vals([]any{click.LinkID, click.IP, click.Country, click.Referer, click.RefererHost, click.UserAgent, createdAt}).
		Returning("id", "link_id", "ip", "country", "referer", "referer_host", "user_agent", "created_at")

	var row clickRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Int64("link_id", click.LinkID).Msg("failed to record click")
		return nil, internal.StoreError(err, "failed to record click")
	}
	if !found {
		return nil, internal.StoreError(nil, "click insert returned no rows")
	}

	log.Debug().Int64("id", row.ID).Int64("link_id", row.LinkID).Msg("click recorded")

	return row.toDomain(), nil
}

// CountsByDay groups matching clicks per calendar day (UTC), ordered by day
// ascending. Bounds are from-inclusive, to-exclusive; nil means unbounded.
func (r *ClicksRepo) CountsByDay(ctx context.Context, scope ClickScope, from, to *time.Time) ([]Bucket, error) {
	return r.buckets(ctx, scope, from, to,
		goqu.L("strftime('%Y-%m-%d', created_at)"), nil,
		goqu.C("label").Asc())
}

// CountsByCountry groups matching clicks per ISO country code, most clicked
// first. Clicks whose geolocation failed (null country) are left out.
func (r *ClicksRepo) CountsByCountry(ctx context.Context, scope ClickScope, from, to *time.Time) ([]Bucket, error) {
	return r.buckets(ctx, scope, from, to,
		goqu.C("country"), goqu.C("country").IsNotNull(),
		goqu.C("clicks").Desc(), goqu.C("label").Asc())
}

// CountsByReferer groups matching clicks per canonical referer host, most
// clicked first. Direct visits (null referer_host) are left out.
func (r *ClicksRepo) CountsByReferer(ctx context.Context, scope ClickScope, from, to *time.Time) ([]Bucket, error) {
	return r.buckets(ctx, scope, from, to,
		goqu.C("referer_host"), goqu.C("referer_host").IsNotNull(),
		goqu.C("clicks").Desc(), goqu.C("label").Asc())
}

func (r *ClicksRepo) buckets(ctx context.Context, scope ClickScope, from, to *time.Time, label exp.Aliaseable, notNull exp.Expression, order ...exp.OrderedExpression) ([]Bucket, error) {
	executor := goqu.New("sqlite", r.db)

	query := executor.From("clicks").
		Select(label.As("label"), goqu.COUNT("*").As("clicks")).
		GroupBy(goqu.C("label")).
		Order(order...)

	switch {
	case scope.LinkID != 0:
		query = query.Where(goqu.C("link_id").Eq(scope.LinkID))
	case scope.Tag != "":
		query = query.Where(goqu.C("link_id").In(
			executor.From("tags").Select("link_id").Where(goqu.C("tag").Eq(scope.Tag)),
		))
	}

	if notNull != nil {
		query = query.Where(notNull)
	}
	if from != nil {
		query = query.Where(goqu.C("created_at").Gte(NewDate(*from)))
	}
	if to != nil {
		query = query.Where(goqu.C("created_at").Lt(NewDate(*to)))
	}

	var rows []Bucket
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		log.Error().Err(err).Int64("link_id", scope.LinkID).Str("tag", scope.Tag).Msg("failed to query click buckets")
		return nil, internal.StoreError(err, "failed to query click buckets")
	}

	if rows == nil {
		rows = []Bucket{}
	}

	return rows, nil
}

func (r *clickRow) toDomain() *Click {
	return &Click{
		ID:          r.ID,
		LinkID:      r.LinkID,
		IP:          r.IP,
		Country:     r.Country,
		Referer:     r.Referer,
		RefererHost: r.RefererHost,
		UserAgent:   r.UserAgent,
		CreatedAt:   r.CreatedAt,
	}
}
