package repo

import (
	"context"
	"database/sql"
	"math/rand"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/ferhatb/linkstats/internal"
)

type Link struct {
	ID        int64  `json:"id"`
	ShortURL  string `json:"short_url"`
	LongURL   string `json:"long_url"`
	Creator   string `json:"creator"`
	CreatedAt Date   `json:"created_at"`
}

// LinkSummary is one row of an aggregate: a link with its click count and
// the tags attached to it.
type LinkSummary struct {
	ID       int64    `json:"id"`
	ShortURL string   `json:"short_url"`
	LongURL  string   `json:"long_url"`
	Clicks   int64    `json:"clicks"`
	Tags     []string `json:"tags"`
}

type linkRow struct {
	ID        int64  `db:"id" goqu:"skipinsert,skipupdate"`
	ShortURL  string `db:"short_url"`
	LongURL   string `db:"long_url"`
	Creator   string `db:"creator"`
	CreatedAt Date   `db:"created_at" goqu:"skipupdate"`
}

type linkCountRow struct {
	ID       int64  `db:"id"`
	ShortURL string `db:"short_url"`
	LongURL  string `db:"long_url"`
	Clicks   int64  `db:"clicks"`
}

type linkTagRow struct {
	LinkID int64  `db:"link_id"`
	Tag    string `db:"tag"`
}

type LinksRepo struct {
	db *sql.DB
}

func NewLinksRepo(db *sql.DB) *LinksRepo {
	return &LinksRepo{db: db}
}

func (r *LinksRepo) Create(ctx context.Context, shortURL, longURL, creator string, tags []string) (*Link, error) {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Str("short_url", shortURL).Str("long_url", longURL).Msg("creating link")

	now := NewDate(time.Now())
	query := executor.Insert("links").
		Cols("short_url", "long_url", "creator", "created_at").
		Vals([]any{shortURL, longURL, creator, now}).
		Returning("id", "short_url", "long_url", "creator", "created_at")

	var row linkRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Str("short_url", shortURL).Msg("failed to create link")
		return nil, internal.StoreError(err, "failed to create link")
	}
	if !found {
		return nil, internal.StoreError(nil, "link creation returned no rows")
	}

	for _, tag := range lo.Uniq(tags) {
		insert := executor.Insert("tags").Cols("link_id", "tag").Vals([]any{row.ID, tag})
		if _, err := insert.Executor().ExecContext(ctx); err != nil {
			log.Error().Err(err).Int64("link_id", row.ID).Str("tag", tag).Msg("failed to attach tag")
			return nil, internal.StoreError(err, "failed to attach tag")
		}
	}

	link := row.toDomain()
	log.Info().Int64("id", link.ID).Str("short_url", link.ShortURL).Msg("link created")

	return link, nil
}

func (r *LinksRepo) GetByShortURL(ctx context.Context, shortURL string) (*Link, error) {
	executor := goqu.New("sqlite", r.db)

	log.Debug().Str("short_url", shortURL).Msg("fetching link by short url")

	query := executor.From("links").Where(goqu.Ex{"short_url": shortURL}).Select(
		"id", "short_url", "long_url", "creator", "created_at",
	)

	var row linkRow
	found, err := query.Executor().ScanStructContext(ctx, &row)
	if err != nil {
		log.Error().Err(err).Str("short_url", shortURL).Msg("failed to fetch link")
		return nil, internal.StoreError(err, "failed to fetch link")
	}
	if !found {
		return nil, internal.NotFoundf("link not found")
	}

	return row.toDomain(), nil
}

// SearchByLongURL returns links whose destination matches any of the
// keywords (substring match).
func (r *LinksRepo) SearchByLongURL(ctx context.Context, keywords []string) ([]Link, error) {
	keywords = lo.Filter(keywords, func(kw string, _ int) bool { return kw != "" })
	if len(keywords) == 0 {
		return []Link{}, nil
	}

	executor := goqu.New("sqlite", r.db)

	conditions := lo.Map(keywords, func(kw string, _ int) goqu.Expression {
		return goqu.C("long_url").Like("%" + kw + "%")
	})

	query := executor.From("links").
		Where(goqu.Or(conditions...)).
		Select("id", "short_url", "long_url", "creator", "created_at").
		Order(goqu.C("short_url").Asc())

	var rows []linkRow
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		log.Error().Err(err).Strs("keywords", keywords).Msg("failed to search links")
		return nil, internal.StoreError(err, "failed to search links")
	}

	return lo.Map(rows, func(row linkRow, _ int) Link { return *row.toDomain() }), nil
}

// ByTags returns the distinct links carrying any of the given tags.
func (r *LinksRepo) ByTags(ctx context.Context, tags []string) ([]Link, error) {
	tags = lo.Filter(tags, func(tag string, _ int) bool { return tag != "" })
	if len(tags) == 0 {
		return []Link{}, nil
	}

	executor := goqu.New("sqlite", r.db)

	query := executor.From("links").
		Where(goqu.C("id").In(
			executor.From("tags").Select("link_id").Where(goqu.C("tag").In(tags)),
		)).
		Select("id", "short_url", "long_url", "creator", "created_at").
		Order(goqu.C("short_url").Asc())

	var rows []linkRow
	if err := query.Executor().ScanStructsContext(ctx, &rows); err != nil {
		log.Error().Err(err).Strs("tags", tags).Msg("failed to fetch links by tags")
		return nil, internal.StoreError(err, "failed to fetch links by tags")
	}

	return lo.Map(rows, func(row linkRow, _ int) Link { return *row.toDomain() }), nil
}

// Aggregate joins the given link ids against clicks and tags. Every id in
// the set yields a row, zero-click links included. Rows are ordered by
// clicks descending, short_url ascending on ties. excludeTag, when
// non-empty, is dropped from each link's tag list.
func (r *LinksRepo) Aggregate(ctx context.Context, linkIDs []int64, excludeTag string) ([]LinkSummary, error) {
	if len(linkIDs) == 0 {
		return []LinkSummary{}, nil
	}

	executor := goqu.New("sqlite", r.db)

	query := executor.From("links").
		LeftJoin(goqu.T("clicks"), goqu.On(goqu.I("clicks.link_id").Eq(goqu.I("links.id")))).
		Where(goqu.I("links.id").In(linkIDs)).
		GroupBy(goqu.I("links.id"), goqu.I("links.short_url"), goqu.I("links.long_url")).
		Select(
			goqu.I("links.id").As("id"),
			goqu.I("links.short_url").As("short_url"),
			goqu.I("links.long_url").As("long_url"),
			goqu.COUNT(goqu.I("clicks.id")).As("clicks"),
		).
		Order(goqu.C("clicks").Desc(), goqu.C("short_url").Asc())

	var counts []linkCountRow
	if err := query.Executor().ScanStructsContext(ctx, &counts); err != nil {
		log.Error().Err(err).Ints64("link_ids", linkIDs).Msg("failed to aggregate links")
		return nil, internal.StoreError(err, "failed to aggregate links")
	}

	tagQuery := executor.From("tags").
		Select("link_id", "tag").
		Where(goqu.C("link_id").In(linkIDs))
	if excludeTag != "" {
		tagQuery = tagQuery.Where(goqu.C("tag").Neq(excludeTag))
	}

	var tagRows []linkTagRow
	if err := tagQuery.Executor().ScanStructsContext(ctx, &tagRows); err != nil {
		log.Error().Err(err).Ints64("link_ids", linkIDs).Msg("failed to fetch tags for aggregate")
		return nil, internal.StoreError(err, "failed to fetch tags")
	}

	tagsByLink := make(map[int64][]string, len(counts))
	for _, row := range tagRows {
		tagsByLink[row.LinkID] = append(tagsByLink[row.LinkID], row.Tag)
	}

	summaries := lo.Map(counts, func(row linkCountRow, _ int) LinkSummary {
		tags := lo.Uniq(tagsByLink[row.ID])
		if tags == nil {
			tags = []string{}
		}
		return LinkSummary{
			ID:       row.ID,
			ShortURL: row.ShortURL,
			LongURL:  row.LongURL,
			Clicks:   row.Clicks,
			Tags:     tags,
		}
	})

	log.Debug().Int("links", len(summaries)).Str("exclude_tag", excludeTag).Msg("aggregated links")

	return summaries, nil
}

func (r *linkRow) toDomain() *Link {
	return &Link{
		ID:        r.ID,
		ShortURL:  r.ShortURL,
		LongURL:   r.LongURL,
		Creator:   r.Creator,
		CreatedAt: r.CreatedAt,
	}
}

func GenerateShortURL() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ending := make([]byte, 6)
	for i := range ending {
		ending[i] = charset[rand.Intn(len(charset))]
	}
	return string(ending)
}
