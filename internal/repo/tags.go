package repo

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/ferhatb/linkstats/internal"
)

// TagsRepo answers tag membership questions. Tag matching is exact string
// equality, never prefix or fuzzy.
type TagsRepo struct {
	db *sql.DB
}

func NewTagsRepo(db *sql.DB) *TagsRepo {
	return &TagsRepo{db: db}
}

// Exists reports whether at least one link carries the tag.
func (r *TagsRepo) Exists(ctx context.Context, tag string) (bool, error) {
	executor := goqu.New("sqlite", r.db)

	count, err := executor.From("tags").Where(goqu.Ex{"tag": tag}).CountContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("tag", tag).Msg("failed to check tag existence")
		return false, internal.StoreError(err, "failed to check tag existence")
	}

	return count > 0, nil
}

// UserOwnsTag reports whether the user created at least one link carrying
// the tag. Admin shortcuts live in the access gate, not here.
func (r *TagsRepo) UserOwnsTag(ctx context.Context, username, tag string) (bool, error) {
	executor := goqu.New("sqlite", r.db)

	count, err := executor.From("links").
		Where(
			goqu.C("creator").Eq(username),
			goqu.C("id").In(
				executor.From("tags").Select("link_id").Where(goqu.C("tag").Eq(tag)),
			),
		).
		CountContext(ctx)
	if err != nil {
		log.Error().Err(err).Str("username", username).Str("tag", tag).Msg("failed to check tag ownership")
		return false, internal.StoreError(err, "failed to check tag ownership")
	}

	return count > 0, nil
}

// LinkIDs returns the distinct link ids carrying the tag; empty when none.
func (r *TagsRepo) LinkIDs(ctx context.Context, tag string) ([]int64, error) {
	executor := goqu.New("sqlite", r.db)

	query := executor.From("tags").
		SelectDistinct("link_id").
		Where(goqu.Ex{"tag": tag}).
		Order(goqu.C("link_id").Asc())

	var ids []int64
	if err := query.Executor().ScanValsContext(ctx, &ids); err != nil {
		log.Error().Err(err).Str("tag", tag).Msg("failed to fetch link ids for tag")
		return nil, internal.StoreError(err, "failed to fetch link ids for tag")
	}

	if ids == nil {
		ids = []int64{}
	}

	return ids, nil
}
