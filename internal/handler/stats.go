package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/ferhatb/linkstats/internal"
	"github.com/ferhatb/linkstats/internal/access"
	"github.com/ferhatb/linkstats/internal/auth"
	"github.com/ferhatb/linkstats/internal/repo"
	"github.com/ferhatb/linkstats/internal/stats"
)

// StatsHandler serves the analytics API: bucketed stats per link, per tag,
// per search result set, and the tag link listing. Every query passes the
// same gate; existence is reported before authorization.
type StatsHandler struct {
	links  *repo.LinksRepo
	tags   *repo.TagsRepo
	engine *stats.Engine
	gate   *access.Gate
}

func NewStatsHandler(links *repo.LinksRepo, tags *repo.TagsRepo, engine *stats.Engine, gate *access.Gate) *StatsHandler {
	return &StatsHandler{links: links, tags: tags, engine: engine, gate: gate}
}

type LinkStatsRequest struct {
	URLEnding  string `query:"url_ending" validate:"required"`
	StatsType  string `query:"stats_type" validate:"required"`
	LeftBound  string `query:"left_bound" validate:"omitempty,datetime=2006-01-02"`
	RightBound string `query:"right_bound" validate:"omitempty,datetime=2006-01-02"`
}

type LinkStatsResponse struct {
	URLEnding string        `json:"url_ending"`
	StatsType string        `json:"stats_type"`
	Data      []repo.Bucket `json:"data"`
}

// LinkStats handles GET /api/v1/link/stats
func (h *StatsHandler) LinkStats(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var req LinkStatsRequest
	if err := c.Bind(&req); err != nil {
		return internal.Validationf("invalid or missing parameters")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bucketing, err := stats.ParseBucketing(req.StatsType)
	if err != nil {
		return err
	}
	dates, err := stats.ParseDateRange(req.LeftBound, req.RightBound)
	if err != nil {
		return err
	}

	link, err := h.links.GetByShortURL(ctx, req.URLEnding)
	if err != nil {
		return err
	}
	if err := h.gate.CanViewLink(user, link); err != nil {
		return err
	}

	buckets, err := h.engine.ForLink(ctx, link.ID, bucketing, dates)
	if err != nil {
		return err
	}

	log.Debug().Str("short_url", link.ShortURL).Str("stats_type", req.StatsType).Msg("link stats served")

	return c.JSON(http.StatusOK, LinkStatsResponse{
		URLEnding: link.ShortURL,
		StatsType: req.StatsType,
		Data:      buckets,
	})
}

type TagStatsRequest struct {
	Tag        string `query:"tag" validate:"required"`
	StatsType  string `query:"stats_type" validate:"required"`
	LeftBound  string `query:"left_bound" validate:"omitempty,datetime=2006-01-02"`
	RightBound string `query:"right_bound" validate:"omitempty,datetime=2006-01-02"`
}

type TagStatsResponse struct {
	Tag       string        `json:"tag"`
	StatsType string        `json:"stats_type"`
	Data      []repo.Bucket `json:"data"`
}

// TagStats handles GET /api/v1/tag/stats
func (h *StatsHandler) TagStats(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var req TagStatsRequest
	if err := c.Bind(&req); err != nil {
		return internal.Validationf("invalid or missing parameters")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bucketing, err := stats.ParseBucketing(req.StatsType)
	if err != nil {
		return err
	}
	dates, err := stats.ParseDateRange(req.LeftBound, req.RightBound)
	if err != nil {
		return err
	}

	exists, err := h.tags.Exists(ctx, req.Tag)
	if err != nil {
		return err
	}
	if !exists {
		return internal.NotFoundf("tag not found")
	}
	if err := h.gate.CanViewTag(ctx, user, req.Tag); err != nil {
		return err
	}

	buckets, err := h.engine.ForTag(ctx, req.Tag, bucketing, dates)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TagStatsResponse{
		Tag:       req.Tag,
		StatsType: req.StatsType,
		Data:      buckets,
	})
}

type LinksStatsRequest struct {
	Search     string `query:"search" validate:"required_without=Tags"`
	Tags       string `query:"tags" validate:"required_without=Search"`
	StatsType  string `query:"stats_type" validate:"required"`
	LeftBound  string `query:"left_bound" validate:"omitempty,datetime=2006-01-02"`
	RightBound string `query:"right_bound" validate:"omitempty,datetime=2006-01-02"`
}

type LinkSeriesResponse struct {
	URLEnding string        `json:"url_ending"`
	LongURL   string        `json:"long_url"`
	Data      []repo.Bucket `json:"data"`
}

type LinksStatsResponse struct {
	StatsType string               `json:"stats_type"`
	Data      []LinkSeriesResponse `json:"data"`
}

// LinksStats handles GET /api/v1/links/stats - stats over a set of links
// found by keyword search or by tag list, narrowed to the links the
// requester may view individually.
func (h *StatsHandler) LinksStats(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var req LinksStatsRequest
	if err := c.Bind(&req); err != nil {
		return internal.Validationf("invalid or missing parameters")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bucketing, err := stats.ParseBucketing(req.StatsType)
	if err != nil {
		return err
	}
	dates, err := stats.ParseDateRange(req.LeftBound, req.RightBound)
	if err != nil {
		return err
	}

	var links []repo.Link
	if req.Search != "" {
		links, err = h.links.SearchByLongURL(ctx, splitParam(req.Search))
	} else {
		links, err = h.links.ByTags(ctx, splitParam(req.Tags))
	}
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return internal.NotFoundf("nothing found")
	}

	owned := h.gate.FilterOwned(user, links)

	series := make([]LinkSeriesResponse, 0, len(owned))
	for _, link := range owned {
		buckets, err := h.engine.ForLink(ctx, link.ID, bucketing, dates)
		if err != nil {
			return err
		}
		series = append(series, LinkSeriesResponse{
			URLEnding: link.ShortURL,
			LongURL:   link.LongURL,
			Data:      buckets,
		})
	}

	log.Debug().Int("links", len(links)).Int("visible", len(owned)).Msg("multi-link stats served")

	return c.JSON(http.StatusOK, LinksStatsResponse{
		StatsType: req.StatsType,
		Data:      series,
	})
}

type TagLinksRequest struct {
	Tag string `query:"tag" validate:"required"`
}

type TagLinksResponse struct {
	Tag  string             `json:"tag"`
	Data []repo.LinkSummary `json:"data"`
}

// TagLinks handles GET /api/v1/tag/links - every link carrying the tag with
// its click count and remaining tags, most clicked first.
func (h *StatsHandler) TagLinks(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.UserFrom(c)
	if !ok {
		return echo.ErrUnauthorized
	}

	var req TagLinksRequest
	if err := c.Bind(&req); err != nil {
		return internal.Validationf("invalid or missing parameters")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	exists, err := h.tags.Exists(ctx, req.Tag)
	if err != nil {
		return err
	}
	if !exists {
		return internal.NotFoundf("tag not found")
	}
	if err := h.gate.CanViewTag(ctx, user, req.Tag); err != nil {
		return err
	}

	ids, err := h.tags.LinkIDs(ctx, req.Tag)
	if err != nil {
		return err
	}

	summaries, err := h.links.Aggregate(ctx, ids, req.Tag)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, TagLinksResponse{Tag: req.Tag, Data: summaries})
}

func splitParam(s string) []string {
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (string, bool) {
		part = strings.TrimSpace(part)
		return part, part != ""
	})
}
