package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferhatb/linkstats/internal"
	"github.com/ferhatb/linkstats/internal/access"
	"github.com/ferhatb/linkstats/internal/auth"
	"github.com/ferhatb/linkstats/internal/db/dbtest"
	"github.com/ferhatb/linkstats/internal/repo"
	"github.com/ferhatb/linkstats/internal/stats"
)

type statsFixture struct {
	handler *StatsHandler
	links   *repo.LinksRepo
	clicks  *repo.ClicksRepo
	echo    *echo.Echo
}

func setupStats(t *testing.T) *statsFixture {
	t.Helper()

	dbInstance := dbtest.Open(t)
	linksRepo := repo.NewLinksRepo(dbInstance)
	tagsRepo := repo.NewTagsRepo(dbInstance)
	clicksRepo := repo.NewClicksRepo(dbInstance)

	e := echo.New()
	e.Validator = NewValidator()

	return &statsFixture{
		handler: NewStatsHandler(linksRepo, tagsRepo, stats.NewEngine(clicksRepo), access.NewGate(tagsRepo)),
		links:   linksRepo,
		clicks:  clicksRepo,
		echo:    e,
	}
}

func (f *statsFixture) get(t *testing.T, path string, query url.Values, user internal.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path+"?"+query.Encode(), nil)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	auth.SetUser(c, user)

	return c, rec
}

func (f *statsFixture) seed(t *testing.T, shortURL, creator string, clicks int, tags ...string) *repo.Link {
	t.Helper()

	link, err := f.links.Create(context.Background(), shortURL, "https://example.org/"+shortURL, creator, tags)
	require.NoError(t, err)

	for i := 0; i < clicks; i++ {
		_, err := f.clicks.Create(context.Background(), &repo.Click{LinkID: link.ID, IP: "10.0.0.1"})
		require.NoError(t, err)
	}

	return link
}

var (
	owner    = internal.User{Username: "alice"}
	other    = internal.User{Username: "bob"}
	sysadmin = internal.User{Username: "root", Admin: true}
)

func TestLinkStats_MissingParams(t *testing.T) {
	f := setupStats(t)

	c, _ := f.get(t, "/api/v1/link/stats", url.Values{"stats_type": {"day"}}, owner)
	err := f.handler.LinkStats(c)
	assert.True(t, internal.IsKind(err, internal.KindValidation))
}

func TestLinkStats_InvalidStatsType(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "abc", "alice", 0)

	c, _ := f.get(t, "/api/v1/link/stats", url.Values{
		"url_ending": {"abc"},
		"stats_type": {"hour"},
	}, owner)
	err := f.handler.LinkStats(c)
	assert.True(t, internal.IsKind(err, internal.KindValidation))
}

func TestLinkStats_MalformedBound(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "abc", "alice", 0)

	c, _ := f.get(t, "/api/v1/link/stats", url.Values{
		"url_ending": {"abc"},
		"stats_type": {"day"},
		"left_bound": {"05/01/2026"},
	}, owner)
	err := f.handler.LinkStats(c)
	assert.True(t, internal.IsKind(err, internal.KindValidation))
}

func TestLinkStats_NotFoundBeforeAccess(t *testing.T) {
	f := setupStats(t)

	// The link does not exist; even a non-owner sees NOT_FOUND, not
	// ACCESS_DENIED.
	c, _ := f.get(t, "/api/v1/link/stats", url.Values{
		"url_ending": {"ghost"},
		"stats_type": {"day"},
	}, other)
	err := f.handler.LinkStats(c)
	assert.True(t, internal.IsKind(err, internal.KindNotFound))
}

func TestLinkStats_AccessDenied(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "abc", "alice", 3)

	c, _ := f.get(t, "/api/v1/link/stats", url.Values{
		"url_ending": {"abc"},
		"stats_type": {"day"},
	}, other)
	err := f.handler.LinkStats(c)
	assert.True(t, internal.IsKind(err, internal.KindAccessDenied))
}

func TestLinkStats_OwnerGetsData(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "abc", "alice", 3)

	c, rec := f.get(t, "/api/v1/link/stats", url.Values{
		"url_ending": {"abc"},
		"stats_type": {"day"},
	}, owner)
	require.NoError(t, f.handler.LinkStats(c))

	var resp LinkStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc", resp.URLEnding)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(3), resp.Data[0].Clicks)
}

func TestLinkStats_AdminGetsData(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "abc", "alice", 1)

	c, _ := f.get(t, "/api/v1/link/stats", url.Values{
		"url_ending": {"abc"},
		"stats_type": {"country"},
	}, sysadmin)
	assert.NoError(t, f.handler.LinkStats(c))
}

func TestTagStats_NotFound(t *testing.T) {
	f := setupStats(t)

	c, _ := f.get(t, "/api/v1/tag/stats", url.Values{
		"tag":        {"ghost"},
		"stats_type": {"day"},
	}, owner)
	err := f.handler.TagStats(c)
	assert.True(t, internal.IsKind(err, internal.KindNotFound))
}

func TestTagStats_AccessDenied(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "abc", "alice", 1, "news")

	c, _ := f.get(t, "/api/v1/tag/stats", url.Values{
		"tag":        {"news"},
		"stats_type": {"day"},
	}, other)
	err := f.handler.TagStats(c)
	assert.True(t, internal.IsKind(err, internal.KindAccessDenied))
}

func TestTagStats_OwnerGetsData(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "abc", "alice", 2, "news")
	f.seed(t, "def", "alice", 1, "news")

	c, rec := f.get(t, "/api/v1/tag/stats", url.Values{
		"tag":        {"news"},
		"stats_type": {"day"},
	}, owner)
	require.NoError(t, f.handler.TagStats(c))

	var resp TagStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(3), resp.Data[0].Clicks)
}

func TestTagLinks_ExcludesQueryTag(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "busy", "alice", 5, "news", "tech")
	f.seed(t, "quiet", "alice", 0, "news")

	c, rec := f.get(t, "/api/v1/tag/links", url.Values{"tag": {"news"}}, owner)
	require.NoError(t, f.handler.TagLinks(c))

	var resp TagLinksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	assert.Equal(t, "busy", resp.Data[0].ShortURL)
	assert.Equal(t, int64(5), resp.Data[0].Clicks)
	assert.Equal(t, []string{"tech"}, resp.Data[0].Tags, "the query tag never appears")

	assert.Equal(t, "quiet", resp.Data[1].ShortURL)
	assert.Equal(t, int64(0), resp.Data[1].Clicks, "zero-click links still listed")
	assert.Empty(t, resp.Data[1].Tags)
}

func TestLinksStats_RequiresSearchOrTags(t *testing.T) {
	f := setupStats(t)

	c, _ := f.get(t, "/api/v1/links/stats", url.Values{"stats_type": {"day"}}, owner)
	err := f.handler.LinksStats(c)
	assert.True(t, internal.IsKind(err, internal.KindValidation))
}

func TestLinksStats_NothingFound(t *testing.T) {
	f := setupStats(t)

	c, _ := f.get(t, "/api/v1/links/stats", url.Values{
		"search":     {"missing"},
		"stats_type": {"day"},
	}, owner)
	err := f.handler.LinksStats(c)
	assert.True(t, internal.IsKind(err, internal.KindNotFound))
}

func TestLinksStats_FiltersToOwnedLinks(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "mine", "alice", 2, "shared")
	f.seed(t, "theirs", "bob", 4, "shared")

	c, rec := f.get(t, "/api/v1/links/stats", url.Values{
		"tags":       {"shared"},
		"stats_type": {"day"},
	}, owner)
	require.NoError(t, f.handler.LinksStats(c))

	var resp LinksStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1, "unowned links are filtered out, not denied")
	assert.Equal(t, "mine", resp.Data[0].URLEnding)
}

func TestLinksStats_AdminSeesAll(t *testing.T) {
	f := setupStats(t)
	f.seed(t, "mine", "alice", 2, "shared")
	f.seed(t, "theirs", "bob", 4, "shared")

	c, rec := f.get(t, "/api/v1/links/stats", url.Values{
		"tags":       {"shared"},
		"stats_type": {"day"},
	}, sysadmin)
	require.NoError(t, f.handler.LinksStats(c))

	var resp LinksStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}
