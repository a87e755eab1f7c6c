package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferhatb/linkstats/internal"
	"github.com/ferhatb/linkstats/internal/db/dbtest"
	"github.com/ferhatb/linkstats/internal/repo"
)

var (
	admin    = internal.User{Username: "root", Admin: true}
	alice    = internal.User{Username: "alice"}
	stranger = internal.User{Username: "mallory"}
)

func setupGate(t *testing.T) (*Gate, *repo.LinksRepo) {
	t.Helper()
	dbInstance := dbtest.Open(t)
	return NewGate(repo.NewTagsRepo(dbInstance)), repo.NewLinksRepo(dbInstance)
}

func TestGate_CanViewLink(t *testing.T) {
	gate, _ := setupGate(t)
	link := &repo.Link{ID: 1, Creator: "alice"}

	assert.NoError(t, gate.CanViewLink(alice, link))
	assert.NoError(t, gate.CanViewLink(admin, link))

	err := gate.CanViewLink(stranger, link)
	require.Error(t, err)
	assert.True(t, internal.IsKind(err, internal.KindAccessDenied))
}

func TestGate_CanViewTag(t *testing.T) {
	gate, links := setupGate(t)
	ctx := context.Background()

	_, err := links.Create(ctx, "abc", "https://example.org", "alice", []string{"news"})
	require.NoError(t, err)

	assert.NoError(t, gate.CanViewTag(ctx, alice, "news"))

	err = gate.CanViewTag(ctx, stranger, "news")
	require.Error(t, err)
	assert.True(t, internal.IsKind(err, internal.KindAccessDenied))
}

func TestGate_CanViewTag_AdminNeedsNoOwnership(t *testing.T) {
	gate, _ := setupGate(t)

	// Granted even for tags nothing carries.
	assert.NoError(t, gate.CanViewTag(context.Background(), admin, "anything"))
}

func TestGate_FilterOwned(t *testing.T) {
	gate, _ := setupGate(t)
	links := []repo.Link{
		{ID: 1, ShortURL: "a", Creator: "alice"},
		{ID: 2, ShortURL: "b", Creator: "bob"},
		{ID: 3, ShortURL: "c", Creator: "alice"},
	}

	owned := gate.FilterOwned(alice, links)
	require.Len(t, owned, 2)
	assert.Equal(t, "a", owned[0].ShortURL)
	assert.Equal(t, "c", owned[1].ShortURL)

	assert.Len(t, gate.FilterOwned(admin, links), 3)
	assert.Empty(t, gate.FilterOwned(stranger, links))
}
