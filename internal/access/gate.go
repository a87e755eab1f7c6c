// Package access holds the one authorization policy every stats query goes
// through.
package access

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/ferhatb/linkstats/internal"
	"github.com/ferhatb/linkstats/internal/repo"
)

type Gate struct {
	tags *repo.TagsRepo
}

func NewGate(tags *repo.TagsRepo) *Gate {
	return &Gate{tags: tags}
}

// CanViewLink grants when the requester is an administrator or created the
// link.
func (g *Gate) CanViewLink(user internal.User, link *repo.Link) error {
	if user.Admin || link.Creator == user.Username {
		return nil
	}

	log.Debug().Str("username", user.Username).Int64("link_id", link.ID).Msg("link access denied")

	return internal.AccessDeniedf("unauthorized")
}

// CanViewTag grants when the requester is an administrator or owns at least
// one link carrying the tag.
func (g *Gate) CanViewTag(ctx context.Context, user internal.User, tag string) error {
	if user.Admin {
		return nil
	}

	owns, err := g.tags.UserOwnsTag(ctx, user.Username, tag)
	if err != nil {
		return err
	}
	if owns {
		return nil
	}

	log.Debug().Str("username", user.Username).Str("tag", tag).Msg("tag access denied")

	return internal.AccessDeniedf("unauthorized")
}

// FilterOwned narrows a link set to those the requester may view
// individually. It never grants blanket access to the whole set.
func (g *Gate) FilterOwned(user internal.User, links []repo.Link) []repo.Link {
	if user.Admin {
		return links
	}

	return lo.Filter(links, func(link repo.Link, _ int) bool {
		return link.Creator == user.Username
	})
}
