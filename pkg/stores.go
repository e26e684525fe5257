package keep

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/projects"
	"github.com/unowned-ai/keep/pkg/tags"
)

// Stores bundles the item store with the extensions registered on it. DB is the
// raw connection for administrative callers; extensions never see it.
type Stores struct {
	DB       *sqlx.DB
	Items    *items.Store
	Tags     *tags.Tags
	Projects *projects.Projects
}

// Open installs or verifies every component on conn and registers the tags and
// projects extensions.
func Open(ctx context.Context, conn *sqlx.DB, opts ...items.Option) (*Stores, error) {
	store, err := items.New(ctx, conn, opts...)
	if err != nil {
		return nil, err
	}
	t, err := tags.New(ctx, store)
	if err != nil {
		return nil, err
	}
	p, err := projects.New(ctx, store)
	if err != nil {
		return nil, err
	}
	return &Stores{DB: conn, Items: store, Tags: t, Projects: p}, nil
}
