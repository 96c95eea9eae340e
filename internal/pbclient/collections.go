package pbclient

import (
	"context"
	"net/http"
	"net/url"
)

// Collection is the subset of the data service's collection metadata the
// proxy needs: the stable internal id, distinct from the renameable name.
// Public file URLs are built from the id so they survive collection renames.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Collection looks up a collection descriptor by name or id. Requires
// administrator authentication on the client.
func (c *Client) Collection(ctx context.Context, nameOrID string) (Collection, error) {
	var collection Collection
	err := c.send(ctx, http.MethodGet, "/api/collections/"+url.PathEscape(nameOrID), nil, nil, &collection)
	if err != nil {
		return Collection{}, err
	}
	return collection, nil
}
