package wiki

import (
	"context"

	"osrsprices/internal/provider"
)

// GetLatest returns the latest price snapshot, fetched fresh every call.
//
// Without ids the whole snapshot is returned. With ids, even an empty
// list, only those items are kept; ids the API did not report are simply
// missing from the result.
func (c *Client) GetLatest(ctx context.Context, ids ...int) provider.Snapshot {
	res := c.FetchJSON(ctx, c.endpoint("latest", nil))
	return filterSnapshot(normalizeLatest(res.Body), ids)
}
