package wiki

import (
	"context"

	"osrsprices/internal/provider"
)

// GetMapping returns the item mapping table.
//
// The first call fetches it and every later call returns that same
// result, even when it was empty because the upstream fetch degraded. Use
// ClearMappingCache to try again.
//
// The fetch is detached from ctx: a caller that gives up gets an empty
// mapping, while the fetch carries on for everyone else and is cached.
func (c *Client) GetMapping(ctx context.Context) []provider.Item {
	load := context.WithoutCancel(ctx)
	items, ok := c.mapping.GetContext(ctx, func() []provider.Item {
		res := c.FetchJSON(load, c.endpoint("mapping", nil))
		items := normalizeMapping(res.Body)
		c.log.WithField("items", len(items)).Info("item mapping loaded")
		return items
	})
	if !ok {
		c.log.WithError(ctx.Err()).Debug("gave up waiting for item mapping")
		return []provider.Item{}
	}
	return items
}
