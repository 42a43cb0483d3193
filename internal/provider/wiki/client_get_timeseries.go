package wiki

import (
	"context"
	"net/url"
	"strconv"

	"osrsprices/internal/provider"
)

// GetTimeseries returns the price history of itemID at the given
// granularity, oldest first.
//
// An invalid timestep is rejected before any request is made with an
// error wrapping provider.ErrInvalidTimestep. Any upstream problem yields
// an empty slice and a nil error.
func (c *Client) GetTimeseries(ctx context.Context, itemID int, timestep provider.Timestep) ([]provider.Point, error) {
	step, err := provider.ParseTimestep(string(timestep))
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("timestep", step.String())
	query.Set("id", strconv.Itoa(itemID))

	res := c.FetchJSON(ctx, c.endpoint("timeseries", query))
	return normalizeTimeseries(res.Body), nil
}
