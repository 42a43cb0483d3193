package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Item is one row of the item mapping table.
// ID and Name are always set; the remaining fields are nil when the
// upstream record did not carry them.
type Item struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Examine  *string `json:"examine,omitempty"`
	Members  *bool   `json:"members,omitempty"`
	HighAlch *int64  `json:"highalch,omitempty"`
}

// Price is the latest observed instant-buy (high) and instant-sell (low)
// price of an item. Any field may be null upstream.
type Price struct {
	High     *int64 `json:"high"`
	Low      *int64 `json:"low"`
	HighTime *int64 `json:"highTime"`
	LowTime  *int64 `json:"lowTime"`
}

// Snapshot maps an item id, in its decimal string form, to its latest price.
type Snapshot map[string]Price

// Point is a single timeseries sample.
type Point struct {
	Timestamp    time.Time `json:"timestamp"`
	AvgHighPrice *float64  `json:"avgHighPrice"`
	AvgLowPrice  *float64  `json:"avgLowPrice"`
}

// Timestep selects the granularity of a timeseries.
type Timestep string

const (
	Timestep5m  Timestep = "5m"
	Timestep1h  Timestep = "1h"
	Timestep6h  Timestep = "6h"
	Timestep24h Timestep = "24h"
)

// ErrInvalidTimestep is returned when a caller asks for a timestep the
// API does not serve.
var ErrInvalidTimestep = errors.New("invalid timestep")

// Timesteps lists the accepted timesteps in ascending granularity.
func Timesteps() []Timestep {
	return []Timestep{Timestep5m, Timestep1h, Timestep6h, Timestep24h}
}

func (t Timestep) Valid() bool {
	switch t {
	case Timestep5m, Timestep1h, Timestep6h, Timestep24h:
		return true
	}
	return false
}

func (t Timestep) String() string { return string(t) }

// ParseTimestep validates s as a Timestep.
func ParseTimestep(s string) (Timestep, error) {
	t := Timestep(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w %q: must be one of %v", ErrInvalidTimestep, s, Timesteps())
	}
	return t, nil
}

// Source is everything a consumer may ask of the price API.
// Only GetTimeseries can fail, and only for an invalid timestep; upstream
// problems show up as empty results.
type Source interface {
	GetMapping(ctx context.Context) []Item
	GetLatest(ctx context.Context, ids ...int) Snapshot
	GetTimeseries(ctx context.Context, itemID int, timestep Timestep) ([]Point, error)
}
