package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"osrsprices/internal/aggregate"
	"osrsprices/internal/indicators"
	"osrsprices/internal/provider"
)

var errNoMatch = errors.New("no matching item")

type report struct {
	Item       provider.Item       `json:"item"`
	Latest     aggregate.Row       `json:"latest"`
	Timestep   provider.Timestep   `json:"timestep"`
	Points     int                 `json:"points"`
	First      *time.Time          `json:"first,omitempty"`
	Last       *time.Time          `json:"last,omitempty"`
	Signals    []indicators.Signal `json:"signals"`
	Timeseries []provider.Point    `json:"-"`
}

// resolveItem finds query in the mapping, either as a numeric id or as the
// best name match.
func resolveItem(items []provider.Item, query string) (provider.Item, error) {
	if id, err := strconv.Atoi(strings.TrimSpace(query)); err == nil {
		for _, it := range items {
			if it.ID == id {
				return it, nil
			}
		}
		return provider.Item{}, fmt.Errorf("%w: id %d", errNoMatch, id)
	}
	matches := aggregate.Search(items, query, 1)
	if len(matches) == 0 {
		return provider.Item{}, fmt.Errorf("%w: %q", errNoMatch, query)
	}
	return matches[0].Item, nil
}

func buildReport(ctx context.Context, src provider.Source, query string, timestep provider.Timestep) (report, error) {
	items := src.GetMapping(ctx)
	if len(items) == 0 {
		return report{}, errors.New("item mapping unavailable")
	}
	item, err := resolveItem(items, query)
	if err != nil {
		return report{}, err
	}

	points, err := src.GetTimeseries(ctx, item.ID, timestep)
	if err != nil {
		return report{}, fmt.Errorf("timeseries: %w", err)
	}
	snapshot := src.GetLatest(ctx, item.ID)

	r := report{
		Item:       item,
		Latest:     aggregate.JoinLatest(items, snapshot, []int{item.ID})[0],
		Timestep:   timestep,
		Points:     len(points),
		Signals:    indicators.Signals(indicators.Compute(points, indicators.DefaultParams)),
		Timeseries: points,
	}
	if n := len(points); n > 0 {
		r.First, r.Last = &points[0].Timestamp, &points[n-1].Timestamp
	}
	return r, nil
}

func writeJSONReport(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

// writeCSV writes the timeseries as timestamp,avgHighPrice,avgLowPrice with
// RFC 3339 timestamps and empty cells for missing prices.
func writeCSV(w io.Writer, points []provider.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "avgHighPrice", "avgLowPrice"}); err != nil {
		return err
	}
	for _, p := range points {
		if err := cw.Write([]string{p.Timestamp.Format(time.RFC3339), formatPrice(p.AvgHighPrice), formatPrice(p.AvgLowPrice)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
