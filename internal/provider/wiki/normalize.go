package wiki

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"osrsprices/internal/provider"
)

// normalizeMapping keeps the records that carry both an integer id and a
// string name, and from those only id, name, examine, members and
// highalch. Anything else in the payload is dropped silently.
func normalizeMapping(body any) []provider.Item {
	rows, ok := body.([]any)
	if !ok {
		return []provider.Item{}
	}

	items := make([]provider.Item, 0, len(rows))
	for _, raw := range rows {
		// {
		//   "examine": "Fabulously ancient mage protection enchanted in the 3rd Age.",
		//   "id": 10344,
		//   "members": true,
		//   "lowalch": 20200,
		//   "limit": 8,
		//   "value": 50500,
		//   "highalch": 30300,
		//   "icon": "3rd age amulet.png",
		//   "name": "3rd age amulet"
		// }
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := nullableInt(row, "id")
		name := nullableValue[string](row, "name")
		if id == nil || name == nil || *id < math.MinInt32 || *id > math.MaxInt32 {
			continue
		}
		items = append(items, provider.Item{
			ID:       int(*id),
			Name:     *name,
			Examine:  nullableValue[string](row, "examine"),
			Members:  nullableValue[bool](row, "members"),
			HighAlch: nullableInt(row, "highalch"),
		})
	}
	return items
}

// normalizeLatest reads {"data": {"<id>": {"high":..,"low":..,"highTime":..,"lowTime":..}}}.
func normalizeLatest(body any) provider.Snapshot {
	out := provider.Snapshot{}
	top, ok := body.(map[string]any)
	if !ok {
		return out
	}
	data, ok := top["data"].(map[string]any)
	if !ok {
		return out
	}
	for id, raw := range data {
		// {
		//   "high": 2870000,
		//   "highTime": 1704067185,
		//   "low": 2852000,
		//   "lowTime": 1704067190
		// }
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out[id] = provider.Price{
			High:     nullableInt(row, "high"),
			Low:      nullableInt(row, "low"),
			HighTime: nullableInt(row, "highTime"),
			LowTime:  nullableInt(row, "lowTime"),
		}
	}
	return out
}

// filterSnapshot keeps the entries whose key is one of ids. A nil ids
// means no filtering.
func filterSnapshot(s provider.Snapshot, ids []int) provider.Snapshot {
	if ids == nil {
		return s
	}
	out := make(provider.Snapshot, len(ids))
	for _, id := range ids {
		key := strconv.Itoa(id)
		if p, ok := s[key]; ok {
			out[key] = p
		}
	}
	return out
}

// normalizeTimeseries reads {"data": [{"timestamp":..,"avgHighPrice":..,"avgLowPrice":..}]}.
// Records without a usable timestamp are dropped; prices pass through,
// nulls included. The result is in chronological order.
func normalizeTimeseries(body any) []provider.Point {
	out := []provider.Point{}
	top, ok := body.(map[string]any)
	if !ok {
		return out
	}
	rows, ok := top["data"].([]any)
	if !ok {
		return out
	}
	for _, raw := range rows {
		// {
		//   "timestamp": 1704063600,
		//   "avgHighPrice": 2871234,
		//   "avgLowPrice": 2850011,
		//   "highPriceVolume": 41,
		//   "lowPriceVolume": 97
		// }
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ts := nullableInt(row, "timestamp")
		if ts == nil {
			continue
		}
		out = append(out, provider.Point{
			Timestamp:    time.Unix(*ts, 0).UTC(),
			AvgHighPrice: nullableFloat(row, "avgHighPrice"),
			AvgLowPrice:  nullableFloat(row, "avgLowPrice"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// nullableValue returns the value at key when it is present, non-null and
// of type T.
func nullableValue[T any](data map[string]any, key string) *T {
	v, ok := data[key]
	if !ok || v == nil {
		return nil
	}
	if v, ok := v.(T); ok {
		return &v
	}
	return nil
}

// nullableInt reads an integral JSON number. Fractional values are
// truncated, matching how epoch seconds are usually handled.
func nullableInt(data map[string]any, key string) *int64 {
	n := nullableValue[json.Number](data, key)
	if n == nil {
		return nil
	}
	if i, err := n.Int64(); err == nil {
		return &i
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	i := int64(f)
	return &i
}

func nullableFloat(data map[string]any, key string) *float64 {
	n := nullableValue[json.Number](data, key)
	if n == nil {
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	return &f
}
