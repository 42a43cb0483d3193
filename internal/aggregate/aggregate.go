package aggregate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"osrsprices/internal/provider"
)

// DefaultSearchLimit caps Search results when no limit is given.
const DefaultSearchLimit = 10

// CloseMatchCutoff is the minimum similarity ratio for a fuzzy hit.
const CloseMatchCutoff = 0.4

// MatchKind orders search hits; lower is better.
type MatchKind int

const (
	MatchExact MatchKind = iota
	MatchPrefix
	MatchSubstring
	MatchClose
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchSubstring:
		return "substring"
	case MatchClose:
		return "close"
	}
	return "unknown"
}

// Match is one Search hit.
type Match struct {
	Item  provider.Item `json:"item"`
	Kind  MatchKind     `json:"-"`
	Score float64       `json:"score"`
}

// Search finds items whose name matches query, ignoring case.
// Hits are ranked exact, then prefix, then substring, then close matches
// with a similarity ratio of at least CloseMatchCutoff. Within a rank the
// higher ratio wins, then the shorter name, then mapping order.
func Search(items []provider.Item, query string, limit int) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Match{}
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// The query is the cached side of the matcher; every name is compared
	// against it.
	matcher := difflib.NewMatcher(nil, runes(q))

	out := make([]Match, 0, limit)
	for _, it := range items {
		name := strings.ToLower(it.Name)
		matcher.SetSeq1(runes(name))
		score := matcher.Ratio()

		var kind MatchKind
		switch {
		case name == q:
			kind = MatchExact
		case strings.HasPrefix(name, q):
			kind = MatchPrefix
		case strings.Contains(name, q):
			kind = MatchSubstring
		case score >= CloseMatchCutoff:
			kind = MatchClose
		default:
			continue
		}
		out = append(out, Match{Item: it, Kind: kind, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return len(out[i].Item.Name) < len(out[j].Item.Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Row is an item joined with its latest price.
type Row struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	High     *int64 `json:"high"`
	Low      *int64 `json:"low"`
	HighTime *int64 `json:"highTime"`
	LowTime  *int64 `json:"lowTime"`
	Margin   *int64 `json:"margin"`
}

// JoinLatest builds one row per id, in the order given. Names come from
// items and are empty for ids the mapping does not know; price fields are
// nil for ids missing from the snapshot.
func JoinLatest(items []provider.Item, snapshot provider.Snapshot, ids []int) []Row {
	names := make(map[int]string, len(items))
	for _, it := range items {
		names[it.ID] = it.Name
	}

	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		p := snapshot[strconv.Itoa(id)]
		rows = append(rows, Row{
			ID:       id,
			Name:     names[id],
			High:     p.High,
			Low:      p.Low,
			HighTime: p.HighTime,
			LowTime:  p.LowTime,
			Margin:   Margin(p),
		})
	}
	return rows
}

// Margin is the spread between instant-buy and instant-sell, nil unless
// both sides are known.
func Margin(p provider.Price) *int64 {
	if p.High == nil || p.Low == nil {
		return nil
	}
	m := *p.High - *p.Low
	return &m
}

// IDs returns the ids of the matched items, in match order.
func IDs(matches []Match) []int {
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Item.ID)
	}
	return out
}

// UniqueIDs drops repeated ids, keeping the first occurrence of each.
func UniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
