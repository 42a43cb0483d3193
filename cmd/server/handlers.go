package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"osrsprices/internal/aggregate"
	"osrsprices/internal/indicators"
	"osrsprices/internal/provider"
)

// maxIDs bounds the ids query param.
const maxIDs = 1000

type api struct {
	src     provider.Source
	log     logrus.FieldLogger
	timeout time.Duration
}

type mappingResponse struct {
	Items []provider.Item `json:"items"`
}

type searchResponse struct {
	Query   string            `json:"query"`
	Matches []aggregate.Match `json:"matches"`
}

type latestResponse struct {
	Data provider.Snapshot `json:"data"`
}

type itemsResponse struct {
	Rows []aggregate.Row `json:"rows"`
}

type timeseriesResponse struct {
	ID       int               `json:"id"`
	Timestep provider.Timestep `json:"timestep"`
	Data     []provider.Point  `json:"data"`
}

type signalsResponse struct {
	ID       int                 `json:"id"`
	Timestep provider.Timestep   `json:"timestep"`
	Latest   *indicators.Row     `json:"latest"`
	Signals  []indicators.Signal `json:"signals"`
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/mapping", a.getOnly(a.handleMapping))
	mux.HandleFunc("/api/latest", a.getOnly(a.handleLatest))
	mux.HandleFunc("/api/items", a.getOnly(a.handleItems))
	mux.HandleFunc("/api/timeseries", a.getOnly(a.handleTimeseries))
	mux.HandleFunc("/api/signals", a.getOnly(a.handleSignals))
	return mux
}

func (a *api) getOnly(h func(ctx context.Context, w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
		defer cancel()
		h(ctx, w, r)
	}
}

// handleMapping serves the full mapping, or the ranked matches for q.
func (a *api) handleMapping(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	items := a.src.GetMapping(ctx)
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, mappingResponse{Items: items})
		return
	}
	limit, err := intParam(r, "limit", aggregate.DefaultSearchLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, searchResponse{Query: q, Matches: aggregate.Search(items, q, limit)})
}

func (a *api) handleLatest(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ids, err := idsParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, latestResponse{Data: a.src.GetLatest(ctx, ids...)})
}

// handleItems joins mapping names with latest prices, for explicit ids or
// for the items matching q.
func (a *api) handleItems(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	ids, err := idsParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	items := a.src.GetMapping(ctx)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		limit, err := intParam(r, "limit", aggregate.DefaultSearchLimit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ids = append(ids, aggregate.IDs(aggregate.Search(items, q, limit))...)
	}
	ids = aggregate.UniqueIDs(ids)
	if len(ids) == 0 {
		http.Error(w, "missing ids or q query param", http.StatusBadRequest)
		return
	}
	snapshot := a.src.GetLatest(ctx, ids...)
	writeJSON(w, itemsResponse{Rows: aggregate.JoinLatest(items, snapshot, ids)})
}

func (a *api) handleTimeseries(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, step, ok := a.seriesParams(w, r)
	if !ok {
		return
	}
	points, err := a.src.GetTimeseries(ctx, id, step)
	if err != nil {
		a.writeSourceError(w, err)
		return
	}
	writeJSON(w, timeseriesResponse{ID: id, Timestep: step, Data: points})
}

func (a *api) handleSignals(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	id, step, ok := a.seriesParams(w, r)
	if !ok {
		return
	}
	points, err := a.src.GetTimeseries(ctx, id, step)
	if err != nil {
		a.writeSourceError(w, err)
		return
	}
	series := indicators.Compute(points, indicators.DefaultParams)
	resp := signalsResponse{ID: id, Timestep: step, Signals: indicators.Signals(series)}
	if n := len(series.Rows); n > 0 {
		resp.Latest = &series.Rows[n-1]
	}
	writeJSON(w, resp)
}

// seriesParams reads id and timestep, answering 400 itself when either is
// unusable. The timestep defaults to 1h.
func (a *api) seriesParams(w http.ResponseWriter, r *http.Request) (int, provider.Timestep, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("id"))
	if raw == "" {
		http.Error(w, "missing id query param", http.StatusBadRequest)
		return 0, "", false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid id %q", raw), http.StatusBadRequest)
		return 0, "", false
	}
	step := provider.Timestep1h
	if v := r.URL.Query().Get("timestep"); v != "" {
		step, err = provider.ParseTimestep(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return 0, "", false
		}
	}
	return id, step, true
}

func (a *api) writeSourceError(w http.ResponseWriter, err error) {
	if errors.Is(err, provider.ErrInvalidTimestep) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.log.WithError(err).Error("source failure")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// idsParam parses ids=1,2,3. An absent param yields nil, meaning all items.
func idsParam(r *http.Request) ([]int, error) {
	q := r.URL.Query().Get("ids")
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	parts := splitCSV(q)
	if len(parts) > maxIDs {
		return nil, fmt.Errorf("too many ids (max %d)", maxIDs)
	}
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func intParam(r *http.Request, key string, def int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def, nil
	}
	x, err := strconv.Atoi(v)
	if err != nil || x <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return x, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
