// Package indicators derives moving averages, RSI and trade signals from a
// price timeseries.
package indicators

import (
	"fmt"
	"time"

	"osrsprices/internal/provider"
)

// Params selects the indicator windows.
type Params struct {
	Fast      int
	Slow      int
	RSIPeriod int
}

// DefaultParams are SMA(7), SMA(30) and RSI(14).
var DefaultParams = Params{Fast: 7, Slow: 30, RSIPeriod: 14}

// Row is one sample with its indicators.
type Row struct {
	Timestamp time.Time `json:"timestamp"`
	Mid       float64   `json:"mid"`
	SMAFast   float64   `json:"smaFast"`
	SMASlow   float64   `json:"smaSlow"`
	RSI       float64   `json:"rsi"`
}

// Series is the indicator table for a timeseries, oldest first.
type Series struct {
	Params Params `json:"params"`
	Rows   []Row  `json:"rows"`
}

// MidPrices averages the high and low of each point, falling back to
// whichever side is present. Points with neither are skipped.
func MidPrices(points []provider.Point) ([]time.Time, []float64) {
	ts := make([]time.Time, 0, len(points))
	mids := make([]float64, 0, len(points))
	for _, p := range points {
		var mid float64
		switch {
		case p.AvgHighPrice != nil && p.AvgLowPrice != nil:
			mid = (*p.AvgHighPrice + *p.AvgLowPrice) / 2
		case p.AvgHighPrice != nil:
			mid = *p.AvgHighPrice
		case p.AvgLowPrice != nil:
			mid = *p.AvgLowPrice
		default:
			continue
		}
		ts = append(ts, p.Timestamp)
		mids = append(mids, mid)
	}
	return ts, mids
}

// SMA is the trailing simple moving average over window values. The first
// window-1 entries average whatever is available so far.
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window < 1 {
		window = 1
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := window
		if i+1 < window {
			n = i + 1
		}
		out[i] = sum / float64(n)
	}
	return out
}

// RSI is the relative strength index using simple means of the last period
// gains and losses. Entries before the first full window take the first
// computed value; with too few values for any window every entry is 50.
// A window without losses scores 100, or 50 when it has no gains either;
// such windows are scored in place rather than filled from a neighbouring
// window, so a quiet stretch mid-series reads as 100 or 50 and not as the
// last defined value.
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period < 1 {
		period = 1
	}
	if len(values) <= period {
		for i := range out {
			out[i] = 50
		}
		return out
	}

	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	var sumGain, sumLoss float64
	for i := 1; i < len(values); i++ {
		sumGain += gains[i]
		sumLoss += losses[i]
		if i > period {
			sumGain -= gains[i-period]
			sumLoss -= losses[i-period]
		}
		if i < period {
			continue
		}
		out[i] = rsi(sumGain/float64(period), sumLoss/float64(period))
	}
	for i := 0; i < period; i++ {
		out[i] = out[period]
	}
	return out
}

func rsi(avgGain, avgLoss float64) float64 {
	const eps = 1e-12
	if avgLoss <= eps {
		if avgGain <= eps {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// Compute builds the indicator table for points.
func Compute(points []provider.Point, params Params) Series {
	ts, mids := MidPrices(points)
	fast := SMA(mids, params.Fast)
	slow := SMA(mids, params.Slow)
	strength := RSI(mids, params.RSIPeriod)

	rows := make([]Row, len(mids))
	for i := range mids {
		rows[i] = Row{
			Timestamp: ts[i],
			Mid:       mids[i],
			SMAFast:   fast[i],
			SMASlow:   slow[i],
			RSI:       strength[i],
		}
	}
	return Series{Params: params, Rows: rows}
}

// Action is a trade recommendation.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
	Hold Action = "HOLD"
)

// RSI zone bounds.
const (
	Oversold   = 30.0
	Overbought = 70.0
)

// Signal is one indicator's verdict on the latest sample.
type Signal struct {
	Indicator string `json:"indicator"`
	Status    string `json:"status"`
	Action    Action `json:"action"`
}

// Signals reads the last two rows of s: a fast/slow SMA crossover and the
// RSI zone of the latest row. Fewer than two rows give no signals.
func Signals(s Series) []Signal {
	if len(s.Rows) < 2 {
		return []Signal{}
	}
	prev, curr := s.Rows[len(s.Rows)-2], s.Rows[len(s.Rows)-1]
	sma := fmt.Sprintf("SMA%d", s.Params.Fast)
	smaSlow := fmt.Sprintf("SMA%d", s.Params.Slow)

	cross := Signal{Indicator: "SMA crossover", Status: "No crossover", Action: Hold}
	switch {
	case prev.SMAFast <= prev.SMASlow && curr.SMAFast > curr.SMASlow:
		cross.Status = fmt.Sprintf("Bullish (%s crossed above %s)", sma, smaSlow)
		cross.Action = Buy
	case prev.SMAFast >= prev.SMASlow && curr.SMAFast < curr.SMASlow:
		cross.Status = fmt.Sprintf("Bearish (%s crossed below %s)", sma, smaSlow)
		cross.Action = Sell
	}

	zone := Signal{Indicator: fmt.Sprintf("RSI(%d)", s.Params.RSIPeriod)}
	switch r := curr.RSI; {
	case r < Oversold:
		zone.Status = fmt.Sprintf("Oversold (%.1f)", r)
		zone.Action = Buy
	case r > Overbought:
		zone.Status = fmt.Sprintf("Overbought (%.1f)", r)
		zone.Action = Sell
	default:
		zone.Status = fmt.Sprintf("Neutral (%.1f)", r)
		zone.Action = Hold
	}

	return []Signal{cross, zone}
}
