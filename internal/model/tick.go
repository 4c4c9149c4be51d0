package model

import (
	"encoding/json"
	"time"
)

// Tick is one quote update for the subscribed futures contract, as delivered
// by the upstream feed. Ticks are ephemeral: received, serialized, enqueued
// to the downstream log, and discarded.
type Tick struct {
	Code            string    // Contract code (e.g., "TXFR1")
	DateTime        time.Time // Broker-assigned timestamp, exchange zone
	Open            float64
	UnderlyingPrice float64
	BidSideTotalVol int64
	AskSideTotalVol int64
	AvgPrice        float64
	Close           float64
	High            float64
	Low             float64
	Amount          float64
	TotalAmount     float64
	TickType        int // 1 = buy side, 2 = sell side
	ChgType         int
	PriceChg        float64
	PctChg          float64
	Simtrade        bool
	Volume          int64
	TotalVolume     int64
}

// wireTimeLayout is ISO-8601 with offset, microsecond precision.
const wireTimeLayout = "2006-01-02T15:04:05.000000-07:00"

// wireTick is the produced message shape: one flat JSON object per tick.
type wireTick struct {
	Code            string  `json:"code"`
	DateTime        string  `json:"datetime"`
	Open            float64 `json:"open"`
	UnderlyingPrice float64 `json:"underlying_price"`
	BidSideTotalVol int64   `json:"bid_side_total_vol"`
	AskSideTotalVol int64   `json:"ask_side_total_vol"`
	AvgPrice        float64 `json:"avg_price"`
	Close           float64 `json:"close"`
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	Amount          float64 `json:"amount"`
	TotalAmount     float64 `json:"total_amount"`
	TickType        int     `json:"tick_type"`
	ChgType         int     `json:"chg_type"`
	PriceChg        float64 `json:"price_chg"`
	PctChg          float64 `json:"pct_chg"`
	Simtrade        bool    `json:"simtrade"`
	Volume          int64   `json:"volume"`
	TotalVolume     int64   `json:"total_volume"`
}

// MarshalWire serializes the tick to its UTF-8 JSON wire form. The message
// carries no key and no headers; the value is self-describing.
func (t Tick) MarshalWire() ([]byte, error) {
	return json.Marshal(wireTick{
		Code:            t.Code,
		DateTime:        t.DateTime.Format(wireTimeLayout),
		Open:            t.Open,
		UnderlyingPrice: t.UnderlyingPrice,
		BidSideTotalVol: t.BidSideTotalVol,
		AskSideTotalVol: t.AskSideTotalVol,
		AvgPrice:        t.AvgPrice,
		Close:           t.Close,
		High:            t.High,
		Low:             t.Low,
		Amount:          t.Amount,
		TotalAmount:     t.TotalAmount,
		TickType:        t.TickType,
		ChgType:         t.ChgType,
		PriceChg:        t.PriceChg,
		PctChg:          t.PctChg,
		Simtrade:        t.Simtrade,
		Volume:          t.Volume,
		TotalVolume:     t.TotalVolume,
	})
}
