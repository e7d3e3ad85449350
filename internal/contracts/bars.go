package contracts

import "time"

// RawBar is a provider bar exactly as fetched: wall-clock timestamp,
// OHLCV and the adjusted close when the feed supplies one.
type RawBar struct {
	Symbol      string
	Timestamp   time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	AdjClose    float64
	HasAdjClose bool
	Volume      int64
}

// MinuteBar is a raw bar reprojected onto the session grid.
// (Symbol, SessionDate, MinuteIndex) is the storage primary key; a minute
// bar is written once and never updated afterwards.
type MinuteBar struct {
	Symbol      string    `json:"symbol"`
	Timestamp   time.Time `json:"timestamp"`
	SessionDate time.Time `json:"session_date"`
	MinuteIndex int       `json:"minute_index"` // 1..N within the session
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	AdjClose    float64   `json:"adjusted_close"`
	Volume      int64     `json:"volume"`
}

// DailyOfficial is the authoritative open/close pair for a symbol/session.
// Unlike minute bars it is mutable: re-ingestion refreshes values and
// provenance and bumps UpdatedAt.
type DailyOfficial struct {
	Symbol        string    `json:"symbol"`
	SessionDate   time.Time `json:"session_date"`
	OfficialOpen  float64   `json:"official_open"`
	OfficialClose float64   `json:"official_close"`
	SourceOpen    string    `json:"source_open"`
	SourceClose   string    `json:"source_close"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Provenance tags persisted with daily official records
const (
	SourceFirstMinuteBar = "YAHOO_1M_FIRST_BAR"
	SourceLastMinuteBar  = "YAHOO_1M_LAST_BAR"
	SourceDailyBar       = "YAHOO_1D"
)
