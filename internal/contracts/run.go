package contracts

import "time"

// SymbolStatus is the per-symbol outcome of an ingestion run
type SymbolStatus string

const (
	StatusOK         SymbolStatus = "ok"          // bars fetched and persisted
	StatusNoData     SymbolStatus = "no_data"     // provider returned nothing; valid terminal outcome
	StatusExcludedCA SymbolStatus = "excluded_ca" // corporate-action contamination; policy rejection, not an error
	StatusBlocked    SymbolStatus = "blocked"     // dataset lock refused the run
	StatusError      SymbolStatus = "error"       // fetch or persistence failure
)

// SymbolResult reports one symbol's outcome in an ingestion run
type SymbolResult struct {
	Symbol   string       `json:"symbol"`
	Status   SymbolStatus `json:"status"`
	BarCount int          `json:"bar_count,omitempty"`
	CARatio  float64      `json:"ca_ratio,omitempty"` // max divergence when status is excluded_ca
	Message  string       `json:"message,omitempty"`
}

// RunReport is the outcome of one ingestion run across all symbols
type RunReport struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	From       time.Time      `json:"from"`
	To         time.Time      `json:"to"`
	Results    []SymbolResult `json:"results"`
}

// Count returns the number of results with the given status
func (r *RunReport) Count(status SymbolStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Failed reports whether the run hit a fatal persistence error
func (r *RunReport) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusError {
			return true
		}
	}
	return false
}
