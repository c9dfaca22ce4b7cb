package entity

import "time"

// KindStats bitta entity turi bo'yicha hisob
type KindStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// ImportStats persist natijasi
type ImportStats struct {
	Kinds       map[Kind]*KindStats `json:"kinds"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  time.Time           `json:"finished_at"`
	Elapsed     time.Duration       `json:"elapsed"`
	RowsPerSec  float64             `json:"rows_per_sec"`
	Errors      []ErrorEntry        `json:"errors,omitempty"`
	ErrorsTotal int                 `json:"errors_total"`
}

// NewImportStats yangi statistika
func NewImportStats() *ImportStats {
	s := &ImportStats{
		Kinds:     make(map[Kind]*KindStats, len(PersistOrder)),
		StartedAt: time.Now(),
	}
	for _, kind := range PersistOrder {
		s.Kinds[kind] = &KindStats{}
	}
	return s
}

// For returns the counters of one kind.
func (s *ImportStats) For(kind Kind) *KindStats {
	ks, ok := s.Kinds[kind]
	if !ok {
		ks = &KindStats{}
		s.Kinds[kind] = ks
	}
	return ks
}

// Processed counts every row that reached the database.
func (s *ImportStats) Processed() int {
	n := 0
	for _, ks := range s.Kinds {
		n += ks.Created + ks.Updated
	}
	return n
}

// Finish stamps end time and derives throughput.
func (s *ImportStats) Finish(errs *ErrorLog) {
	s.FinishedAt = time.Now()
	s.Elapsed = s.FinishedAt.Sub(s.StartedAt)
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.RowsPerSec = float64(s.Processed()) / secs
	}
	if errs != nil {
		s.Errors, s.ErrorsTotal = errs.Snapshot()
	}
}

// Created returns created counts per kind, omitting zero entries.
func (s *ImportStats) Created() map[Kind]int {
	out := make(map[Kind]int)
	for kind, ks := range s.Kinds {
		if ks.Created > 0 {
			out[kind] = ks.Created
		}
	}
	return out
}
