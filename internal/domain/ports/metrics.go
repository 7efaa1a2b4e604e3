package ports

import "time"

// File outcomes reported by ingestion.
const (
	FileProcessed = "processed"
	FileSkipped   = "skipped"
	FileEmpty     = "empty"
	FileFailed    = "failed"
)

// Metrics receives operational counters from the domain services.
type Metrics interface {
	FileScanned(outcome string)
	EntriesStored(n int)
	Mutation(op string, ok bool)
	IngestDuration(d time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) FileScanned(string) {}
func (NopMetrics) EntriesStored(int) {}
func (NopMetrics) Mutation(string, bool) {}
func (NopMetrics) IngestDuration(time.Duration) {}
