package models

// Schema versions gate full rebuilds: a state document carrying an older
// version forces the corresponding ingestor to start from scratch.
const (
	AEDStateVersion     = 3
	CountryStateVersion = 2
)

// IngestState tracks the progress of one ingest pipeline. It is persisted
// as an opaque JSON document under a short key ("aed", "country").
type IngestState struct {
	UpdateTimestamp float64 `json:"update_timestamp"` // seconds since epoch, upstream data time
	Version         int     `json:"version"`
}
