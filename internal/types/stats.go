package types

// SyncStats are the record and byte counters of a sync.
type SyncStats struct {
	RecordsEmitted   int64 `json:"records_emitted"`
	BytesEmitted     int64 `json:"bytes_emitted"`
	RecordsCommitted int64 `json:"records_committed"`
	BytesCommitted   int64 `json:"bytes_committed"`
	RecordsRejected  int64 `json:"records_rejected"`
	EstimatedRecords int64 `json:"estimated_records"`
	EstimatedBytes   int64 `json:"estimated_bytes"`
}

// StreamSyncStats are the counters of one stream within an attempt.
type StreamSyncStats struct {
	StreamName      string    `json:"stream_name"`
	StreamNamespace *string   `json:"stream_namespace,omitempty"`
	Stats           SyncStats `json:"stats"`
}

// Descriptor returns the stream identity of the stats entry.
func (s StreamSyncStats) Descriptor() StreamDescriptor {
	return StreamDescriptor{Name: s.StreamName, Namespace: s.StreamNamespace}
}

// AttemptStats is the API view of an attempt's combined stats.
type AttemptStats struct {
	RecordsEmitted   int64 `json:"records_emitted"`
	BytesEmitted     int64 `json:"bytes_emitted"`
	RecordsCommitted int64 `json:"records_committed"`
	BytesCommitted   int64 `json:"bytes_committed"`
	EstimatedRecords int64 `json:"estimated_records"`
	EstimatedBytes   int64 `json:"estimated_bytes"`
}

// AttemptStatsFrom maps stored sync stats into the API view.
func AttemptStatsFrom(s SyncStats) AttemptStats {
	return AttemptStats{
		RecordsEmitted:   s.RecordsEmitted,
		BytesEmitted:     s.BytesEmitted,
		RecordsCommitted: s.RecordsCommitted,
		BytesCommitted:   s.BytesCommitted,
		EstimatedRecords: s.EstimatedRecords,
		EstimatedBytes:   s.EstimatedBytes,
	}
}
