package validation

import (
	"fmt"

	"github.com/hyperengineering/syncplane/internal/types"
)

const (
	// MaxScopeLength is the maximum length of a job scope.
	MaxScopeLength = 256
	// MaxStreamNameLength is the maximum length of a stream name or namespace.
	MaxStreamNameLength = 1024
	// MaxStreamEntries is the maximum number of per-stream entries in one request.
	MaxStreamEntries = 10000
)

var configTypes = []string{
	string(types.ConfigTypeSync),
	string(types.ConfigTypeClear),
	string(types.ConfigTypeResetConnection),
	string(types.ConfigTypeRefresh),
	string(types.ConfigTypeCheckConnection),
}

// ValidateCreateJobRequest validates a job creation request.
func ValidateCreateJobRequest(req types.CreateJobRequest) []ValidationError {
	var c Collector

	if err := ValidateRequired("scope", req.Scope); err != nil {
		c.Add(err)
	} else {
		c.Add(ValidateMaxLength("scope", req.Scope, MaxScopeLength))
		c.Add(ValidateNoNullBytes("scope", req.Scope))
		c.Add(ValidateUTF8("scope", req.Scope))
	}

	c.Add(ValidateEnum("config_type", string(req.ConfigType), configTypes))

	if len(req.Config) == 0 || string(req.Config) == "null" {
		c.Add(&ValidationError{Field: "config", Message: "is required"})
	}

	// Every job except a connection check is scoped to a connection id.
	if req.ConfigType != types.ConfigTypeCheckConnection && req.Scope != "" {
		c.Add(ValidateUUID("scope", req.Scope))
	}

	return c.Errors()
}

// ValidateStreamName validates the name and optional namespace of a stream
// entry at index i of the named list.
func ValidateStreamName(list string, i int, name string, namespace *string) []ValidationError {
	var c Collector
	field := fmt.Sprintf("%s[%d].stream_name", list, i)

	if err := ValidateRequired(field, name); err != nil {
		c.Add(err)
	} else {
		c.Add(ValidateMaxLength(field, name, MaxStreamNameLength))
		c.Add(ValidateNoNullBytes(field, name))
		c.Add(ValidateUTF8(field, name))
	}

	if namespace != nil {
		nsField := fmt.Sprintf("%s[%d].stream_namespace", list, i)
		c.Add(ValidateMaxLength(nsField, *namespace, MaxStreamNameLength))
		c.Add(ValidateNoNullBytes(nsField, *namespace))
	}

	return c.Errors()
}

// ValidateSyncStats validates that every counter of s is non-negative.
func ValidateSyncStats(prefix string, s types.SyncStats) []ValidationError {
	var c Collector
	c.Add(ValidateNonNegative(prefix+".records_emitted", s.RecordsEmitted))
	c.Add(ValidateNonNegative(prefix+".bytes_emitted", s.BytesEmitted))
	c.Add(ValidateNonNegative(prefix+".records_committed", s.RecordsCommitted))
	c.Add(ValidateNonNegative(prefix+".bytes_committed", s.BytesCommitted))
	c.Add(ValidateNonNegative(prefix+".records_rejected", s.RecordsRejected))
	c.Add(ValidateNonNegative(prefix+".estimated_records", s.EstimatedRecords))
	c.Add(ValidateNonNegative(prefix+".estimated_bytes", s.EstimatedBytes))
	return c.Errors()
}

// ValidateSaveStatsRequest validates an attempt stats request.
func ValidateSaveStatsRequest(req types.SaveStatsRequest) []ValidationError {
	var errs []ValidationError

	errs = append(errs, ValidateSyncStats("stats", req.Stats)...)

	if len(req.StreamStats) > MaxStreamEntries {
		return append(errs, ValidationError{
			Field:   "stream_stats",
			Message: fmt.Sprintf("exceeds maximum of %d entries", MaxStreamEntries),
		})
	}
	for i, s := range req.StreamStats {
		errs = append(errs, ValidateStreamName("stream_stats", i, s.StreamName, s.StreamNamespace)...)
		errs = append(errs, ValidateSyncStats(fmt.Sprintf("stream_stats[%d].stats", i), s.Stats)...)
	}
	return errs
}

// ValidateSaveStreamMetadataRequest validates a stream metadata request.
func ValidateSaveStreamMetadataRequest(req types.SaveStreamMetadataRequest) []ValidationError {
	if len(req.StreamMetadata) > MaxStreamEntries {
		return []ValidationError{{
			Field:   "stream_metadata",
			Message: fmt.Sprintf("exceeds maximum of %d entries", MaxStreamEntries),
		}}
	}
	var errs []ValidationError
	for i, m := range req.StreamMetadata {
		errs = append(errs, ValidateStreamName("stream_metadata", i, m.StreamName, m.StreamNamespace)...)
	}
	return errs
}
