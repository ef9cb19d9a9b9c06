package attempt

import (
	"fmt"

	"github.com/hyperengineering/syncplane/internal/types"
)

// FullRefreshStreams returns every full-refresh stream of catalog.
func FullRefreshStreams(catalog *types.ConfiguredCatalog) types.StreamSet {
	set := types.NewStreamSet()
	if catalog == nil {
		return set
	}
	for _, s := range catalog.Streams {
		if s.IsFullRefresh() {
			set.Add(s.Descriptor())
		}
	}
	return set
}

// FullRefreshStreamsToClear returns the full-refresh streams of catalog
// whose state must be cleared before a retried attempt. With
// excludeResumable, streams marked resumable keep their state.
func FullRefreshStreamsToClear(catalog *types.ConfiguredCatalog, jobID int64, excludeResumable bool) (types.StreamSet, error) {
	if catalog == nil {
		return nil, fmt.Errorf("%w: missing configured catalog for job %d", ErrBadRequest, jobID)
	}
	set := types.NewStreamSet()
	for _, s := range catalog.Streams {
		if !s.IsFullRefresh() {
			continue
		}
		if excludeResumable && s.IsResumable() {
			continue
		}
		set.Add(s.Descriptor())
	}
	return set, nil
}

// FirstAttemptStreams returns the streams whose generation is bumped and
// whose state is cleared before the first attempt of a job.
//
//	sync     every full-refresh stream
//	refresh  every full-refresh stream plus the streams to refresh
//	clear    the streams to reset
//	check    none
func FirstAttemptStreams(jobID int64, cfg types.JobConfig, supportsRefreshes bool) (types.StreamSet, error) {
	switch c := cfg.(type) {
	case types.SyncConfig:
		if c.ConfiguredCatalog == nil {
			return nil, fmt.Errorf("%w: missing configured catalog for job %d", ErrBadRequest, jobID)
		}
		return FullRefreshStreams(c.ConfiguredCatalog), nil
	case types.RefreshConfig:
		if !supportsRefreshes {
			return nil, fmt.Errorf("%w: job %d", ErrRefreshUnsupported, jobID)
		}
		if c.ConfiguredCatalog == nil {
			return nil, fmt.Errorf("%w: missing configured catalog for job %d", ErrBadRequest, jobID)
		}
		set := FullRefreshStreams(c.ConfiguredCatalog)
		for _, r := range c.StreamsToRefresh {
			set.Add(r.StreamDescriptor)
		}
		return set, nil
	case types.ResetConfig:
		return types.NewStreamSet(c.StreamsToReset...), nil
	case types.CheckConnectionConfig:
		return types.NewStreamSet(), nil
	default:
		return nil, fmt.Errorf("%w: job %d has unsupported config %T", ErrBadRequest, jobID, cfg)
	}
}
