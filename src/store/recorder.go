package store

import (
	"context"
	"time"
)

// Recording sinks for the relay. The relay must never block on storage, so
// these write asynchronously with their own deadline and only log failures.

const recordTimeout = 5 * time.Second

// RecordTranscript saves one transcript line, fire-and-forget. Matches the
// relay's TranscriptSink signature.
func (s *Store) RecordTranscript(callSID, role, content string) {
	if callSID == "" || content == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.AddConversationEntry(ctx, callSID, role, content); err != nil {
			s.log.Error("Failed to record transcript for call %s: %v", callSID, err)
		}
	}()
}

// RecordMetric saves one performance measurement, fire-and-forget. Matches
// the timing.MetricSink signature; an empty call SID is dropped, not an
// error.
func (s *Store) RecordMetric(callSID, stepName string, startTime, endTime time.Time, metadata map[string]interface{}) {
	if callSID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.AddPerformanceMetric(ctx, callSID, stepName, startTime, endTime, metadata); err != nil {
			s.log.Error("Failed to record metric %s for call %s: %v", stepName, callSID, err)
		}
	}()
}
