package timing

import "time"

// MetricSink stores one performance measurement for a call. Implementations
// must tolerate an empty callID (e.g. a relay session that failed before the
// start frame arrived) and must never block the caller on storage errors.
type MetricSink func(callID, stepName string, startTime, endTime time.Time, metadata map[string]interface{})

// Measure starts timing the named step and returns a stop function that
// reports the measurement to sink. A nil sink makes the stop function a
// no-op, so call sites never need to guard the instrumentation.
//
//	stop := timing.Measure(callID, "llm_processing", sink, meta)
//	defer stop()
func Measure(callID, stepName string, sink MetricSink, metadata map[string]interface{}) func() {
	start := time.Now()
	return func() {
		if sink == nil {
			return
		}
		sink(callID, stepName, start, time.Now(), metadata)
	}
}
