package timing

import (
	"testing"
	"time"
)

func TestMeasure(t *testing.T) {
	var (
		gotCall, gotStep string
		gotStart, gotEnd time.Time
		gotMeta          map[string]interface{}
	)
	sink := func(callID, stepName string, start, end time.Time, metadata map[string]interface{}) {
		gotCall, gotStep = callID, stepName
		gotStart, gotEnd = start, end
		gotMeta = metadata
	}

	before := time.Now()
	stop := Measure("CA1", "llm_processing", sink, map[string]interface{}{"input_length": 12})
	stop()
	after := time.Now()

	if gotCall != "CA1" || gotStep != "llm_processing" {
		t.Errorf("recorded %s/%s", gotCall, gotStep)
	}
	if gotStart.Before(before) || gotEnd.After(after) || gotEnd.Before(gotStart) {
		t.Errorf("timestamps out of range: start=%v end=%v", gotStart, gotEnd)
	}
	if gotMeta["input_length"] != 12 {
		t.Errorf("metadata = %v", gotMeta)
	}
}

func TestMeasureNilSink(t *testing.T) {
	stop := Measure("CA1", "step", nil, nil)
	// Must not panic.
	stop()
}
