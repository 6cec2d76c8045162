package prometheus

import (
	"testing"
	"time"

	"github.com/arcusq/go-task-queue/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("taskqueue", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskDuration("queue-a", core.PriorityNormal, 250*time.Millisecond)
	exporter.RecordTaskPanic("queue-a", "panic")
	exporter.RecordQueueDepth("queue-a", "immediate_incoming", 7)
	exporter.RecordTaskRejected("queue-a", "unregistered")

	panicTotal := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("queue-a"))
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	queueDepth := testutil.ToFloat64(exporter.queueDepth.WithLabelValues("queue-a", "immediate_incoming"))
	if queueDepth != 7 {
		t.Fatalf("queue depth = %v, want 7", queueDepth)
	}

	rejected := testutil.ToFloat64(exporter.taskRejectedTotal.WithLabelValues("queue-a", "unregistered"))
	if rejected != 1 {
		t.Fatalf("rejected total = %v, want 1", rejected)
	}

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("queue-a", "normal"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("taskqueue", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("taskqueue", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskPanic("queue-a", nil)
	second.RecordTaskPanic("queue-a", nil)

	got := testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("queue-a"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
