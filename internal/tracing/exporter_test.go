package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func readRecords(t *testing.T, path string) []SpanRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []SpanRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec SpanRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestFileExporter_WritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	start := time.Now()
	stubs := tracetest.SpanStubs{
		{
			Name:       SpanRender,
			StartTime:  start,
			EndTime:    start.Add(1500 * time.Microsecond),
			Attributes: []attribute.KeyValue{attribute.String(AttrGrammar, "source.go"), attribute.Int(AttrLines, 12)},
			Status:     sdktrace.Status{Code: codes.Error, Description: "boom"},
			Events:     []sdktrace.Event{{Name: "cancelled", Time: start}},
		},
		{Name: SpanThemeLoad, StartTime: start, EndTime: start},
	}
	require.NoError(t, exp.ExportSpans(context.Background(), stubs.Snapshots()))
	require.NoError(t, exp.ExportSpans(context.Background(), nil))
	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))

	records := readRecords(t, path)
	require.Len(t, records, 2)

	r := records[0]
	require.Equal(t, SpanRender, r.Name)
	require.Equal(t, "ERROR", r.Status)
	require.Equal(t, "boom", r.StatusMsg)
	require.InDelta(t, 1.5, r.DurationMs, 0.001)
	require.Equal(t, "source.go", r.Attributes[AttrGrammar])
	require.InDelta(t, 12, r.Attributes[AttrLines], 0)
	require.Len(t, r.Events, 1)

	require.Equal(t, "UNSET", records[1].Status)
	require.Empty(t, records[1].Attributes)
}

func TestFileExporter_ExportAfterShutdown(t *testing.T) {
	exp, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))

	stub := tracetest.SpanStub{Name: "late"}
	require.Error(t, exp.ExportSpans(context.Background(), []sdktrace.ReadOnlySpan{stub.Snapshot()}))
}
