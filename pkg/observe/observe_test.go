package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogRecorder_WritesSortedFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := NewLogRecorder(zap.New(core))

	rec.Record("connect_succeeded", map[string]any{"connector": "dev", "chain_id": uint64(337)})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	assert.Equal(t, "connect_succeeded", ctx["event"])
	assert.Equal(t, "dev", ctx["connector"])
	assert.Equal(t, uint64(337), ctx["chain_id"])
}

func TestMemory_CopiesDetails(t *testing.T) {
	mem := &Memory{}
	details := map[string]any{"id": "a"}
	mem.Record("submitted", details)
	details["id"] = "b"

	events := mem.Events()
	assert.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Details["id"])
	assert.Equal(t, []string{"submitted"}, mem.Names())
}

func TestMulti(t *testing.T) {
	a, b := &Memory{}, &Memory{}
	Multi(a, nil, b).Record("x", nil)
	assert.Equal(t, []string{"x"}, a.Names())
	assert.Equal(t, []string{"x"}, b.Names())
	Nop().Record("ignored", nil)
}

func TestMemory_Limit(t *testing.T) {
	mem := &Memory{Limit: 2}
	for _, name := range []string{"a", "b", "c"} {
		mem.Record(name, nil)
	}
	assert.Equal(t, []string{"b", "c"}, mem.Names())
}
