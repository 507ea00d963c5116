package ability

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/workflow"
)

func TestContextGetters(t *testing.T) {
	t.Parallel()

	in := Context{
		"query":          "refund",
		"priority_level": float64(3),
		"flag":           true,
		"kb_results":     []any{map[string]any{"id": "kb_001"}, "skip"},
		"questions":      []any{"a", 1, "b"},
	}

	if got := in.Str("query"); got != "refund" {
		t.Errorf("Str(query) = %q, want refund", got)
	}
	if got := in.Str("missing"); got != "" {
		t.Errorf("Str(missing) = %q, want empty", got)
	}
	if got := in.Int("priority_level", 2); got != 3 {
		t.Errorf("Int(priority_level) = %d, want 3", got)
	}
	if got := in.Int("missing", 2); got != 2 {
		t.Errorf("Int(missing) = %d, want default 2", got)
	}
	if !in.Bool("flag") {
		t.Error("Bool(flag) = false, want true")
	}
	if got := in.Records("kb_results"); len(got) != 1 || got[0]["id"] != "kb_001" {
		t.Errorf("Records(kb_results) = %v", got)
	}
	if got := in.Strings("questions"); len(got) != 2 || got[1] != "b" {
		t.Errorf("Strings(questions) = %v", got)
	}
}

func TestErrorResult(t *testing.T) {
	t.Parallel()

	a := workflow.Ability{Name: "knowledge_base_search", Backend: workflow.BackendAtlas}
	r := ErrorResult(a, errors.New("index offline"))

	if !r.IsError() {
		t.Error("IsError() = false, want true")
	}
	if r.Ability() != "knowledge_base_search" {
		t.Errorf("Ability() = %s, want knowledge_base_search", r.Ability())
	}
	if r[KeyStatus] != StatusFailed {
		t.Errorf("status = %v, want failed", r[KeyStatus])
	}
	ts, ok := r[KeyTimestamp].(string)
	if !ok {
		t.Fatalf("timestamp = %T, want RFC3339 string", r[KeyTimestamp])
	}
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Errorf("timestamp %q does not parse: %v", ts, err)
	}
	if (Result{KeyStatus: StatusCompleted}).IsError() {
		t.Error("completed result reported as error")
	}
}

func TestMismatchError(t *testing.T) {
	t.Parallel()

	a := workflow.Ability{Name: "extract_entities", Backend: workflow.BackendAtlas}
	err := MismatchError(a, workflow.BackendCommon)
	if !errors.Is(err, ErrBackendMismatch) {
		t.Errorf("MismatchError() = %v, want ErrBackendMismatch", err)
	}
}

func TestAsFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{float64(1.5), 1.5, true},
		{float32(2), 2, true},
		{7, 7, true},
		{int64(9), 9, true},
		{"10", 0, false},
		{nil, 0, false},
	}

	for _, tt := range tests {
		got, ok := AsFloat(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("AsFloat(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
