package ionmetric

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type account struct {
	ID     string  `metric:"accountId"`
	Region *string `metric:"region"`
	secret string  `metric:"hidden"`
	Notes  string
}

type base struct {
	Tenant string `metric:"tenant"`
}

type transfer struct {
	*base
	Amount  int64         `metric:"amount"`
	Timeout time.Duration `metric:""`
	Ref     any           `metric:"ref"`
}

type panickyStringer struct{}

func (panickyStringer) String() string { panic("broken Stringer") }

type money struct {
	cents int64
}

func (m *money) String() string { return fmt.Sprintf("%d.%02d", m.cents/100, m.cents%100) }

type invoice struct {
	Total money  `metric:"total"`
	fee   money  `metric:"fee"`
	Due   *money `metric:"due"`
}

type withBroken struct {
	Before string          `metric:"before"`
	Broken panickyStringer `metric:"broken"`
	After  string          `metric:"after"`
}

func TestExtractTags(t *testing.T) {
	region := "eu-west-1"

	tests := []struct {
		name string
		args []any
		want map[string]string
	}{
		{
			name: "unexported and pointer fields",
			args: []any{&account{ID: "acc-1", Region: &region, secret: "s3", Notes: "ignored"}},
			want: map[string]string{"accountId": "acc-1", "region": "eu-west-1", "hidden": "s3"},
		},
		{
			name: "nil pointer field is null",
			args: []any{account{ID: "acc-2"}},
			want: map[string]string{"accountId": "acc-2", "region": "null", "hidden": ""},
		},
		{
			name: "embedded struct, blank key and interface",
			args: []any{&transfer{base: &base{Tenant: "acme"}, Amount: 250, Timeout: 2 * time.Second, Ref: 7}},
			want: map[string]string{"tenant": "acme", "amount": "250", "Timeout": "2s", "ref": "7"},
		},
		{
			name: "nil embedded pointer and nil interface",
			args: []any{transfer{Amount: 1}},
			want: map[string]string{"tenant": "null", "amount": "1", "ref": "null"},
		},
		{
			name: "pointer receiver Stringer on value fields",
			args: []any{invoice{Total: money{25050}, fee: money{199}, Due: &money{100}}},
			want: map[string]string{"total": "250.50", "fee": "1.99", "due": "1.00"},
		},
		{
			name: "nil and non-struct arguments are skipped",
			args: []any{nil, (*account)(nil), 42, "text", &account{ID: "acc-3"}},
			want: map[string]string{"accountId": "acc-3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := ExtractTags(tt.args, nil)
			for k, v := range tt.want {
				if got, ok := tags[k]; !ok || got != v {
					t.Errorf("tag %s = %q (present=%v), want %q", k, got, ok, v)
				}
			}
			if _, ok := tags["Notes"]; ok {
				t.Error("untagged field must not become a tag")
			}
			if tags["status"] != "500" || tags["type"] != ErrorTypeTechnical {
				t.Errorf("missing success classification: %v", tags)
			}
		})
	}
}

func TestExtractTags_LastWriteWins(t *testing.T) {
	type first struct {
		A string `metric:"key"`
		B string `metric:"key"`
	}
	type second struct {
		C string `metric:"key"`
	}

	if got := ExtractTags([]any{first{A: "a", B: "b"}}, nil)["key"]; got != "b" {
		t.Errorf("within one argument: got %q, want later field", got)
	}
	if got := ExtractTags([]any{first{A: "a", B: "b"}, second{C: "c"}}, nil)["key"]; got != "c" {
		t.Errorf("across arguments: got %q, want later argument", got)
	}

	// Argument fields overwrite classification tags of the same key.
	type clash struct {
		Status string `metric:"status"`
	}
	if got := ExtractTags([]any{clash{Status: "custom"}}, errors.New("x"))["status"]; got != "custom" {
		t.Errorf("argument tag should overwrite classification, got %q", got)
	}
}

func TestExtract_FieldFailureDegrades(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	x := NewExtractor(nil, DefaultErrorTagKeys(), newLoggerFromZap(zap.New(core)))

	tags := x.Extract(context.Background(), []any{withBroken{Before: "b", After: "a"}}, nil)

	if got, ok := tags["broken"]; !ok || got != "" {
		t.Errorf("broken field = %q (present=%v), want empty string", got, ok)
	}
	if tags["before"] != "b" || tags["after"] != "a" {
		t.Errorf("remaining fields must still be read: %v", tags)
	}
	if n := logs.FilterMessage("failed to read metric tag field").Len(); n != 1 {
		t.Errorf("expected 1 failure log, got %d", n)
	}
}

func TestTaggedFields_Cached(t *testing.T) {
	typ := reflect.TypeOf(account{})
	first := taggedFields(typ)
	second := taggedFields(typ)
	if len(first) != 3 {
		t.Fatalf("expected 3 tagged fields, got %d", len(first))
	}
	if &first[0] != &second[0] {
		t.Error("tagged fields should be computed once per type")
	}
}

func TestTagSet_Conversions(t *testing.T) {
	tags := TagSet{"b": "2", "a": "1"}

	if got := tags.Strings(); len(got) != 2 || got[0] != "a:1" || got[1] != "b:2" {
		t.Errorf("Strings() = %v", got)
	}
	attrs := tags.Attributes()
	if len(attrs) != 2 || string(attrs[0].Key) != "a" || attrs[0].Value.AsString() != "1" {
		t.Errorf("Attributes() = %v", attrs)
	}

	cp := tags.Clone()
	cp["a"] = "changed"
	if tags["a"] != "1" {
		t.Error("Clone must not share storage")
	}
}
