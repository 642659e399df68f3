package callbacks

import (
	"encoding/base64"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.MaxSize = 3
	properties := gopter.NewProperties(parameters)

	properties.Property("decode(encode(p)) == p for payloads that fit", prop.ForAll(
		func(target int, props map[string]string) bool {
			p := Payload{Target: target, Props: props}
			encoded, err := Encode(p)
			if err != nil {
				// only the size ceiling may reject a valid target
				return errors.Is(err, ErrEncodingTooLarge) && encoded == ""
			}
			if len(encoded) > MaxPayloadSize {
				return false
			}
			got := Decode(encoded)
			if got.Target != target {
				return false
			}
			if len(props) == 0 {
				return got.Props == nil
			}
			return reflect.DeepEqual(got.Props, props)
		},
		gen.IntRange(1, 99999),
		gen.MapOf(gen.RegexMatch("[a-z]{1,5}"), gen.RegexMatch("[a-z0-9]{0,5}")),
	))

	properties.TestingRun(t)
}

func TestDecodeGarbageNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary strings decode to an empty payload", prop.ForAll(
		func(s string) bool {
			return Decode("!" + s).Empty()
		},
		gen.AnyString(),
	))

	properties.Property("base64 of arbitrary bytes decodes to an empty payload", prop.ForAll(
		func(b []byte) bool {
			if len(b) > 0 && b[0] == '{' {
				b[0] = '['
			}
			return Decode(base64.StdEncoding.EncodeToString(b)).Empty()
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestDecodeMalformedInputs(t *testing.T) {
	valid := MustEncode(Payload{Target: 7, Props: map[string]string{"amount": "5"}})
	inputs := map[string]string{
		"empty":         "",
		"truncated":     valid[:len(valid)-5],
		"not base64":    "%%%%",
		"not json":      base64.StdEncoding.EncodeToString([]byte("hello")),
		"json array":    base64.StdEncoding.EncodeToString([]byte(`[1,2,3]`)),
		"negative":      base64.StdEncoding.EncodeToString([]byte(`{"n":-3}`)),
		"zero target":   base64.StdEncoding.EncodeToString([]byte(`{"x":{"a":"b"}}`)),
		"wrong types":   base64.StdEncoding.EncodeToString([]byte(`{"n":"7","x":[]}`)),
		"telebot style": "\fmenu|42",
		"too long":      strings.Repeat("A", MaxPayloadSize+4),
	}
	for name, in := range inputs {
		if got := Decode(in); !got.Empty() || got.Props != nil {
			t.Fatalf("%s: expected empty payload, got %+v", name, got)
		}
	}
}

func TestDecodeLegacyPayloadWithoutProps(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"n":12,"x":{}}`))
	got := Decode(data)
	if got.Target != 12 {
		t.Fatalf("target = %d, want 12", got.Target)
	}
	if got.Props != nil {
		t.Fatalf("empty props should decode as nil, got %v", got.Props)
	}
}

func TestDecodeStringTargetFromOlderButtons(t *testing.T) {
	got := Decode(base64.StdEncoding.EncodeToString([]byte(`{"n":"3","x":{}}`)))
	if got.Target != 3 || got.Props != nil {
		t.Fatalf("payload = %+v, want target 3 without props", got)
	}
	got = Decode(base64.StdEncoding.EncodeToString([]byte(`{"n":"5","x":{"page":2,"ok":true,"q":"a"}}`)))
	want := map[string]string{"page": "2", "ok": "true", "q": "a"}
	if got.Target != 5 || !reflect.DeepEqual(got.Props, want) {
		t.Fatalf("payload = %+v", got)
	}
	for _, in := range []string{`{"n":"abc"}`, `{"n":"4","x":{"a":{"b":1}}}`} {
		if p := Decode(base64.StdEncoding.EncodeToString([]byte(in))); !p.Empty() {
			t.Fatalf("%s decoded to %+v", in, p)
		}
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	p := Payload{Target: 3, Props: map[string]string{"message": strings.Repeat("x", 60)}}
	out, err := Encode(p)
	if !errors.Is(err, ErrEncodingTooLarge) {
		t.Fatalf("expected ErrEncodingTooLarge, got %v", err)
	}
	if out != "" {
		t.Fatalf("oversized payload must not be returned, got %q", out)
	}
}

func TestEncodeRejectsMissingTarget(t *testing.T) {
	if _, err := Encode(Payload{}); err == nil {
		t.Fatal("expected error for zero target")
	}
}

func TestEncodeIsCompact(t *testing.T) {
	out, err := Encode(Payload{Target: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(out)
	if string(raw) != `{"n":1}` {
		t.Fatalf("unexpected wire form %s", raw)
	}
}
