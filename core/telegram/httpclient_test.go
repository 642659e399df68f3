package telegram

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

type flakyTransport struct {
	failures int
	err      error
	calls    int
	bodies   []string
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(b))
	}
	if f.calls <= f.failures {
		return nil, f.err
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}")), Request: req}, nil
}

var dialErr = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

func TestHTTPClientRetriesTransientErrors(t *testing.T) {
	base := &flakyTransport{failures: 2, err: dialErr}
	client := NewHTTPClient(HTTPClientOptions{Base: base, Backoff: time.Millisecond})

	resp, err := client.Post("https://api.telegram.org/bot123:abc/sendMessage", "application/json", strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if base.calls != 3 {
		t.Fatalf("calls = %d", base.calls)
	}
	for _, b := range base.bodies {
		if b != `{"a":1}` {
			t.Fatalf("body not replayed: %q", b)
		}
	}
}

func TestHTTPClientGivesUp(t *testing.T) {
	base := &flakyTransport{failures: 10, err: dialErr}
	client := NewHTTPClient(HTTPClientOptions{Base: base, Retries: 2, Backoff: time.Millisecond})
	if _, err := client.Get("https://api.telegram.org/bot1:x/getMe"); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 3 {
		t.Fatalf("calls = %d", base.calls)
	}
}

func TestHTTPClientDoesNotRetryPermanentErrors(t *testing.T) {
	base := &flakyTransport{failures: 1, err: errors.New("bad certificate")}
	client := NewHTTPClient(HTTPClientOptions{Base: base, Backoff: time.Millisecond})
	if _, err := client.Get("https://api.telegram.org/bot1:x/getMe"); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("calls = %d", base.calls)
	}
}

func TestHTTPClientRetriesDisabled(t *testing.T) {
	base := &flakyTransport{failures: 1, err: dialErr}
	client := NewHTTPClient(HTTPClientOptions{Base: base, Retries: -1})
	if _, err := client.Get("https://api.telegram.org/bot1:x/getMe"); err == nil {
		t.Fatal("expected error")
	}
	if base.calls != 1 {
		t.Fatalf("calls = %d", base.calls)
	}
}
