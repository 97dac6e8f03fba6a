package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vaultsandbox/peermail/internal/crypto"
)

func testSender(t *testing.T) Sender {
	t.Helper()
	kp, err := crypto.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	return Sender{Keys: kp.Public(), Address: "http://self", Handle: "alice"}
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		in, want time.Duration
	}{
		{0, DefaultTimeout},
		{time.Millisecond, MinTimeout},
		{3 * time.Second, 3 * time.Second},
		{time.Minute, MaxTimeout},
	}
	for _, tt := range tests {
		if got := ClampTimeout(tt.in); got != tt.want {
			t.Errorf("ClampTimeout(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", c.Timeout(), DefaultTimeout)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNewClient_SOCKS5(t *testing.T) {
	c, err := NewClient(WithSOCKS5("127.0.0.1:9050"))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok || tr.DialContext == nil {
		t.Error("SOCKS5 dialer not installed")
	}
}

func TestClient_Call_Success(t *testing.T) {
	sender := testSender(t)

	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DirectPath || r.Method != http.MethodPost {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		gotID = r.Header.Get(RequestIDHeader)

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Kind != KindPing || !req.Sender.Keys.Equal(sender.Keys) {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(Success("bob"))
	}))
	defer srv.Close()

	c, err := NewClient()
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Call(context.Background(), srv.URL+"/", &Request{Kind: KindPing, Sender: sender})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !resp.OK() || resp.Handle != "bob" {
		t.Errorf("Call() = %+v", resp)
	}
	if gotID == "" {
		t.Error("X-Request-ID header not sent")
	}
}

func TestClient_Call_FailureStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Failure("rejected"))
	}))
	defer srv.Close()

	c, _ := NewClient()
	resp, err := c.Call(context.Background(), srv.URL, &Request{Kind: KindPing, Sender: testSender(t)})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.OK() {
		t.Error("OK() = true for failure response")
	}
}

func TestClient_Call_Errors(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	}))
	defer slow.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, "req-1")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status":"failure","error":"boom"}`))
	}))
	defer broken.Close()

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer garbage.Close()

	// A listener that is closed right away yields a refused connection.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closedAddr := "http://" + ln.Addr().String()
	ln.Close()

	tests := []struct {
		name    string
		address string
		want    error
	}{
		{"timeout", slow.URL, ErrTimeout},
		{"refused", closedAddr, ErrUnreachable},
		{"no address", "", ErrUnreachable},
		{"error status", broken.URL, ErrRejected},
		{"malformed body", garbage.URL, ErrRejected},
	}

	c, err := NewClient(WithTimeout(MinTimeout))
	if err != nil {
		t.Fatal(err)
	}
	sender := testSender(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Call(context.Background(), tt.address, &Request{Kind: KindPing, Sender: sender})
			if !errors.Is(err, tt.want) {
				t.Errorf("Call() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_Call_PeerErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RequestIDHeader, "req-9")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"failure","error":"invalid request"}`))
	}))
	defer srv.Close()

	c, _ := NewClient()
	_, err := c.Call(context.Background(), srv.URL, &Request{Kind: KindPing, Sender: testSender(t)})

	var peerErr *PeerError
	if !errors.As(err, &peerErr) {
		t.Fatalf("Call() error = %v, want *PeerError", err)
	}
	if peerErr.StatusCode != http.StatusBadRequest || peerErr.Message != "invalid request" || peerErr.RequestID != "req-9" {
		t.Errorf("PeerError = %+v", peerErr)
	}
}
