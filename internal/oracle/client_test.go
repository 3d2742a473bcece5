package oracle_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"io"
	"log/slog"

	"concord/internal/oracle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify(t *testing.T) {
	var got oracle.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("path = %s, want /classify", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"present":    true,
			"confidence": 0.93,
			"rationale":  "strong signal",
			"score":      1,
		})
	}))
	defer server.Close()

	c := oracle.New(oracle.Config{BaseURL: server.URL, Timeout: time.Second}, testLogger())

	resp, err := c.Classify(context.Background(), oracle.Request{
		Text:       "sample",
		TraitLabel: "urgency",
		Mode:       oracle.ModeBasic,
	})
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}

	if !resp.Present {
		t.Error("present = false, want true")
	}
	if v, ok := resp.Confidence.Value(); !ok || v != 0.93 {
		t.Errorf("confidence = %v (%v), want 0.93", v, ok)
	}
	if resp.BinaryScore() != 1 {
		t.Errorf("binary score = %d, want 1", resp.BinaryScore())
	}
	if got.TraitLabel != "urgency" || got.Mode != oracle.ModeBasic {
		t.Errorf("request forwarded incorrectly: %+v", got)
	}
}

func TestClassifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := oracle.New(oracle.Config{BaseURL: server.URL, Timeout: time.Second}, testLogger())

	_, err := c.Classify(context.Background(), oracle.Request{})
	if !errors.Is(err, oracle.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestClassifyMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := oracle.New(oracle.Config{BaseURL: server.URL, Timeout: time.Second}, testLogger())

	_, err := c.Classify(context.Background(), oracle.Request{})
	if !errors.Is(err, oracle.ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

func TestClassifyTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := oracle.New(oracle.Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, testLogger())

	_, err := c.Classify(context.Background(), oracle.Request{})
	if !errors.Is(err, oracle.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable on timeout", err)
	}
}

func TestConfidenceUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
		numeric bool
	}{
		{"number", `0.75`, 0.75, true},
		{"numeric string", `"0.42"`, 0.42, true},
		{"padded string", `" 0.9 "`, 0.9, true},
		{"garbage string", `"high"`, 0, false},
		{"object", `{"v": 1}`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c oracle.Confidence
			if err := json.Unmarshal([]byte(tt.payload), &c); err != nil {
				t.Fatalf("unmarshal returned error: %v", err)
			}

			v, numeric := c.Value()
			if numeric != tt.numeric {
				t.Fatalf("numeric = %v, want %v", numeric, tt.numeric)
			}
			if tt.numeric && v != tt.want {
				t.Errorf("value = %v, want %v", v, tt.want)
			}
			if !tt.numeric && !math.IsNaN(v) {
				t.Errorf("value = %v, want NaN for non-numeric", v)
			}
		})
	}
}
