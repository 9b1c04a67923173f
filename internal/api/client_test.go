package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/authenticate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["email"] != "ada@example.com" || body["password"] != "secret" {
			t.Errorf("unexpected credentials: %v", body)
		}
		json.NewEncoder(w).Encode(AuthResult{Token: "tok-1", UserID: 7, FirstName: "Ada"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	result, err := c.Authenticate(context.Background(), "ada@example.com", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if result.Token != "tok-1" || result.UserID != 7 || result.FirstName != "Ada" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestAuthenticateRejectsEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.Authenticate(context.Background(), "a", "b"); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestThermostatFingerprint(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bare", "abc-123", "abc-123"},
		{"quoted", `"abc-123"`, "abc-123"},
		{"whitespace", "abc-123\n", "abc-123"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/thermostat/get-thermostat-fingerprint" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("thermostatId"); got != "thermo-42" {
					t.Errorf("unexpected thermostatId %q", got)
				}
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, nil)
			got, err := c.ThermostatFingerprint(context.Background(), "thermo-42")
			if err != nil {
				t.Fatalf("ThermostatFingerprint: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("fp"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, func() string { return "tok-9" })
	if _, err := c.ThermostatFingerprint(context.Background(), "t"); err != nil {
		t.Fatalf("ThermostatFingerprint: %v", err)
	}
	if gotAuth != "Bearer tok-9" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
}

func TestIsReadyToPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("userId") != "7" || q.Get("thermostatId") != "thermo-42" {
			t.Errorf("unexpected query %v", q)
		}
		w.Write([]byte("true"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	ready, err := c.IsReadyToPair(context.Background(), 7, "thermo-42")
	if err != nil {
		t.Fatalf("IsReadyToPair: %v", err)
	}
	if !ready {
		t.Error("expected ready")
	}
}

func TestSaveLogTimestampFormat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/log/save-log" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	ts := time.Date(2026, 3, 1, 9, 5, 30, 0, time.UTC)
	c := NewClient(srv.URL, nil)
	if err := c.SaveLog(context.Background(), 7, "OUT", ts); err != nil {
		t.Fatalf("SaveLog: %v", err)
	}

	if body["timestamp"] != "2026-03-01 09:05:30" {
		t.Errorf("unexpected timestamp %v", body["timestamp"])
	}
	if body["eventType"] != "OUT" {
		t.Errorf("unexpected eventType %v", body["eventType"])
	}
	if body["userId"] != float64(7) {
		t.Errorf("unexpected userId %v", body["userId"])
	}
}

func TestUpdateDistanceFromHome(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/update-user-distance-from-home" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if err := c.UpdateDistanceFromHome(context.Background(), 7, 135); err != nil {
		t.Fatalf("UpdateDistanceFromHome: %v", err)
	}
	if body["distanceFromHome"] != float64(135) {
		t.Errorf("unexpected distance %v", body["distanceFromHome"])
	}
}

func TestNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if _, err := c.ThermostatFingerprint(context.Background(), "t"); err == nil {
		t.Error("expected error for 401")
	}
	if err := c.PairThermostat(context.Background(), 7, "t"); err == nil {
		t.Error("expected error for 401")
	}
}

func TestFakeCloudFingerprintScript(t *testing.T) {
	f := NewFakeCloud()
	f.Fingerprints = []string{"", "fp-1"}

	ctx := context.Background()
	for i, want := range []string{"", "fp-1", "fp-1"} {
		got, err := f.ThermostatFingerprint(ctx, "t")
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if got != want {
			t.Errorf("poll %d: got %q, want %q", i, got, want)
		}
	}
}
