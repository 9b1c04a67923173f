// Command thermostat-sim simulates an unconfigured thermostat's setup
// access point. It accepts Wi-Fi credentials over the local setup
// endpoint and can report the received fingerprint to a backend, which
// lets the agent's pairing flow be exercised without hardware.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

// device holds the simulated thermostat state.
type device struct {
	mu           sync.Mutex
	thermostatID string
	ssid         string
	password     string
	fingerprint  string
	configured   bool
}

func main() {
	addr := flag.String("http", ":8081", "Setup endpoint listen address")
	thermostatID := flag.String("id", "", "Thermostat id (default: random)")
	reportURL := flag.String("report-url", "", "Backend endpoint to report the fingerprint to after \"boot\" (empty disables)")
	bootDelay := flag.Duration("boot-delay", 3*time.Second, "Simulated reboot time between credential receipt and fingerprint report")
	showQR := flag.Bool("qr", true, "Print the thermostat id as a QR code")

	flag.Parse()

	id := *thermostatID
	if id == "" {
		id = uuid.NewString()
	}

	d := &device{thermostatID: id}

	fmt.Printf("simulated thermostat %s\n", id)
	if *showQR {
		displayQR(id)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/setup", d.handleSetup(*reportURL, *bootDelay))
	mux.HandleFunc("/fingerprint", d.handleFingerprint)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		log.Printf("setup endpoint listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("fatal: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	srv.Shutdown(context.Background())
}

// handleSetup accepts the credential hand-off the agent performs during
// pairing: GET /setup?ssid=...&password=...&fingerprint=...
func (d *device) handleSetup(reportURL string, bootDelay time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ssid := q.Get("ssid")
		password := q.Get("password")
		fingerprint := q.Get("fingerprint")
		if ssid == "" || password == "" {
			http.Error(w, "ssid and password required", http.StatusBadRequest)
			return
		}

		d.mu.Lock()
		d.ssid = ssid
		d.password = password
		d.fingerprint = fingerprint
		d.configured = true
		id := d.thermostatID
		d.mu.Unlock()

		log.Printf("received credentials for network %q (fingerprint %s)", ssid, fingerprint)
		w.WriteHeader(http.StatusOK)

		if reportURL != "" {
			go reportFingerprint(reportURL, id, fingerprint, bootDelay)
		}
	}
}

// handleFingerprint exposes the stored fingerprint, standing in for the
// cloud-side lookup when running fully offline.
func (d *device) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.configured {
		http.Error(w, "not configured", http.StatusNotFound)
		return
	}
	fmt.Fprint(w, d.fingerprint)
}

// reportFingerprint imitates the thermostat joining Wi-Fi and checking in
// with the backend after a reboot.
func reportFingerprint(reportURL, thermostatID, fingerprint string, bootDelay time.Duration) {
	time.Sleep(bootDelay)

	body, _ := json.Marshal(map[string]string{
		"thermostatId": thermostatID,
		"fingerprint":  fingerprint,
	})
	resp, err := http.Post(reportURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("fingerprint report failed: %v", err)
		return
	}
	resp.Body.Close()
	log.Printf("reported fingerprint to %s (status %d)", reportURL, resp.StatusCode)
}

// displayQR prints the thermostat id as a terminal QR code so the mobile
// app's scanner can pick it up.
func displayQR(id string) {
	qr, err := qrcode.New(id, qrcode.Medium)
	if err != nil {
		log.Printf("qr generation failed: %v", err)
		return
	}
	fmt.Print(qr.ToSmallString(false))
}
