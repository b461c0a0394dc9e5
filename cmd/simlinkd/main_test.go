package main

import (
	"io"
	"testing"
	"time"

	"github.com/skobkin/simlink/internal/config"
)

func TestApplyOnlyOverridesExplicitFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-connector", "Serial", "-serial", "/dev/ttyUSB0", "-rate", "250ms", "-verbose"}, io.Discard)
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	cfg.Acquisition.ReplaySpeed = 3
	cfg.Connection.Host = "10.0.0.5"
	opts.apply(&cfg)

	if cfg.Connection.Connector != config.ConnectorSerial || cfg.Connection.SerialPort != "/dev/ttyUSB0" {
		t.Fatalf("unexpected connection %+v", cfg.Connection)
	}
	if cfg.Acquisition.UpdateRateMs != 250 || !cfg.Acquisition.Verbose {
		t.Fatalf("unexpected acquisition %+v", cfg.Acquisition)
	}
	if cfg.Acquisition.ReplaySpeed != 3 || cfg.Connection.Host != "10.0.0.5" {
		t.Fatalf("unset flags must keep config values, got %+v", cfg)
	}
}

func TestParseFlagsRejectsPositionalArguments(t *testing.T) {
	if _, err := parseFlags([]string{"-listen-for", "1s", "extra"}, io.Discard); err == nil {
		t.Fatalf("expected positional arguments to be rejected")
	}

	opts, err := parseFlags([]string{"-listen-for", "1s"}, io.Discard)
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if opts.listenFor != time.Second {
		t.Fatalf("expected listen-for 1s, got %s", opts.listenFor)
	}
}

func TestParseWeatherRequest(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantValid bool
		wantQuery string
		wantErr   bool
	}{
		{name: "empty", raw: "  ", wantValid: false},
		{name: "station", raw: "eddf", wantValid: true, wantQuery: "EDDF"},
		{name: "nearest", raw: "nearest:50.03, 8.57", wantValid: true, wantQuery: "nearest"},
		{name: "nearest upper case", raw: "NEAREST:-33.9,151.2", wantValid: true, wantQuery: "nearest"},
		{name: "nearest missing lon", raw: "nearest:50.03", wantErr: true},
		{name: "nearest bad lat", raw: "nearest:95,8", wantErr: true},
		{name: "nearest bad lon", raw: "nearest:50,abc", wantErr: true},
	}

	for _, tc := range tests {
		req, err := parseWeatherRequest(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if req.Valid() != tc.wantValid || req.Query() != tc.wantQuery {
			t.Fatalf("%s: got valid=%v query=%q", tc.name, req.Valid(), req.Query())
		}
	}
}

func TestParseWeatherRequestKeepsCoordinates(t *testing.T) {
	req, err := parseWeatherRequest("nearest:50.5,-8.25")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !req.Nearest || req.Lat != 50.5 || req.Lon != -8.25 {
		t.Fatalf("unexpected request %+v", req)
	}
}
