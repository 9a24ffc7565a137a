package config

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
	if !cfg.Notify.IsNotifySuccess {
		t.Fatalf("expected success notifications to be enabled by default")
	}
	if cfg.Notify.Timeout != DefaultPopupTimeout {
		t.Fatalf("expected default timeout %s, got %s", DefaultPopupTimeout, cfg.Notify.Timeout)
	}
	if cfg.Connection.Delay() != DefaultRetryDelay {
		t.Fatalf("expected default retry delay %s, got %s", DefaultRetryDelay, cfg.Connection.Delay())
	}
}

func TestDisplayHistoryCountBounds(t *testing.T) {
	tests := []struct {
		count int
		valid bool
	}{
		{count: 25, valid: true},
		{count: 200, valid: true},
		{count: 100, valid: true},
		{count: 24, valid: false},
		{count: 201, valid: false},
		{count: math.MinInt32, valid: false},
		{count: math.MaxInt32, valid: false},
	}

	for _, tc := range tests {
		cfg := Default()
		cfg.Notify.DisplayHistoryCount = tc.count
		err := cfg.Validate()
		if tc.valid {
			if err != nil {
				t.Fatalf("count %d: expected valid, got %v", tc.count, err)
			}
			continue
		}
		var verr *VerificationError
		if !errors.As(err, &verr) {
			t.Fatalf("count %d: expected verification error, got %v", tc.count, err)
		}
		if verr.Field != "NotifyConfiguration.DisplayHistoryCount" {
			t.Fatalf("count %d: unexpected field %q", tc.count, verr.Field)
		}
	}
}

func TestPopupTimeoutValidation(t *testing.T) {
	cfg := Default()
	cfg.Notify.PopupTimeout = "not a timespan"
	var verr *VerificationError
	if err := cfg.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected verification error for bad timeout, got %v", err)
	}

	cfg.Notify.PopupTimeout = "200000.00:00:00"
	if err := cfg.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected verification error for out of range timeout, got %v", err)
	}

	cfg.Notify.PopupTimeout = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected empty timeout to be allowed, got %v", err)
	}
	if cfg.Notify.Timeout != 0 {
		t.Fatalf("expected empty timeout to clear Timeout, got %s", cfg.Notify.Timeout)
	}

	cfg.Notify.PopupTimeout = "00:00:12"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid timeout, got %v", err)
	}
	if cfg.Notify.Timeout != 12*time.Second {
		t.Fatalf("expected parsed timeout 12s, got %s", cfg.Notify.Timeout)
	}
}

func TestMaxRetriesMustBePositive(t *testing.T) {
	cfg := Default()
	cfg.Connection.MaxRetries = 0
	var verr *VerificationError
	if err := cfg.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected verification error, got %v", err)
	}
}

func TestNotifyConfigurationRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Notify.TargetURI = "ws://ci.example.com:8081/notify"
	cfg.Notify.PopupAnimation = PopupAnimationSlide
	cfg.Notify.SetTimeout(90 * time.Second)
	cfg.Notify.DisplayHistoryCount = 120
	cfg.Notify.IsNotifySuccess = false

	raw, err := Encode(cfg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Notify.String() != cfg.Notify.String() {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", cfg.Notify, decoded.Notify)
	}
	if decoded.String() != cfg.String() {
		t.Fatalf("round trip mismatch:\nwant %s\ngot  %s", cfg, decoded)
	}
}

func TestDecodeUnknownAnimationFallsBackToNone(t *testing.T) {
	raw := []byte(`<ApplicationConfiguration><NotifyConfiguration><PopupAnimation>Wobble</PopupAnimation></NotifyConfiguration></ApplicationConfiguration>`)
	cfg, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Notify.PopupAnimation != PopupAnimationNone {
		t.Fatalf("expected None animation, got %q", cfg.Notify.PopupAnimation)
	}
	if cfg.Notify.DisplayHistoryCount != DefaultDisplayHistoryCount {
		t.Fatalf("expected missing element to keep default, got %d", cfg.Notify.DisplayHistoryCount)
	}
}

func TestDecodeEmptyPopupTimeoutClearsTimeout(t *testing.T) {
	raw := []byte(`<ApplicationConfiguration><NotifyConfiguration><PopupTimeout></PopupTimeout></NotifyConfiguration></ApplicationConfiguration>`)
	cfg, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Notify.PopupTimeout != "" || cfg.Notify.Timeout != 0 {
		t.Fatalf("expected empty timeout, got %q / %s", cfg.Notify.PopupTimeout, cfg.Notify.Timeout)
	}
}
