package service_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/hadir-sekolah/presensi/internal/presensi/service"
	"github.com/hadir-sekolah/presensi/internal/presensi/store/memory"
	"github.com/hadir-sekolah/presensi/internal/presensi/types"
)

func TestSettingsService_PutMerges(t *testing.T) {
	svc := service.NewSettingsService(memory.NewSettingsStore(schoolSettings))
	ctx := context.Background()

	got, err := svc.Put(ctx, map[string]string{"entry_time": "06:45", "entry_deadline": ""})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got["entry_time"] != "06:45" {
		t.Errorf("expected entry_time=06:45, got %q", got["entry_time"])
	}
	if _, ok := got["entry_deadline"]; ok {
		t.Error("empty value should clear entry_deadline")
	}
	if got["exit_time"] != "15:00" {
		t.Error("untouched keys must survive")
	}

	parsed, err := svc.Parsed(ctx)
	if err != nil {
		t.Fatalf("Parsed: %v", err)
	}
	if parsed.Window.Deadline != nil {
		t.Error("expected no deadline after clearing it")
	}
}

func TestSettingsService_RejectsUnknownKey(t *testing.T) {
	svc := service.NewSettingsService(memory.NewSettingsStore(nil))

	_, err := svc.Put(context.Background(), map[string]string{"warna": "merah"})
	var fe types.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["warna"] == "" {
		t.Errorf("expected an error for warna, got %v", fe)
	}
}

func TestSettingsService_RejectsBadValueAndKeepsOld(t *testing.T) {
	svc := service.NewSettingsService(memory.NewSettingsStore(schoolSettings))
	ctx := context.Background()

	_, err := svc.Put(ctx, map[string]string{"entry_time": "7 pagi", "timezone": "Mars/Olympus"})
	var fe types.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["entry_time"] == "" || fe["timezone"] == "" {
		t.Errorf("expected entry_time and timezone errors, got %v", fe)
	}

	kv, _ := svc.Get(ctx)
	if kv["entry_time"] != "07:00" {
		t.Errorf("rejected update must not be saved, got %q", kv["entry_time"])
	}
}

func TestSettingsService_RejectsNonFiniteGeofence(t *testing.T) {
	svc := service.NewSettingsService(memory.NewSettingsStore(schoolSettings))
	ctx := context.Background()

	_, err := svc.Put(ctx, map[string]string{"school_latitude": "NaN", "allowed_radius_meters": "Inf"})
	var fe types.FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if fe["school_latitude"] == "" || fe["allowed_radius_meters"] == "" {
		t.Errorf("expected school_latitude and allowed_radius_meters errors, got %v", fe)
	}

	parsed, err := svc.Parsed(ctx)
	if err != nil {
		t.Fatalf("Parsed: %v", err)
	}
	if got := parsed.Geofence.Reference.Latitude; got != -6.2 {
		t.Errorf("stored latitude changed to %v", got)
	}
}
