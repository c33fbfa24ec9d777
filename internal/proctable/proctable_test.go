package proctable

import (
	"os"
	"testing"
	"time"
)

func TestAlive_Self(t *testing.T) {
	var pt ProcTable

	alive, err := pt.Alive(os.Getpid())
	if err != nil {
		t.Fatalf("Alive(self) error = %v", err)
	}
	if !alive {
		t.Error("Alive(self) = false, want true")
	}
}

func TestAlive_InvalidPid(t *testing.T) {
	var pt ProcTable

	if _, err := pt.Alive(0); err == nil {
		t.Error("Alive(0) error = nil, want error")
	}
	if _, err := pt.Alive(-5); err == nil {
		t.Error("Alive(-5) error = nil, want error")
	}
}

func TestStartTime_Self(t *testing.T) {
	var pt ProcTable

	start, err := pt.StartTime(os.Getpid())
	if err != nil {
		t.Fatalf("StartTime(self) error = %v", err)
	}
	if start.IsZero() {
		t.Fatal("StartTime(self) is zero")
	}
	if start.After(time.Now()) {
		t.Errorf("StartTime(self) = %v, in the future", start)
	}
	if time.Since(start) > 365*24*time.Hour {
		t.Errorf("StartTime(self) = %v, implausibly old", start)
	}
}

func TestStartTime_NoSuchPid(t *testing.T) {
	var pt ProcTable

	// Pid well above any default pid_max.
	if _, err := pt.StartTime(1 << 30); err == nil {
		t.Error("StartTime(huge pid) error = nil, want error")
	}
}
