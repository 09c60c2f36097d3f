package models

import (
	"errors"
	"strings"
	"testing"
)

func TestReconcileUnits(t *testing.T) {
	t.Run("exact match passes and trims", func(t *testing.T) {
		got, err := reconcileUnits(3, true, []string{" 860000000000001 ", "860000000000002", "860000000000003"})
		if err != nil {
			t.Fatalf("reconcileUnits: %v", err)
		}
		if got[0] != "860000000000001" {
			t.Fatalf("expected trimmed identifier, got %q", got[0])
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 identifiers, got %d", len(got))
		}
	})

	t.Run("too few identifiers", func(t *testing.T) {
		_, err := reconcileUnits(3, true, []string{"860000000000001", "860000000000002"})
		if !errors.Is(err, ErrorQuantityMismatch) {
			t.Fatalf("expected ErrorQuantityMismatch, got %v", err)
		}
	})

	t.Run("too many identifiers", func(t *testing.T) {
		_, err := reconcileUnits(1, true, []string{"860000000000001", "860000000000002"})
		if !errors.Is(err, ErrorQuantityMismatch) {
			t.Fatalf("expected ErrorQuantityMismatch, got %v", err)
		}
	})

	t.Run("duplicate after trimming", func(t *testing.T) {
		_, err := reconcileUnits(2, true, []string{"860000000000001", " 860000000000001"})
		if !errors.Is(err, ErrorDuplicateUnitIdentifier) {
			t.Fatalf("expected ErrorDuplicateUnitIdentifier, got %v", err)
		}
		if !strings.Contains(err.Error(), "860000000000001") {
			t.Fatalf("error must name the offending identifier, got %q", err.Error())
		}
	})

	t.Run("blank identifier", func(t *testing.T) {
		_, err := reconcileUnits(2, true, []string{"860000000000001", "   "})
		if err == nil {
			t.Fatalf("expected error for blank identifier")
		}
	})

	t.Run("non positive quantity", func(t *testing.T) {
		if _, err := reconcileUnits(0, true, nil); err == nil {
			t.Fatalf("expected error for zero declared quantity")
		}
	})

	t.Run("aggregate tracked batch skips unit checks", func(t *testing.T) {
		got, err := reconcileUnits(40, false, nil)
		if err != nil {
			t.Fatalf("reconcileUnits: %v", err)
		}
		if got != nil {
			t.Fatalf("expected no units for an aggregate tracked batch, got %v", got)
		}
		if _, err := reconcileUnits(0, false, nil); err != nil {
			t.Fatalf("zero quantity is fine when units are not tracked: %v", err)
		}
	})
}

func TestDeviceUnitStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to DeviceUnitStatus }{
		{DeviceUnitStatusAvailable, DeviceUnitStatusIssued},
		{DeviceUnitStatusAvailable, DeviceUnitStatusActive},
		{DeviceUnitStatusIssued, DeviceUnitStatusActive},
		{DeviceUnitStatusIssued, DeviceUnitStatusReturned},
		{DeviceUnitStatusActive, DeviceUnitStatusInactive},
		{DeviceUnitStatusDamaged, DeviceUnitStatusReturned},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to DeviceUnitStatus }{
		{DeviceUnitStatusReturned, DeviceUnitStatusAvailable},
		{DeviceUnitStatusInactive, DeviceUnitStatusActive},
		{DeviceUnitStatusDamaged, DeviceUnitStatusActive},
		{DeviceUnitStatusActive, DeviceUnitStatusAvailable},
		{DeviceUnitStatusAvailable, DeviceUnitStatusInactive},
	}
	for _, tc := range forbidden {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}

	// Self transitions are no-ops and rejected.
	for _, s := range []DeviceUnitStatus{DeviceUnitStatusAvailable, DeviceUnitStatusActive, DeviceUnitStatusReturned} {
		if s.CanTransitionTo(s) {
			t.Errorf("expected %s -> %s to be rejected", s, s)
		}
	}
}
