package models

import "testing"

func TestStatusUnsetPredicates(t *testing.T) {
	regCases := []struct {
		status RegistrationStatus
		unset  bool
	}{
		{RegistrationStatusUnset, true},
		{RegistrationStatusUnregistered, true},
		{RegistrationStatusRegistered, false},
		{RegistrationStatusSyncFailed, false},
	}
	for _, tc := range regCases {
		if got := tc.status.IsUnset(); got != tc.unset {
			t.Fatalf("RegistrationStatus(%q).IsUnset() expected %v, got %v", tc.status, tc.unset, got)
		}
	}

	setCases := []struct {
		status SettlementStatus
		unset  bool
	}{
		{SettlementStatusUnset, true},
		{SettlementStatusUnsettled, true},
		{SettlementStatusSettled, false},
	}
	for _, tc := range setCases {
		if got := tc.status.IsUnset(); got != tc.unset {
			t.Fatalf("SettlementStatus(%q).IsUnset() expected %v, got %v", tc.status, tc.unset, got)
		}
	}

	trCases := []struct {
		status TransferStatus
		unset  bool
	}{
		{TransferStatusUnset, true},
		{TransferStatusPending, true},
		{TransferStatusTransferred, false},
	}
	for _, tc := range trCases {
		if got := tc.status.IsUnset(); got != tc.unset {
			t.Fatalf("TransferStatus(%q).IsUnset() expected %v, got %v", tc.status, tc.unset, got)
		}
	}
}
