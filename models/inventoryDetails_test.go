package models

import (
	"testing"
	"time"
)

func TestExpiresInDays(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	in45 := now.Add(45 * 24 * time.Hour)
	ago := now.Add(-36 * time.Hour)

	if d := expiresInDays(nil, now); d != nil {
		t.Fatalf("no lots: %d", *d)
	}
	if d := expiresInDays([]*BatchLot{{}}, now); d != nil {
		t.Fatalf("no expiry: %d", *d)
	}
	if d := expiresInDays([]*BatchLot{{ExpiryDate: &in45}}, now); d == nil || *d != 45 {
		t.Fatalf("45 days: %v", d)
	}
	if d := expiresInDays([]*BatchLot{{ExpiryDate: &ago}}, now); d == nil || *d != -2 {
		t.Fatalf("expired: %v", d)
	}
}

func TestSoonToExpireUsesFirstLot(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	edge := now.Add(soonToExpireWindow)
	after := edge.Add(time.Hour)

	if !isSoonToExpire([]*BatchLot{{ExpiryDate: &edge}, {ExpiryDate: &after}}, now) {
		t.Fatalf("lot expiring exactly at 30 days counts as soon")
	}
	if isSoonToExpire([]*BatchLot{{ExpiryDate: &after}, {ExpiryDate: &edge}}, now) {
		t.Fatalf("only the first lot is considered")
	}
}
