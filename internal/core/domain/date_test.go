package domain

import "testing"

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2024-02-30"); err == nil {
		t.Error("expected error for impossible date")
	}
	if _, err := ParseDate("01/02/2024"); err == nil {
		t.Error("expected error for wrong layout")
	}
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("leap day rejected: %v", err)
	}
	if d.Next() != Date("2024-03-01") {
		t.Errorf("expected 2024-03-01 after leap day, got %s", d.Next())
	}
}

func TestDateRange(t *testing.T) {
	r, err := NewDateRange("2024-01-01", "2024-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if r.Days() != 10 {
		t.Errorf("expected 10 days, got %d", r.Days())
	}
	dates := r.Dates()
	if len(dates) != 10 || dates[0] != "2024-01-01" || dates[9] != "2024-01-10" {
		t.Errorf("unexpected enumeration: %v", dates)
	}
	if !r.Contains("2024-01-05") || r.Contains("2024-01-11") {
		t.Error("Contains misbehaving")
	}

	if _, err := NewDateRange("2024-01-10", "2024-01-01"); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestDateOrdering(t *testing.T) {
	// Lexicographic order must match chronological order.
	a, b := Date("2023-12-31"), Date("2024-01-01")
	if !a.Before(b) || b.Before(a) {
		t.Error("year boundary ordering broken")
	}
	if b.AddDays(-1) != a {
		t.Errorf("AddDays(-1) = %s, want %s", b.AddDays(-1), a)
	}
}
