package models

import (
	"testing"
	"time"
)

func TestEventTitleFormat(t *testing.T) {
	at := time.Date(2025, 11, 3, 19, 0, 0, 0, time.UTC)
	title := EventTitle(at, "Choir Practice")
	if title != "251103 1900 Choir Practice" {
		t.Errorf("title = %q", title)
	}
}

func TestTitleTime(t *testing.T) {
	e := &Event{Title: "251103 1900 Choir Practice"}
	got, ok := e.TitleTime()
	if !ok {
		t.Fatal("expected parseable title")
	}
	want := time.Date(2025, 11, 3, 19, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("time = %v, want %v", got, want)
	}

	for _, title := range []string{"Choir Practice", "25-11-03 Choir", "", "251103"} {
		e := &Event{Title: title}
		if _, ok := e.TitleTime(); ok {
			t.Errorf("title %q should not parse", title)
		}
	}
}

func TestWithinLookback(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)

	in := &Event{Title: "251103 1900 Choir"}
	if !in.WithinLookback(now, 30) {
		t.Error("event 7 days old should be inside a 30-day window")
	}

	out := &Event{Title: "250801 1900 Choir"}
	if out.WithinLookback(now, 30) {
		t.Error("event 3 months old should be outside a 30-day window")
	}

	// Unparseable titles never fall in the window; the reconciler must not
	// flag events it cannot date.
	odd := &Event{Title: "Anniversary Dinner"}
	if odd.WithinLookback(now, 30) {
		t.Error("unparseable title should be outside any window")
	}
}

func TestAttendanceStateValid(t *testing.T) {
	if !StatePresent.Valid() || !StateAbsent.Valid() {
		t.Error("known states should be valid")
	}
	if AttendanceState("LATE").Valid() {
		t.Error("unknown state should be invalid")
	}
}

func TestDisplayName(t *testing.T) {
	a := &Attendee{FullName: "Ada Lovelace", ShortName: "Ada"}
	if a.DisplayName() != "Ada" {
		t.Errorf("display = %q, want short name", a.DisplayName())
	}
	a.ShortName = ""
	if a.DisplayName() != "Ada Lovelace" {
		t.Errorf("display = %q, want full name", a.DisplayName())
	}
}
