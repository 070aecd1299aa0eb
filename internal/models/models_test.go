package models

import (
	"encoding/json"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	v, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func TestDefaultEndTime(t *testing.T) {
	cases := []struct{ start, want string }{
		{"09:15:00", "10:15:00"},
		{"00:00:00", "01:00:00"},
		{"23:30:00", "00:30:00"}, // wraps, no date carry
	}
	for _, c := range cases {
		got := DefaultEndTime(mustTime(t, c.start))
		if got.String() != c.want {
			t.Errorf("DefaultEndTime(%s) = %s, want %s", c.start, got, c.want)
		}
	}
}

func TestNewOrderFillsEndTime(t *testing.T) {
	start := mustTime(t, "09:15:00")
	o := NewOrder("groceries", "2021-12-10", start, nil, 1, Coordinate{}, Coordinate{})
	if o.EndTime.String() != "10:15:00" {
		t.Fatalf("default end = %s, want 10:15:00", o.EndTime)
	}

	end := mustTime(t, "12:00:00")
	o = NewOrder("groceries", "2021-12-10", start, &end, 1, Coordinate{}, Coordinate{})
	if o.EndTime != end {
		t.Fatalf("explicit end = %s, want %s", o.EndTime, end)
	}
}

func TestOrderCoversInclusiveBounds(t *testing.T) {
	o := Order{StartTime: mustTime(t, "10:00:00"), EndTime: mustTime(t, "11:00:00")}
	for _, s := range []string{"10:00:00", "10:30:00", "11:00:00"} {
		if !o.Covers(mustTime(t, s)) {
			t.Errorf("window should cover %s", s)
		}
	}
	for _, s := range []string{"09:59:59", "11:00:01"} {
		if o.Covers(mustTime(t, s)) {
			t.Errorf("window should not cover %s", s)
		}
	}
}

func TestParseTimeOfDayRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "25:00:00", "10:62:00", "noon", "10:00"} {
		if _, err := ParseTimeOfDay(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestTimeOfDayScan(t *testing.T) {
	var v TimeOfDay
	if err := v.Scan([]byte("10:30:05")); err != nil || v.String() != "10:30:05" {
		t.Fatalf("scan bytes: %v %s", err, v)
	}
	if err := v.Scan("08:00:00.123456"); err != nil || v.String() != "08:00:00" {
		t.Fatalf("scan fractional: %v %s", err, v)
	}
	if err := v.Scan(time.Date(2021, 12, 10, 7, 45, 1, 0, time.UTC)); err != nil || v.String() != "07:45:01" {
		t.Fatalf("scan time.Time: %v %s", err, v)
	}
	if err := v.Scan(42); err == nil {
		t.Fatal("expected error scanning int")
	}
}

func TestFlexIntUnmarshal(t *testing.T) {
	var loc DriverLocation
	payload := `{"id": 7, "lat": "5", "lng": 9, "lastUpdate": "2021-12-10 00:00:00"}`
	if err := json.Unmarshal([]byte(payload), &loc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loc.Lat.Int() != 5 || loc.Lng.Int() != 9 {
		t.Fatalf("got lat=%d lng=%d", loc.Lat.Int(), loc.Lng.Int())
	}

	var f FlexInt
	if err := json.Unmarshal([]byte(`"3.9"`), &f); err != nil || f.Int() != 3 {
		t.Fatalf("float string should truncate: %v %d", err, f.Int())
	}
	if err := json.Unmarshal([]byte(`"north"`), &f); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}
