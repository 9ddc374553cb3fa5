package models

import (
	"testing"
	"time"
)

func TestParseLessonTime(t *testing.T) {
	start, end, err := ParseLessonTime("09:00 - 10:35")
	if err != nil {
		t.Fatal(err)
	}
	if start != 9*time.Hour || end != 10*time.Hour+35*time.Minute {
		t.Fatalf("неверный разбор: %v %v", start, end)
	}

	for _, bad := range []string{"", "09:00", "10:00 - 09:00", "25:00 - 26:00", "aa:bb - cc:dd"} {
		if _, _, err := ParseLessonTime(bad); err == nil {
			t.Fatalf("ожидали ошибку для %q", bad)
		}
	}
}

func TestIsCurrent(t *testing.T) {
	l := Lesson{Date: "2026-03-10", Time: "09:00 - 10:35"}

	in := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	if !l.IsCurrent(in) {
		t.Fatal("занятие должно идти в 09:30")
	}
	before := time.Date(2026, 3, 10, 8, 59, 0, 0, time.UTC)
	if l.IsCurrent(before) {
		t.Fatal("занятие ещё не началось")
	}
	otherDay := time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)
	if l.IsCurrent(otherDay) {
		t.Fatal("другой календарный день")
	}
}

func TestPointsPerLesson(t *testing.T) {
	cases := []struct {
		total int
		want  float64
	}{
		{30, 1.0},
		{17, 1.8}, // 30/17 = 1.7647 → 1.8
		{34, 0.9},
		{16, 1.9},
		{0, 0},
	}
	for _, c := range cases {
		if got := PointsPerLesson(c.total); got != c.want {
			t.Fatalf("PointsPerLesson(%d) = %v, ожидали %v", c.total, got, c.want)
		}
	}
}

func TestNormalizeAttendance(t *testing.T) {
	cases := map[string]AttendanceStatus{
		"+":       StatusPresent,
		"present": StatusPresent,
		"Н":       StatusAbsent,
		"absent":  StatusAbsent,
		"У":       StatusExcused,
		"late":    StatusExcused,
		" У ":     StatusExcused,
	}
	for raw, want := range cases {
		got, ok := NormalizeAttendance(raw)
		if !ok || got != want {
			t.Fatalf("NormalizeAttendance(%q) = %q/%v", raw, got, ok)
		}
	}
	if _, ok := NormalizeAttendance("???"); ok {
		t.Fatal("мусор не должен нормализоваться")
	}
}
