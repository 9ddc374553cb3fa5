package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// LessonType — код вида занятия из расписания ЛК.
type LessonType string

const (
	TypeLecture      LessonType = "ЛК"
	TypePractice     LessonType = "ПР"
	TypeLab          LessonType = "ЛАБ"
	TypeExamShort    LessonType = "Э"
	TypeExam         LessonType = "ЭКЗ"
	TypeCredit       LessonType = "ЗАЧ"
	TypeCourseWork   LessonType = "КП"
	TypeConsultation LessonType = "Конс"
	TypeConsultUpper LessonType = "КОНС"
)

// AttendanceStatus — каноничные коды посещаемости.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "+"
	StatusAbsent  AttendanceStatus = "Н"
	StatusExcused AttendanceStatus = "У"
)

// NormalizeAttendance приводит оба словаря статусов к каноничному.
// Бэкенд и фикстуры исторически говорят на разных: "+/Н/У" и
// "present/absent/late". Нормализуем на границе API-клиента.
func NormalizeAttendance(raw string) (AttendanceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "+", "present":
		return StatusPresent, true
	case "н", "absent":
		return StatusAbsent, true
	case "у", "late", "excused":
		return StatusExcused, true
	}
	return "", false
}

// Lesson — занятие из расписания. Date в формате YYYY-MM-DD,
// Time в формате "HH:MM - HH:MM".
type Lesson struct {
	UUID     string
	Date     string
	Time     string
	Subject  string
	Type     LessonType
	Teacher  string
	Room     string
	Building string
	Status   AttendanceStatus
}

// ParseLessonTime разбирает "HH:MM - HH:MM" в пару моментов суток.
// Гарантия: start <= end, иначе ошибка.
func ParseLessonTime(s string) (start, end time.Duration, err error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad lesson time %q", s)
	}
	start, err = parseClock(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err = parseClock(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, fmt.Errorf("lesson time %q: start after end", s)
	}
	return start, end, nil
}

func parseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("bad clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// IsCurrent — идёт ли занятие прямо сейчас. Дата должна совпадать
// с календарным днём now, момент — попадать в [start, end].
func (l Lesson) IsCurrent(now time.Time) bool {
	if l.Date != now.Format("2006-01-02") {
		return false
	}
	start, end, err := ParseLessonTime(l.Time)
	if err != nil {
		return false
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(day)
	return elapsed >= start && elapsed <= end
}

// PointsPerLesson — цена пропуска одного занятия: 30 баллов семестра
// делим на число занятий предмета, округляем до одного знака.
func PointsPerLesson(totalLessons int) float64 {
	if totalLessons <= 0 {
		return 0
	}
	return math.Round(30.0/float64(totalLessons)*10) / 10
}
