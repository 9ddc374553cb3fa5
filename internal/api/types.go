package api

import "github.com/lavka-enjoyer/lavka-attendance/internal/models"

// LoginResult — исход попытки логина: успех либо запрос кода с почты.
type LoginResult struct {
	RequiresEmailCode bool
	Message           string
}

// EmailCodeResult — исход отправки кода: успех либо повторный запрос.
type EmailCodeResult struct {
	Success  bool
	Reprompt string
}

// ApproveResult — ответ на одиночную отметку по QR.
type ApproveResult struct {
	Group string
	Strok string
}

// MarkingSession — состояние сессии групповой отметки (poll target).
type MarkingSession struct {
	SessionID string
	Status    string // running|awaiting_qr|completed|error
	Message   string
	Marked    int
	Total     int
}

const (
	MarkingRunning    = "running"
	MarkingAwaitingQR = "awaiting_qr"
	MarkingCompleted  = "completed"
	MarkingError      = "error"
)

// Terminal — сессия закончена и поллинг можно останавливать.
func (s *MarkingSession) Terminal() bool {
	return s.Status == MarkingCompleted || s.Status == MarkingError
}

// LessonAttendanceRequest — адресный запрос посещаемости занятия.
type LessonAttendanceRequest struct {
	Date       string
	StartTime  string
	Type       string
	Subject    string
	IndexInDay int
}

// LessonAttendance — список студентов занятия и общее число пар предмета.
type LessonAttendance struct {
	Students     []AttendanceEntry
	TotalLessons int
}

type AttendanceEntry struct {
	FIO    string
	Status models.AttendanceStatus
}

// Calendar — разреженная карта год → месяц (две цифры) → день → число пар.
type Calendar map[string]map[string]map[string]int
