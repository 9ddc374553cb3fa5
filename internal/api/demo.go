package api

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"go.uber.org/zap"
)

// DemoClient подменяет весь бэкенд детерминированными фикстурами.
// Единственная точка демо-режима: выше клиента ветвления `if demo` нет.
type DemoClient struct {
	log *zap.Logger
	now func() time.Time

	mu           sync.Mutex
	allowConfirm bool
	sessions     map[string]int // session_id -> размер выборки
	pollCounts   map[string]int // session_id -> число опросов
}

func NewDemoClient(log *zap.Logger) *DemoClient {
	log.Info("демо-режим: все операции отвечают фикстурами")
	return &DemoClient{
		log:          log,
		now:          time.Now,
		allowConfirm: true,
		sessions:     make(map[string]int),
		pollCounts:   make(map[string]int),
	}
}

// delay имитирует сетевую задержку 500–800 мс с уважением к ctx.
func (d *DemoClient) delay(ctx context.Context) error {
	t := time.Duration(500+rand.Intn(301)) * time.Millisecond
	select {
	case <-ctx.Done():
		return netErr(ctx.Err())
	case <-time.After(t):
		return nil
	}
}

func newUUID() string {
	id, _ := uuid.NewV4()
	return id.String()
}

var demoSubjects = []struct {
	name  string
	total int
}{
	{"Математический анализ", 34},
	{"Программирование", 17},
	{"Физика", 18},
	{"Иностранный язык", 16},
}

var demoGroup = []models.GroupMember{
	{TgID: 100001, FIO: "Иванов Иван Иванович", AllowConfirm: true},
	{TgID: 100002, FIO: "Петров Пётр Петрович", AllowConfirm: true},
	{TgID: 100003, FIO: "Сидорова Анна Сергеевна", AllowConfirm: false},
	{TgID: 100004, FIO: "Кузнецова Мария Алексеевна", AllowConfirm: true},
}

func (d *DemoClient) AuthCheck(ctx context.Context) (*models.User, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	allow := d.allowConfirm
	d.mu.Unlock()
	return &models.User{
		FullName:     "Иванов Иван Иванович",
		Group:        "БИВТ-22-1",
		AllowConfirm: allow,
		AdminLevel:   0,
	}, nil
}

func (d *DemoClient) Login(ctx context.Context, login, password, userAgent string) (*LoginResult, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return &LoginResult{}, nil
}

func (d *DemoClient) SubmitEmailCode(ctx context.Context, code string) (*EmailCodeResult, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return &EmailCodeResult{Success: true}, nil
}

func (d *DemoClient) UpdateAllowConfirm(ctx context.Context, allow bool) error {
	if err := d.delay(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	d.allowConfirm = allow
	d.mu.Unlock()
	return nil
}

func (d *DemoClient) DeleteAccount(ctx context.Context) error {
	return d.delay(ctx)
}

func (d *DemoClient) GroupUsers(ctx context.Context) ([]models.GroupMember, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	out := make([]models.GroupMember, len(demoGroup))
	copy(out, demoGroup)
	return out, nil
}

func (d *DemoClient) OtherGroupUsers(ctx context.Context, groupName string) ([]models.GroupMember, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	// чужая группа приходит с редактированными ФИО
	return []models.GroupMember{
		{TgID: 200001, FIO: "С****в А.А.", AllowConfirm: true, Group: groupName},
		{TgID: 200002, FIO: "М****а Е.В.", AllowConfirm: true, Group: groupName},
	}, nil
}

func (d *DemoClient) AvailableGroups(ctx context.Context) ([]string, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return []string{"БИВТ-22-1", "БИВТ-22-2", "БПМ-22-1"}, nil
}

func (d *DemoClient) SendApprove(ctx context.Context, qrURL string) (*ApproveResult, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	if qrURL == "" {
		return nil, ErrQRExpired
	}
	return &ApproveResult{Group: "БИВТ-22-1", Strok: "12"}, nil
}

func (d *DemoClient) StartMassMarking(ctx context.Context, selected []int64, qrURL string) (string, error) {
	if err := d.delay(ctx); err != nil {
		return "", err
	}
	id := newUUID()
	d.mu.Lock()
	d.sessions[id] = len(selected)
	d.mu.Unlock()
	return id, nil
}

// MarkingStatus завершает демо-сессию на третьем опросе.
func (d *DemoClient) MarkingStatus(ctx context.Context, sessionID string) (*MarkingSession, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	total, ok := d.sessions[sessionID]
	if !ok {
		return nil, &Error{Kind: KindUnknown, Message: "неизвестная сессия"}
	}
	d.pollCounts[sessionID]++
	st := &MarkingSession{SessionID: sessionID, Total: total}
	if n := d.pollCounts[sessionID]; n >= 3 {
		st.Status = MarkingCompleted
		st.Marked = total
	} else {
		st.Status = MarkingRunning
		st.Marked = n * total / 3
	}
	return st, nil
}

func (d *DemoClient) ContinueMarking(ctx context.Context, sessionID, qrURL string) error {
	return d.delay(ctx)
}

func (d *DemoClient) Schedule(ctx context.Context, year, month, day int) ([]models.Lesson, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Weekday() == time.Sunday {
		return nil, nil
	}
	return []models.Lesson{
		{UUID: newUUID(), Date: date, Time: "09:00 - 10:35", Subject: demoSubjects[0].name, Type: models.TypeLecture, Teacher: "Смирнов В.П.", Room: "Б-636", Building: "Горный", Status: models.StatusPresent},
		{UUID: newUUID(), Date: date, Time: "10:50 - 12:25", Subject: demoSubjects[1].name, Type: models.TypePractice, Teacher: "Орлова Н.К.", Room: "Л-557", Building: "Ленинский"},
		{UUID: newUUID(), Date: date, Time: "12:40 - 14:15", Subject: demoSubjects[2].name, Type: models.TypeLab, Teacher: "Гусев Д.А.", Room: "Г-210", Building: "Горный"},
	}, nil
}

func (d *DemoClient) LessonAttendance(ctx context.Context, req LessonAttendanceRequest) (*LessonAttendance, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	total := 17
	for _, s := range demoSubjects {
		if s.name == req.Subject {
			total = s.total
		}
	}
	return &LessonAttendance{
		Students: []AttendanceEntry{
			{FIO: "Иванов Иван Иванович", Status: models.StatusPresent},
			{FIO: "Петров Пётр Петрович", Status: models.StatusAbsent},
			{FIO: "Сидорова Анна Сергеевна", Status: models.StatusExcused},
		},
		TotalLessons: total,
	}, nil
}

func (d *DemoClient) LessonsCalendar(ctx context.Context, startTs, endTs int64) (Calendar, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	if startTs == 0 {
		startTs = d.now().AddDate(0, 0, -60).Unix()
	}
	if endTs == 0 {
		endTs = d.now().AddDate(0, 0, 90).Unix()
	}
	cal := Calendar{}
	for ts := startTs; ts <= endTs; ts += 86400 {
		t := time.Unix(ts, 0)
		if t.Weekday() == time.Sunday {
			continue
		}
		y := fmt.Sprintf("%04d", t.Year())
		m := fmt.Sprintf("%02d", int(t.Month()))
		dd := fmt.Sprintf("%02d", t.Day())
		if cal[y] == nil {
			cal[y] = map[string]map[string]int{}
		}
		if cal[y][m] == nil {
			cal[y][m] = map[string]int{}
		}
		cal[y][m][dd] = 2 + int(t.Weekday())%3
	}
	return cal, nil
}

func (d *DemoClient) LessonsCost(ctx context.Context) (map[string]int, bool, error) {
	if err := d.delay(ctx); err != nil {
		return nil, false, err
	}
	out := make(map[string]int, len(demoSubjects))
	for _, s := range demoSubjects {
		out[s.name] = s.total
	}
	return out, true, nil
}

func (d *DemoClient) UniversityStatus(ctx context.Context) (*models.UniversityStatus, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	return &models.UniversityStatus{
		InsideBuilding: true,
		LastEventTime:  d.now().Add(-90 * time.Minute).Format("15:04"),
		Events: []models.PassEvent{
			{EventUUID: newUUID(), Time: "08:52", AccessPointFrom: models.UncontrolledZone, AccessPointTo: "Турникет Г-1"},
			{EventUUID: newUUID(), Time: "14:10", AccessPointFrom: "Турникет Г-1", AccessPointTo: models.UncontrolledZone},
			{EventUUID: newUUID(), Time: "14:35", AccessPointFrom: models.UncontrolledZone, AccessPointTo: "Турникет Л-2"},
		},
	}, nil
}

func (d *DemoClient) GroupUniversityStatus(ctx context.Context) (*models.GroupStatusReport, error) {
	if err := d.delay(ctx); err != nil {
		return nil, err
	}
	report := &models.GroupStatusReport{
		Students: []models.MemberStatus{
			{FIO: "Иванов Иван Иванович", InsideBuilding: true, LastEventTime: "08:52"},
			{FIO: "Петров Пётр Петрович", InsideBuilding: false, LastEventTime: "13:20"},
			{FIO: "Сидорова Анна Сергеевна", NotActivated: true},
			{FIO: "Кузнецова Мария Алексеевна", Needs2FA: true},
		},
	}
	report.Recount()
	return report, nil
}

var _ Client = (*DemoClient)(nil)
