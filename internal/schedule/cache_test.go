package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"go.uber.org/zap"
)

// fakeAPI реализует только нужные кэшу операции.
type fakeAPI struct {
	api.Client

	mu            sync.Mutex
	calendarCalls []extCall
	calendar      api.Calendar
	calendarErr   error
	costs         map[string]int
	attendance    map[string]int // subject -> total_lessons
	attCalls      []string
}

type extCall struct{ from, to int64 }

func (f *fakeAPI) LessonsCalendar(ctx context.Context, from, to int64) (api.Calendar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calendarCalls = append(f.calendarCalls, extCall{from, to})
	if f.calendarErr != nil {
		return nil, f.calendarErr
	}
	if f.calendar == nil {
		return api.Calendar{}, nil
	}
	return f.calendar, nil
}

func (f *fakeAPI) LessonsCost(ctx context.Context) (map[string]int, bool, error) {
	if f.costs == nil {
		return map[string]int{}, false, nil
	}
	return f.costs, true, nil
}

func (f *fakeAPI) LessonAttendance(ctx context.Context, req api.LessonAttendanceRequest) (*api.LessonAttendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attCalls = append(f.attCalls, req.Subject)
	return &api.LessonAttendance{TotalLessons: f.attendance[req.Subject]}, nil
}

func newTestCache(f *fakeAPI) *Cache {
	c := New(f, zap.NewNop())
	return c
}

func TestSeedAndExtensionWindow(t *testing.T) {
	f := &fakeAPI{}
	c := newTestCache(f)
	ctx := context.Background()

	c.Seed(ctx)
	start0, end0 := c.LoadedRange()
	if start0 == 0 || end0 == 0 || len(f.calendarCalls) != 1 {
		t.Fatalf("после Seed ожидали один запрос и непустой диапазон: %v [%d, %d]", f.calendarCalls, start0, end0)
	}

	// неделя глубоко внутри диапазона — запроса нет
	c.EnsureCalendar(ctx, time.Now().AddDate(0, 0, 7))
	if len(f.calendarCalls) != 1 {
		t.Fatalf("внутри диапазона дотягивать нечего, calls=%d", len(f.calendarCalls))
	}

	// +10 недель — упираемся в правый край, одно расширение на 90 дней
	c.EnsureCalendar(ctx, time.Now().AddDate(0, 0, 70))
	if len(f.calendarCalls) != 2 {
		t.Fatalf("ожидали ровно одно расширение, calls=%d", len(f.calendarCalls))
	}
	ext := f.calendarCalls[1]
	if ext.from != end0 || ext.to != end0+90*86400 {
		t.Fatalf("расширение должно идти от старого конца: [%d, %d], end0=%d", ext.from, ext.to, end0)
	}

	// диапазон растёт монотонно
	start1, end1 := c.LoadedRange()
	if start1 > start0 || end1 < end0 {
		t.Fatalf("диапазон сжался: [%d,%d] -> [%d,%d]", start0, end0, start1, end1)
	}

	// та же неделя в новом диапазоне — больше запросов нет
	c.EnsureCalendar(ctx, time.Now().AddDate(0, 0, 77))
	if len(f.calendarCalls) != 2 {
		t.Fatalf("повторное расширение не требуется, calls=%d", len(f.calendarCalls))
	}
}

func TestFailedSeedDoesNotAdvanceRange(t *testing.T) {
	f := &fakeAPI{calendarErr: errors.New("timeout")}
	c := newTestCache(f)
	ctx := context.Background()

	// неудачный запрос не должен пометить окно как загруженное
	c.Seed(ctx)
	if s, e := c.LoadedRange(); s != 0 || e != 0 {
		t.Fatalf("диапазон после неудачи должен остаться пустым: [%d, %d]", s, e)
	}

	// бэкенд ожил — следующий заход дотягивает календарь заново
	f.mu.Lock()
	f.calendarErr = nil
	f.calendar = api.Calendar{"2026": {"03": {"10": 3}}}
	f.mu.Unlock()

	c.EnsureCalendar(ctx, time.Now())
	if s, e := c.LoadedRange(); s == 0 || e == 0 {
		t.Fatal("после восстановления диапазон должен заполниться")
	}
	if got := c.LessonCount("2026-03-10"); got != 3 {
		t.Fatalf("LessonCount = %d", got)
	}
	if len(f.calendarCalls) != 2 {
		t.Fatalf("ожидали повторный запрос после восстановления, calls=%d", len(f.calendarCalls))
	}
}

func TestCalendarMergeKeepsPositive(t *testing.T) {
	f := &fakeAPI{calendar: api.Calendar{
		"2026": {"03": {"10": 3}},
	}}
	c := newTestCache(f)
	c.Seed(context.Background())
	if got := c.LessonCount("2026-03-10"); got != 3 {
		t.Fatalf("LessonCount = %d", got)
	}

	// нулевое значение не затирает живое
	c.mu.Lock()
	c.mergeCalendarLocked(api.Calendar{"2026": {"03": {"10": 0}}})
	c.mu.Unlock()
	if got := c.LessonCount("2026-03-10"); got != 3 {
		t.Fatalf("ноль затёр живое значение: %d", got)
	}
}

func TestLessonCost(t *testing.T) {
	f := &fakeAPI{costs: map[string]int{"Физика": 17}}
	c := newTestCache(f)
	c.SeedCosts(context.Background())

	cost, ok := c.LessonCost("Физика")
	if !ok || cost != 1.8 {
		t.Fatalf("стоимость пропуска физики: %v %v", cost, ok)
	}
	if _, ok := c.LessonCost("Неизвестный предмет"); ok {
		t.Fatal("неизвестного предмета нет в карте")
	}
}

func TestFillMissingCostsSerialAndTargeted(t *testing.T) {
	f := &fakeAPI{
		costs:      map[string]int{"Физика": 17},
		attendance: map[string]int{"История": 16},
	}
	c := newTestCache(f)
	c.SeedCosts(context.Background())

	lessons := []models.Lesson{
		{Subject: "Физика", Date: "2026-03-10", Time: "09:00 - 10:35", Type: models.TypeLecture},
		{Subject: "История", Date: "2026-03-10", Time: "10:50 - 12:25", Type: models.TypePractice},
		{Subject: "История", Date: "2026-03-10", Time: "12:40 - 14:15", Type: models.TypePractice},
	}
	c.FillMissingCosts(context.Background(), lessons)

	// физика уже в карте, история запрошена один раз
	if len(f.attCalls) != 1 || f.attCalls[0] != "История" {
		t.Fatalf("адресные вызовы: %v", f.attCalls)
	}
	cost, ok := c.LessonCost("История")
	if !ok || cost != 1.9 {
		t.Fatalf("стоимость истории: %v %v", cost, ok)
	}
}

func TestCurrentLesson(t *testing.T) {
	c := newTestCache(&fakeAPI{})
	c.now = func() time.Time { return time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC) }

	lessons := []models.Lesson{
		{Subject: "A", Date: "2026-03-10", Time: "09:00 - 10:35"},
		{Subject: "B", Date: "2026-03-10", Time: "10:50 - 12:25"},
	}
	cur, ok := c.CurrentLesson(lessons)
	if !ok || cur.Subject != "B" {
		t.Fatalf("текущая пара: %v %v", cur.Subject, ok)
	}
}

func TestRecomputeCurrentTracksTick(t *testing.T) {
	c := newTestCache(&fakeAPI{})
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.SetDayLessons([]models.Lesson{
		{UUID: "a", Subject: "A", Date: "2026-03-10", Time: "09:00 - 10:35"},
		{UUID: "b", Subject: "B", Date: "2026-03-10", Time: "10:50 - 12:25"},
	})
	cur, ok := c.Current()
	if !ok || cur.Subject != "A" {
		t.Fatalf("в 09:30 идёт первая пара: %v %v", cur.Subject, ok)
	}

	// тик после перемены — пара сменилась
	now = time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	if !c.RecomputeCurrent() {
		t.Fatal("смена пары должна фиксироваться")
	}
	cur, _ = c.Current()
	if cur.Subject != "B" {
		t.Fatalf("в 11:00 идёт вторая пара: %v", cur.Subject)
	}

	// после конца занятий текущей пары нет
	now = time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC)
	c.RecomputeCurrent()
	if _, ok := c.Current(); ok {
		t.Fatal("в 13:00 занятий нет")
	}
}

func TestSetLocationShiftsDay(t *testing.T) {
	c := newTestCache(&fakeAPI{})
	c.now = func() time.Time { return time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC) }
	c.SetLocation(time.FixedZone("MSK", 3*3600))

	// 21:30 UTC — это уже 00:30 следующего дня в поясе вуза
	lessons := []models.Lesson{{Subject: "A", Date: "2026-03-11", Time: "00:00 - 01:35"}}
	cur, ok := c.CurrentLesson(lessons)
	if !ok || cur.Subject != "A" {
		t.Fatalf("пара следующего дня по поясу вуза: %v %v", cur.Subject, ok)
	}
}

func TestFlushResetsRange(t *testing.T) {
	f := &fakeAPI{}
	c := newTestCache(f)
	c.Seed(context.Background())
	c.Flush()
	if s, e := c.LoadedRange(); s != 0 || e != 0 {
		t.Fatalf("после Flush диапазон должен обнулиться: [%d, %d]", s, e)
	}
}
