// Package schedule — кэши расписания: календарь занятости по дням и
// карта «предмет → пар в семестре». Оба живут сессию и не вытесняются.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/metrics"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"go.uber.org/zap"
)

const (
	// дефолтное окно календаря вокруг сегодня
	seedBackDays   = 60
	seedAheadDays  = 90
	extendDays     = 90
	edgeMarginDays = 30
	secondsPerDay  = 86400
)

type Cache struct {
	api api.Client
	log *zap.Logger
	now func() time.Time

	mu              sync.Mutex
	days            *gocache.Cache // "YYYY-MM-DD" -> int
	costs           *gocache.Cache // subject -> int
	startTs, endTs  int64          // загруженный диапазон календаря, unix
	calendarLoading bool

	// последний показанный день и вычисленная по нему «текущая пара»
	lastLessons []models.Lesson
	current     models.Lesson
	currentOK   bool
}

func New(client api.Client, log *zap.Logger) *Cache {
	return &Cache{
		api:   client,
		log:   log,
		now:   time.Now,
		days:  gocache.New(gocache.NoExpiration, 0),
		costs: gocache.New(gocache.NoExpiration, 0),
	}
}

// Seed наполняет оба кэша при первом заходе на экран расписания.
func (c *Cache) Seed(ctx context.Context) {
	c.SeedCosts(ctx)
	start := c.now().AddDate(0, 0, -seedBackDays).Unix()
	end := c.now().AddDate(0, 0, seedAheadDays).Unix()
	c.fetchCalendar(ctx, start, end)
}

// SeedCosts подтягивает карту стоимости пар (ошибки клиент глотает сам).
func (c *Cache) SeedCosts(ctx context.Context) {
	costs, _, err := c.api.LessonsCost(ctx)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.mergeCostsLocked(costs)
	c.mu.Unlock()
}

// EnsureCalendar лениво расширяет диапазон при листании недель.
// Пока идёт одно расширение, второе не ставится в очередь, а отбрасывается.
func (c *Cache) EnsureCalendar(ctx context.Context, weekStart time.Time) {
	ws := weekStart.Unix()

	c.mu.Lock()
	if c.startTs == 0 && c.endTs == 0 {
		c.mu.Unlock()
		c.Seed(ctx)
		return
	}
	if c.calendarLoading {
		c.mu.Unlock()
		return
	}
	var from, to int64
	switch {
	case ws < c.startTs+edgeMarginDays*secondsPerDay:
		from, to = c.startTs-extendDays*secondsPerDay, c.startTs
	case ws > c.endTs-edgeMarginDays*secondsPerDay:
		from, to = c.endTs, c.endTs+extendDays*secondsPerDay
	default:
		// неделя глубоко внутри диапазона — дотягивать нечего
		c.mu.Unlock()
		return
	}
	c.calendarLoading = true
	c.mu.Unlock()

	metrics.CalendarExtensions.Inc()
	c.fetchCalendar(ctx, from, to)
}

// fetchCalendar выполняет запрос и сливает результат. Диапазон растёт
// монотонно: старт не увеличивается, конец не уменьшается.
func (c *Cache) fetchCalendar(ctx context.Context, from, to int64) {
	c.mu.Lock()
	c.calendarLoading = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.calendarLoading = false
		c.mu.Unlock()
	}()

	cal, err := c.api.LessonsCalendar(ctx, from, to)
	if err != nil {
		c.log.Warn("не удалось расширить календарь", zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeCalendarLocked(cal)
	if c.startTs == 0 || from < c.startTs {
		c.startTs = from
	}
	if to > c.endTs {
		c.endTs = to
	}
}

// mergeCalendarLocked — неглубокое слияние по ключу дня; живое
// положительное значение нулём не затирается.
func (c *Cache) mergeCalendarLocked(cal api.Calendar) {
	for y, months := range cal {
		for m, daysOfMonth := range months {
			for d, count := range daysOfMonth {
				key := fmt.Sprintf("%s-%s-%s", y, m, d)
				if count <= 0 {
					if _, ok := c.days.Get(key); ok {
						continue
					}
				}
				c.days.Set(key, count, gocache.NoExpiration)
			}
		}
	}
}

func (c *Cache) mergeCostsLocked(costs map[string]int) {
	for subject, count := range costs {
		if count <= 0 {
			continue
		}
		c.costs.Set(subject, count, gocache.NoExpiration)
	}
}

// LessonCount — число пар в дне "YYYY-MM-DD"; 0 — день без занятий.
func (c *Cache) LessonCount(date string) int {
	if v, ok := c.days.Get(date); ok {
		return v.(int)
	}
	return 0
}

// LessonCost — цена пропуска одного занятия предмета.
func (c *Cache) LessonCost(subject string) (float64, bool) {
	v, ok := c.costs.Get(subject)
	if !ok {
		return 0, false
	}
	return models.PointsPerLesson(v.(int)), true
}

// LoadedRange — загруженный диапазон календаря (для отладки и тестов).
func (c *Cache) LoadedRange() (startTs, endTs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startTs, c.endTs
}

// FillMissingCosts адресно добирает total_lessons по предметам, которых
// нет в карте. Запросы идут строго последовательно, чтобы не устроить
// шторм на каждый показ экрана.
func (c *Cache) FillMissingCosts(ctx context.Context, lessons []models.Lesson) {
	seen := map[string]bool{}
	for i, l := range lessons {
		if l.Subject == "" || seen[l.Subject] {
			continue
		}
		seen[l.Subject] = true
		if _, ok := c.costs.Get(l.Subject); ok {
			continue
		}
		start, _, err := models.ParseLessonTime(l.Time)
		if err != nil {
			continue
		}
		att, err := c.api.LessonAttendance(ctx, api.LessonAttendanceRequest{
			Date:       l.Date,
			StartTime:  fmt.Sprintf("%02d:%02d", int(start.Hours()), int(start.Minutes())%60),
			Type:       string(l.Type),
			Subject:    l.Subject,
			IndexInDay: i,
		})
		if err != nil {
			c.log.Debug("добор стоимости не удался", zap.String("subject", l.Subject), zap.Error(err))
			continue
		}
		if att.TotalLessons > 0 {
			c.mu.Lock()
			c.mergeCostsLocked(map[string]int{l.Subject: att.TotalLessons})
			c.mu.Unlock()
		}
	}
}

// CurrentLesson находит идущую прямо сейчас пару.
func (c *Cache) CurrentLesson(lessons []models.Lesson) (models.Lesson, bool) {
	now := c.now()
	for _, l := range lessons {
		if l.IsCurrent(now) {
			return l, true
		}
	}
	return models.Lesson{}, false
}

// SetDayLessons запоминает загруженный день и пересчитывает «текущую пару».
func (c *Cache) SetDayLessons(lessons []models.Lesson) {
	c.mu.Lock()
	c.lastLessons = append(c.lastLessons[:0], lessons...)
	c.mu.Unlock()
	c.RecomputeCurrent()
}

// RecomputeCurrent пересчитывает «текущую пару» по последнему
// загруженному дню; дёргается поминутным тиком на экране расписания.
// Возвращает true, если пара сменилась.
func (c *Cache) RecomputeCurrent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.CurrentLesson(c.lastLessons)
	changed := ok != c.currentOK || cur.UUID != c.current.UUID
	c.current, c.currentOK = cur, ok
	if changed {
		c.log.Debug("текущая пара обновлена", zap.String("subject", cur.Subject), zap.Bool("active", ok))
	}
	return changed
}

// Current — занятие, идущее прямо сейчас (если есть).
func (c *Cache) Current() (models.Lesson, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.currentOK
}

// SetLocation переводит «сейчас» кэша в часовой пояс вуза.
func (c *Cache) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	base := c.now
	c.now = func() time.Time { return base().In(loc) }
}

// Flush сбрасывает оба кэша при teardown.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days.Flush()
	c.costs.Flush()
	c.startTs, c.endTs = 0, 0
	c.lastLessons = nil
	c.current, c.currentOK = models.Lesson{}, false
}
