// Package session — контроллер экранов. Владеет текущим экраном,
// записью пользователя и межэкранными полезными нагрузками; все
// переходы атомарны — событие дорабатывает до конца прежде, чем
// берётся следующее.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/bridge"
	"github.com/lavka-enjoyer/lavka-attendance/internal/marking"
	"github.com/lavka-enjoyer/lavka-attendance/internal/metrics"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"github.com/lavka-enjoyer/lavka-attendance/internal/observability"
	"github.com/lavka-enjoyer/lavka-attendance/internal/schedule"
	"github.com/lavka-enjoyer/lavka-attendance/internal/useragent"
	"go.uber.org/zap"
)

// Links — внешние ссылки для экранов: контакт поддержки на
// unauthorized, новостной канал и бот-компаньон для deep-link'ов.
type Links struct {
	SupportContact string
	NewsChannelURL string
	CompanionBot   string
}

// Snapshot — то, что видит view-слой. Читатели получают копию,
// писатель всегда один — контроллер.
type Snapshot struct {
	Screen              models.Screen
	User                *models.User
	ErrorMessage        string
	Notice              string
	SubscriptionOverlay bool
	SupportContact      string
	NewsChannelURL      string
	CompanionBot        string
}

type Controller struct {
	log    *zap.Logger
	api    api.Client
	bridge bridge.Bridge
	sched  *schedule.Cache

	links Links

	mu           sync.Mutex
	screen       models.Screen
	user         *models.User
	errMsg       string
	notice       string
	subscription bool
	coordinator  *marking.Coordinator
	payload      *marking.Payload
	userAgent    string // синтезируется один раз за сессию
	gen          int    // поколение; растёт при сбросе, поздние ответы отбрасываются
}

func New(client api.Client, br bridge.Bridge, sched *schedule.Cache, log *zap.Logger, links Links) *Controller {
	return &Controller{
		log:    log,
		api:    client,
		bridge: br,
		sched:  sched,
		links:  links,
		screen: models.ScreenLoading,
	}
}

// guard — страховка от «белого экрана»: паника любого обработчика
// уходит в Sentry, контроллер встаёт в error.
func (c *Controller) guard() {
	if r := recover(); r != nil {
		observability.CapturePanic(r)
		c.mu.Lock()
		c.setScreenLocked(models.ScreenError)
		c.errMsg = "Что-то пошло не так. Перезагрузите страницу."
		c.mu.Unlock()
		c.log.Error("паника в обработчике", zap.Any("panic", r))
	}
}

func (c *Controller) setScreenLocked(to models.Screen) {
	if c.screen == to {
		return
	}
	metrics.ObserveTransition(string(c.screen), string(to))
	c.log.Info("переход экрана", zap.String("from", string(c.screen)), zap.String("to", string(to)))
	c.screen = to
}

func (c *Controller) generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// stale — ответ пришёл после сброса контроллера и должен быть отброшен.
func (c *Controller) stale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

// Start выполняет authCheck и ставит стартовый экран. Вызывается один
// раз при монтировании и повторно при Retry.
func (c *Controller) Start(ctx context.Context) {
	defer c.guard()
	gen := c.generation()

	user, err := c.api.AuthCheck(ctx)
	if c.stale(gen) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.routeAuthErrorLocked(err)
		return
	}
	c.user = user
	c.setScreenLocked(models.ScreenMain)
}

func (c *Controller) routeAuthErrorLocked(err error) {
	switch api.KindOf(err) {
	case api.KindLoginRequired:
		c.setScreenLocked(models.ScreenLogin)
	case api.KindEmailCodeRequired:
		var ae *api.Error
		if errors.As(err, &ae) {
			c.notice = ae.Message
		}
		c.setScreenLocked(models.ScreenEmailCode)
	case api.KindAccessDenied:
		c.setScreenLocked(models.ScreenUnauthorized)
	case api.KindSubscriptionRequired:
		c.subscription = true
	default:
		var ae *api.Error
		if errors.As(err, &ae) {
			c.errMsg = ae.Message
		}
		c.setScreenLocked(models.ScreenError)
	}
}

// SubmitLogin — попытка логина с экрана login. Успех подтверждается
// повторным authCheck: цепочка await'ов явная, порядок гарантирован.
func (c *Controller) SubmitLogin(ctx context.Context, login, password string) {
	defer c.guard()
	if c.Screen() != models.ScreenLogin {
		return
	}
	gen := c.generation()

	res, err := c.api.Login(ctx, login, password, c.uaOnce())
	if c.stale(gen) {
		return
	}
	if err != nil {
		c.surfaceOrRoute(err)
		return
	}
	if res.RequiresEmailCode {
		c.mu.Lock()
		c.notice = res.Message
		c.setScreenLocked(models.ScreenEmailCode)
		c.mu.Unlock()
		return
	}

	user, err := c.api.AuthCheck(ctx)
	if c.stale(gen) {
		return
	}
	if err != nil {
		c.surfaceOrRoute(err)
		return
	}
	c.mu.Lock()
	c.user = user
	c.notice = ""
	c.setScreenLocked(models.ScreenMain)
	c.mu.Unlock()
}

// SubmitEmailCode — отправка кода второго фактора.
func (c *Controller) SubmitEmailCode(ctx context.Context, code string) {
	defer c.guard()
	if c.Screen() != models.ScreenEmailCode {
		return
	}
	gen := c.generation()

	res, err := c.api.SubmitEmailCode(ctx, code)
	if c.stale(gen) {
		return
	}
	if err != nil {
		c.surfaceOrRoute(err)
		return
	}
	if !res.Success {
		c.mu.Lock()
		c.notice = res.Reprompt
		c.mu.Unlock()
		return
	}

	user, err := c.api.AuthCheck(ctx)
	if c.stale(gen) {
		return
	}
	if err != nil {
		c.surfaceOrRoute(err)
		return
	}
	c.mu.Lock()
	c.user = user
	c.notice = ""
	c.setScreenLocked(models.ScreenMain)
	c.mu.Unlock()
}

// surfaceOrRoute — общий onApiError: сообщение бэкенда остаётся
// видимым на месте, маршрутизируемые виды дополнительно меняют экран.
func (c *Controller) surfaceOrRoute(err error) {
	var ae *api.Error
	if errors.As(err, &ae) && ae.Message != "" {
		c.mu.Lock()
		c.notice = ae.Message
		c.mu.Unlock()
	}
	c.RouteError(err)
}

// RouteError — хук для дочерних экранов: четыре маршрутизируемых вида
// переключают экран (или поднимают подписочный оверлей), остальные
// экран не трогают. Возвращает true, если ошибка обработана глобально.
func (c *Controller) RouteError(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch api.KindOf(err) {
	case api.KindSubscriptionRequired:
		c.subscription = true
		return true
	case api.KindLoginRequired:
		c.setScreenLocked(models.ScreenLogin)
		return true
	case api.KindEmailCodeRequired:
		c.setScreenLocked(models.ScreenEmailCode)
		return true
	case api.KindAccessDenied:
		c.setScreenLocked(models.ScreenUnauthorized)
		return true
	}
	return false
}

// Open — намерение пользователя с главного экрана.
func (c *Controller) Open(ctx context.Context, to models.Screen) {
	defer c.guard()
	c.mu.Lock()
	if c.screen != models.ScreenMain || !models.MainChildren[to] {
		c.mu.Unlock()
		return
	}
	if to == models.ScreenAdmin && !c.user.IsAdmin() {
		c.mu.Unlock()
		return
	}
	if to == models.ScreenMarkMultiple {
		group := ""
		if c.user != nil {
			group = c.user.Group
		}
		c.coordinator = marking.NewCoordinator(c.api, c.bridge, c.log.Named("marking"), group)
	}
	c.setScreenLocked(to)
	c.mu.Unlock()

	switch to {
	case models.ScreenMarkMultiple:
		if err := c.Coordinator().LoadOwnGroup(ctx); err != nil {
			c.surfaceOrRoute(err)
		}
	case models.ScreenSchedule, models.ScreenPoints:
		c.sched.Seed(ctx)
	}
}

// StartScan запускает сканирование из markMultiple. confirmed — ответ
// пользователя на предупреждение о смешанных группах, если оно было.
func (c *Controller) StartScan(ctx context.Context, confirmed bool) error {
	defer c.guard()
	coord := c.Coordinator()
	if coord == nil || c.Screen() != models.ScreenMarkMultiple {
		return nil
	}
	gen := c.generation()

	payload, err := coord.BeginScan(ctx, confirmed)
	if err != nil {
		return err
	}
	if c.stale(gen) {
		return nil
	}
	c.mu.Lock()
	c.payload = payload
	c.setScreenLocked(models.ScreenMarking)
	c.mu.Unlock()
	return nil
}

// LoadDay загружает расписание дня для экрана schedule: обновляет
// «текущую пару» и адресно добирает стоимость новых предметов.
func (c *Controller) LoadDay(ctx context.Context, year, month, day int) ([]models.Lesson, error) {
	defer c.guard()
	if c.Screen() != models.ScreenSchedule {
		return nil, nil
	}
	lessons, err := c.api.Schedule(ctx, year, month, day)
	if err != nil {
		c.surfaceOrRoute(err)
		return nil, err
	}
	c.sched.SetDayLessons(lessons)
	c.sched.FillMissingCosts(ctx, lessons)
	return lessons, nil
}

// SelfMark — одиночная отметка: скан QR и send_approve. Протухший QR
// и прочие ошибки показываются на месте, экран не меняется.
func (c *Controller) SelfMark(ctx context.Context) {
	defer c.guard()
	if c.Screen() != models.ScreenMain {
		return
	}
	gen := c.generation()

	text, err := c.bridge.ScanQR(ctx, "Наведите камеру на QR-код преподавателя")
	if err != nil || text == "" {
		return
	}
	_, err = marking.SelfMark(ctx, c.api, text)
	if c.stale(gen) {
		return
	}
	if err != nil {
		c.surfaceOrRoute(err)
		return
	}
	c.bridge.Haptic(bridge.HapticMedium)
	c.mu.Lock()
	c.notice = ""
	c.mu.Unlock()
}

// Back возвращает на главный экран с любого дочернего состояния.
func (c *Controller) Back() {
	defer c.guard()
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.screen {
	case models.ScreenLoading, models.ScreenMain:
		return
	case models.ScreenLogin, models.ScreenEmailCode, models.ScreenUnauthorized, models.ScreenError:
		// до авторизации возвращаться некуда
		return
	}
	// уход с экранов отметки сбрасывает дочернее состояние
	c.coordinator = nil
	c.payload = nil
	c.setScreenLocked(models.ScreenMain)
}

// Retry — «перезагрузка страницы» с экрана error: всё состояние
// сбрасывается, незавершённые запросы отбрасываются по поколению.
func (c *Controller) Retry(ctx context.Context) {
	defer c.guard()
	c.mu.Lock()
	if c.screen != models.ScreenError {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.user = nil
	c.errMsg = ""
	c.notice = ""
	c.subscription = false
	c.coordinator = nil
	c.payload = nil
	c.setScreenLocked(models.ScreenLoading)
	c.mu.Unlock()

	c.sched.Flush()
	c.Start(ctx)
}

// SetAllowConfirm переключает разрешение отмечать себя другими.
func (c *Controller) SetAllowConfirm(ctx context.Context, allow bool) {
	defer c.guard()
	gen := c.generation()
	if err := c.api.UpdateAllowConfirm(ctx, allow); err != nil {
		c.surfaceOrRoute(err)
		return
	}
	if c.stale(gen) {
		return
	}
	c.mu.Lock()
	if c.user != nil {
		c.user.AllowConfirm = allow
	}
	c.mu.Unlock()
}

// Logout сбрасывает сессию на экран логина без обращения к бэкенду:
// учётные данные живут на стороне прокси, локально чистим только состояние.
func (c *Controller) Logout() {
	defer c.guard()
	c.mu.Lock()
	c.gen++
	c.user = nil
	c.notice = ""
	c.coordinator = nil
	c.payload = nil
	c.setScreenLocked(models.ScreenLogin)
	c.mu.Unlock()
	c.sched.Flush()
}

// DeleteAccount удаляет аккаунт и сбрасывает сессию на экран логина.
func (c *Controller) DeleteAccount(ctx context.Context) {
	defer c.guard()
	if err := c.api.DeleteAccount(ctx); err != nil {
		c.surfaceOrRoute(err)
		return
	}
	c.mu.Lock()
	c.gen++
	c.user = nil
	c.coordinator = nil
	c.payload = nil
	c.setScreenLocked(models.ScreenLogin)
	c.mu.Unlock()
	c.sched.Flush()
}

func (c *Controller) uaOnce() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userAgent == "" {
		c.userAgent = useragent.Synthesize("", nil)
	}
	return c.userAgent
}

func (c *Controller) Screen() models.Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

func (c *Controller) Coordinator() *marking.Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coordinator
}

// Payload — выбранные студенты и QR для экрана отметки.
func (c *Controller) Payload() *marking.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload
}

// Snapshot — копия состояния для view-слоя.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		Screen:              c.screen,
		ErrorMessage:        c.errMsg,
		Notice:              c.notice,
		SubscriptionOverlay: c.subscription,
		SupportContact:      c.links.SupportContact,
		NewsChannelURL:      c.links.NewsChannelURL,
		CompanionBot:        c.links.CompanionBot,
	}
	if c.user != nil {
		u := *c.user
		snap.User = &u
	}
	return snap
}
