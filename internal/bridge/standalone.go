package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// placeholderInitData отдаётся вне хост-рантайма (standalone/dev).
const placeholderInitData = "query_id=standalone&user=%7B%22id%22%3A0%7D"

// Standalone — реализация Bridge без хост-рантайма. Результаты
// сканирования подаются снаружи через PushScanResult (dev-консоль, тесты).
type Standalone struct {
	log      *zap.Logger
	warnOnce sync.Once

	mu        sync.Mutex
	initData  string
	theme     ThemeParams
	scanSubs  map[int64]chan string
	themeSubs map[int64]func(ThemeParams)
	vpSubs    map[int64]func()
	nextSub   int64
}

func NewStandalone(log *zap.Logger) *Standalone {
	return &Standalone{
		log:       log,
		theme:     DefaultTheme(),
		scanSubs:  make(map[int64]chan string),
		themeSubs: make(map[int64]func(ThemeParams)),
		vpSubs:    make(map[int64]func()),
	}
}

// SetInitData подменяет initData (dev-режим с реальным блобом из env).
func (s *Standalone) SetInitData(v string) {
	s.mu.Lock()
	s.initData = v
	s.mu.Unlock()
}

func (s *Standalone) InitData() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initData != "" {
		return s.initData
	}
	s.warnOnce.Do(func() {
		s.log.Warn("хост-рантайм недоступен, используется placeholder initData")
	})
	return placeholderInitData
}

func (s *Standalone) ThemeParams() ThemeParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// ScanQR ждёт PushScanResult либо отмену ctx. Слушатель снимается
// на любом исходе (см. ActiveScanListeners).
func (s *Standalone) ScanQR(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan string, 1)
	s.scanSubs[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.scanSubs, id)
		s.mu.Unlock()
	}()

	s.log.Debug("открыт QR-попап", zap.String("prompt", prompt))
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text := <-ch:
		return text, nil
	}
}

// PushScanResult доставляет результат сканирования первому ожидающему.
// Пустая строка означает отмену попапа.
func (s *Standalone) PushScanResult(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.scanSubs {
		select {
		case ch <- text:
		default:
		}
		delete(s.scanSubs, id)
		return
	}
}

// ActiveScanListeners — число живых подписок на попап сканера.
// После завершения любого скана должно быть ноль.
func (s *Standalone) ActiveScanListeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scanSubs)
}

func (s *Standalone) Haptic(style HapticStyle) {
	// без хоста — no-op
	s.log.Debug("haptic", zap.String("style", string(style)))
}

func (s *Standalone) OnThemeChanged(fn func(ThemeParams)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.themeSubs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.themeSubs, id)
		s.mu.Unlock()
	}
}

func (s *Standalone) OnViewportChanged(fn func()) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.vpSubs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.vpSubs, id)
		s.mu.Unlock()
	}
}

// SetTheme применяет новую тему и рассылает подписчикам.
func (s *Standalone) SetTheme(t ThemeParams) {
	s.mu.Lock()
	s.theme = t
	subs := make([]func(ThemeParams), 0, len(s.themeSubs))
	for _, fn := range s.themeSubs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(t)
	}
}
