package bridge

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestScanListenersDetachedOnAllPaths(t *testing.T) {
	s := NewStandalone(zap.NewNop())

	// путь 1: результат
	done := make(chan string, 1)
	go func() {
		text, _ := s.ScanQR(context.Background(), "наведите камеру")
		done <- text
	}()
	waitFor(t, func() bool { return s.ActiveScanListeners() == 1 })
	s.PushScanResult("payload")
	if got := <-done; got != "payload" {
		t.Fatalf("результат скана: %q", got)
	}
	if s.ActiveScanListeners() != 0 {
		t.Fatal("слушатель не снят после результата")
	}

	// путь 2: отмена контекста (unmount экрана)
	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := s.ScanQR(ctx, "наведите камеру")
		errs <- err
	}()
	waitFor(t, func() bool { return s.ActiveScanListeners() == 1 })
	cancel()
	if err := <-errs; err == nil {
		t.Fatal("ожидали ошибку отмены")
	}
	if s.ActiveScanListeners() != 0 {
		t.Fatal("слушатель не снят после отмены")
	}
}

func TestDefaultThemeFallbacks(t *testing.T) {
	s := NewStandalone(zap.NewNop())
	th := s.ThemeParams()
	if th.BG != "#ffffff" || th.Button != "#2481cc" || th.DestructiveText != "#ff3b30" {
		t.Fatalf("дефолтная тема: %+v", th)
	}
}

func TestThemeSubscription(t *testing.T) {
	s := NewStandalone(zap.NewNop())

	got := make(chan ThemeParams, 1)
	unsub := s.OnThemeChanged(func(p ThemeParams) { got <- p })

	dark := DefaultTheme()
	dark.BG = "#1c1c1e"
	s.SetTheme(dark)
	if p := <-got; p.BG != "#1c1c1e" {
		t.Fatalf("тема не доехала: %+v", p)
	}

	unsub()
	s.SetTheme(DefaultTheme())
	select {
	case <-got:
		t.Fatal("после отписки колбэк не должен звать")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPlaceholderInitDataWarnsOnce(t *testing.T) {
	s := NewStandalone(zap.NewNop())
	if s.InitData() == "" {
		t.Fatal("placeholder должен быть непустым")
	}
	s.SetInitData("real-blob")
	if s.InitData() != "real-blob" {
		t.Fatal("подменённый initData должен возвращаться как есть")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("условие не наступило")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
