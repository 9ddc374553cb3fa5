// Package bridge — тонкий адаптер над рантаймом мини-приложения.
// Хост поставляет initData, QR-сканер, хаптику и тему; при его
// отсутствии всё деградирует в standalone-режим без фатальных ошибок.
package bridge

import "context"

// HapticStyle — сила тактильного отклика.
type HapticStyle string

const (
	HapticLight  HapticStyle = "light"
	HapticMedium HapticStyle = "medium"
	HapticHeavy  HapticStyle = "heavy"
)

// ThemeParams — цвета хоста с дефолтами DefaultTheme.
type ThemeParams struct {
	BG              string
	Text            string
	Hint            string
	Button          string
	ButtonText      string
	SecondaryBG     string
	DestructiveText string
}

// DefaultTheme — фолбэк, когда хост не отдал тему.
func DefaultTheme() ThemeParams {
	return ThemeParams{
		BG:              "#ffffff",
		Text:            "#000000",
		Hint:            "#999999",
		Button:          "#2481cc",
		ButtonText:      "#ffffff",
		SecondaryBG:     "#f0f0f0",
		DestructiveText: "#ff3b30",
	}
}

// Bridge — контракт хост-рантайма.
//
// ScanQR блокируется до результата сканирования, отмены пользователем
// (пустая строка) или отмены ctx. Подписка на закрытие попапа снимается
// на всех путях выхода — накопление слушателей между сканированиями
// считается багом.
type Bridge interface {
	InitData() string
	ThemeParams() ThemeParams
	ScanQR(ctx context.Context, prompt string) (string, error)
	Haptic(style HapticStyle)
	OnThemeChanged(fn func(ThemeParams)) (unsubscribe func())
	OnViewportChanged(fn func()) (unsubscribe func())
}
