package api

import (
	"encoding/json"
	"errors"
	"strings"
)

// Kind — классификация ошибки бэкенда. Контроллер маршрутизирует
// экраны по первым четырём видам, остальные показываются на месте.
type Kind string

const (
	KindLoginRequired        Kind = "loginRequired"
	KindEmailCodeRequired    Kind = "emailCodeRequired"
	KindAccessDenied         Kind = "accessDenied"
	KindSubscriptionRequired Kind = "subscriptionRequired"
	KindNetworkError         Kind = "networkError"
	KindUnknown              Kind = "unknown"
)

type Error struct {
	Kind       Kind
	Message    string
	HTTPStatus int
}

func (e *Error) Error() string {
	if e.Message != "" {
		return string(e.Kind) + ": " + e.Message
	}
	return string(e.Kind)
}

// KindOf достаёт Kind из любой ошибки; всё прочее — unknown.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// ErrQRExpired — протухший QR-код при одиночной отметке.
// Экран не меняется, пользователю предлагается пересканировать.
var ErrQRExpired = &Error{
	Kind:    KindUnknown,
	Message: "Срок действия QR кода истек. Пожалуйста, отсканируйте снова.",
}

// Канонические фразы бэкенда. Матчатся без учёта регистра даже под
// HTTP 200 — сервер иногда отвечает успешным статусом с телом-ошибкой.
var phraseKinds = []struct {
	needle string
	kind   Kind
}{
	{"введите логин и пароль", KindLoginRequired},
	{"неверный логин или пароль", KindLoginRequired},
	{"доступ запрещен", KindAccessDenied},
	{"пользователь не существует", KindAccessDenied},
	{"срок действия qr кода истек", KindUnknown},
	{"прокси не хватает", KindSubscriptionRequired},
}

// messageFrom вытаскивает человекочитаемый текст из тела ответа:
// сначала JSON-поля detail|message|error|msg, иначе сырой текст.
func messageFrom(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err == nil {
		for _, k := range []string{"detail", "message", "error", "msg"} {
			if v, ok := m[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func phraseKind(text string) (Kind, bool) {
	low := strings.ToLower(text)
	for _, p := range phraseKinds {
		if strings.Contains(low, p.needle) {
			return p.kind, true
		}
	}
	return "", false
}

// classify превращает HTTP-ответ в ошибку таксономии либо nil.
func classify(status int, body []byte) *Error {
	text := messageFrom(body)
	if k, ok := phraseKind(text); ok {
		return &Error{Kind: k, Message: text, HTTPStatus: status}
	}
	if status/100 == 2 {
		return nil
	}
	if status >= 500 {
		return &Error{Kind: KindNetworkError, Message: text, HTTPStatus: status}
	}
	return &Error{Kind: KindUnknown, Message: text, HTTPStatus: status}
}

func netErr(err error) *Error {
	return &Error{Kind: KindNetworkError, Message: err.Error()}
}
