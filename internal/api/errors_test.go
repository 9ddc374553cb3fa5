package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyPhrasesUnder200(t *testing.T) {
	// бэкенд умеет отвечать 200 с телом-ошибкой
	cases := []struct {
		body string
		kind Kind
	}{
		{`{"detail":"Введите Логин и Пароль"}`, KindLoginRequired},
		{`{"detail":"Неверный логин или пароль"}`, KindLoginRequired}, // отклонённые креды — тоже логин
		{`{"message":"Доступ запрещен"}`, KindAccessDenied},
		{`{"error":"Пользователь не существует"}`, KindAccessDenied},
		{`{"msg":"ПРОКСИ НЕ ХВАТАЕТ. Оформи подписку"}`, KindSubscriptionRequired},
		{`Введите Логин и Пароль`, KindLoginRequired}, // сырой текст без JSON
	}
	for _, c := range cases {
		err := classify(200, []byte(c.body))
		if assert.NotNil(t, err, c.body) {
			assert.Equal(t, c.kind, err.Kind, c.body)
		}
	}
}

func TestClassifyCleanSuccess(t *testing.T) {
	assert.Nil(t, classify(200, []byte(`{"FIO":"Иванов И.И."}`)))
	assert.Nil(t, classify(204, nil))
}

func TestClassifyHTTPErrors(t *testing.T) {
	if err := classify(502, []byte("bad gateway")); assert.NotNil(t, err) {
		assert.Equal(t, KindNetworkError, err.Kind)
	}
	if err := classify(400, []byte(`{"detail":"что-то странное"}`)); assert.NotNil(t, err) {
		assert.Equal(t, KindUnknown, err.Kind)
		assert.Equal(t, "что-то странное", err.Message)
	}
}

func TestMessageFromFieldOrder(t *testing.T) {
	// detail приоритетнее message
	got := messageFrom([]byte(`{"message":"второе","detail":"первое"}`))
	assert.Equal(t, "первое", got)
	assert.Equal(t, "сырой текст", messageFrom([]byte("  сырой текст\n")))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNetworkError, KindOf(&Error{Kind: KindNetworkError}))
	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
}
