// Package useragent синтезирует правдоподобный мобильный User-Agent
// для проброса учётных данных в ЛК университета.
package useragent

import (
	"fmt"
	"math/rand"
	"strings"
)

type DeviceKind string

const (
	KindIPhone  DeviceKind = "iPhone"
	KindIPad    DeviceKind = "iPad"
	KindAndroid DeviceKind = "Android"
)

// Profile — профиль устройства. Любое поле можно оставить пустым,
// тогда берутся дефолты по исходной строке навигатора.
type Profile struct {
	Kind      DeviceKind
	Model     string
	OSVersion string
	Browser   string
}

const (
	chromeVersionMin = 90
	chromeVersionMax = 130
)

// Synthesize строит строку идентификации по профилю. Без профиля
// разбирает исходную строку и выбирает дефолты: iPhone/iPad — Safari,
// Android — Chrome. Версия Chrome рандомизируется на каждый вызов;
// кому нужна стабильность — кэшируйте результат.
func Synthesize(original string, p *Profile) string {
	if p == nil {
		p = &Profile{}
	}
	prof := *p
	if prof.Kind == "" {
		prof.Kind = detectKind(original)
	}
	fillDefaults(&prof)

	switch prof.Kind {
	case KindIPhone, KindIPad:
		return appleUA(prof)
	default:
		return androidUA(prof)
	}
}

func detectKind(original string) DeviceKind {
	switch {
	case strings.Contains(original, "iPad"):
		return KindIPad
	case strings.Contains(original, "iPhone"):
		return KindIPhone
	default:
		return KindAndroid
	}
}

func fillDefaults(p *Profile) {
	switch p.Kind {
	case KindIPhone, KindIPad:
		if p.OSVersion == "" {
			p.OSVersion = "17.5.1"
		}
		if p.Browser == "" {
			p.Browser = "Safari"
		}
	default:
		if p.Model == "" {
			p.Model = "Pixel 7"
		}
		if p.OSVersion == "" {
			p.OSVersion = "13"
		}
		if p.Browser == "" {
			p.Browser = "Chrome"
		}
	}
}

// iOS Safari: версия ОС через подчёркивания, токен Version/ — через точки.
func appleUA(p Profile) string {
	device := "iPhone"
	cpu := "iPhone OS"
	if p.Kind == KindIPad {
		device = "iPad"
		cpu = "OS"
	}
	underscored := strings.ReplaceAll(p.OSVersion, ".", "_")
	return fmt.Sprintf(
		"Mozilla/5.0 (%s; CPU %s %s like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/%s Mobile/15E148 Safari/604.1",
		device, cpu, underscored, p.OSVersion,
	)
}

func androidUA(p Profile) string {
	major := chromeVersionMin + rand.Intn(chromeVersionMax-chromeVersionMin+1)
	build := 4000 + rand.Intn(3000)
	patch := rand.Intn(200)
	return fmt.Sprintf(
		"Mozilla/5.0 (Linux; Android %s; %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d.0.%d.%d Mobile Safari/537.36",
		p.OSVersion, p.Model, major, build, patch,
	)
}
