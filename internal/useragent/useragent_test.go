package useragent

import (
	"regexp"
	"strconv"
	"testing"
)

var (
	iosShape     = regexp.MustCompile(`^Mozilla/5\.0 \(iPhone; CPU iPhone OS [0-9_]+ like Mac OS X\) AppleWebKit/605\.1\.15 \(KHTML, like Gecko\) Version/[0-9.]+ Mobile/15E148 Safari/604\.1$`)
	androidShape = regexp.MustCompile(`^Mozilla/5\.0 \(Linux; Android [^;]+; [^)]+\) AppleWebKit/537\.36 \(KHTML, like Gecko\) Chrome/(\d+)\.0\.\d+\.\d+ Mobile Safari/537\.36$`)
)

func TestSynthesizeIPhone(t *testing.T) {
	ua := Synthesize("Mozilla/5.0 (iPhone; ...)", nil)
	if !iosShape.MatchString(ua) {
		t.Fatalf("iOS UA не совпал с формой: %s", ua)
	}
	// iOS-вариант детерминирован
	if ua != Synthesize("Mozilla/5.0 (iPhone; ...)", nil) {
		t.Fatal("повторный синтез для iPhone должен совпадать")
	}
}

func TestSynthesizeProfileVersion(t *testing.T) {
	ua := Synthesize("", &Profile{Kind: KindIPhone, OSVersion: "16.3.1"})
	if want := "CPU iPhone OS 16_3_1 like"; !regexp.MustCompile(regexp.QuoteMeta(want)).MatchString(ua) {
		t.Fatalf("версия ОС должна быть через подчёркивания: %s", ua)
	}
	if !regexp.MustCompile(`Version/16\.3\.1 `).MatchString(ua) {
		t.Fatalf("токен Version/ должен быть через точки: %s", ua)
	}
}

func TestSynthesizeAndroid(t *testing.T) {
	for i := 0; i < 50; i++ {
		ua := Synthesize("Mozilla/5.0 (Linux; Android 13; Pixel 7)", nil)
		m := androidShape.FindStringSubmatch(ua)
		if m == nil {
			t.Fatalf("Android UA не совпал с формой: %s", ua)
		}
		major, err := strconv.Atoi(m[1])
		if err != nil {
			t.Fatal(err)
		}
		if major < chromeVersionMin || major > chromeVersionMax {
			t.Fatalf("версия Chrome %d вне диапазона [%d, %d]", major, chromeVersionMin, chromeVersionMax)
		}
	}
}

func TestDetectKindDefaults(t *testing.T) {
	if detectKind("Mozilla/5.0 (iPad; CPU OS ...)") != KindIPad {
		t.Fatal("iPad не распознан")
	}
	if detectKind("что-то неизвестное") != KindAndroid {
		t.Fatal("дефолт должен быть Android")
	}
}
