package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/app"
	"github.com/lavka-enjoyer/lavka-attendance/internal/bridge"
	"github.com/lavka-enjoyer/lavka-attendance/internal/config"
	"github.com/lavka-enjoyer/lavka-attendance/internal/jobs"
	"github.com/lavka-enjoyer/lavka-attendance/internal/logging"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"github.com/lavka-enjoyer/lavka-attendance/internal/observability"
	"github.com/lavka-enjoyer/lavka-attendance/internal/schedule"
	"github.com/lavka-enjoyer/lavka-attendance/internal/session"
	"github.com/lavka-enjoyer/lavka-attendance/internal/status"
	"go.uber.org/zap"
)

func main() {
	// Загрузка переменных окружения
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("Ошибка инициализации логгера: %v", err)
	}
	defer lg.Closer()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, cfg.Release)
	if err != nil {
		lg.Sugar.Warnw("sentry не инициализирован", "err", err)
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	br := bridge.NewStandalone(lg.Component("bridge"))
	if v := os.Getenv("INIT_DATA"); v != "" {
		br.SetInitData(v)
	}

	var client api.Client
	probe := func(ctx context.Context) error { return nil }
	if cfg.DemoMode {
		client = api.NewDemoClient(lg.Component("api"))
	} else {
		httpClient := api.NewHTTPClient(cfg.APIBaseURL, br.InitData, lg.Component("api"))
		client = httpClient
		probe = httpClient.Probe
	}

	app.StartHTTP(ctx, cfg.HTTPAddr, probe)

	sched := schedule.New(client, lg.Component("schedule"))
	sched.SetLocation(cfg.Location)
	defer sched.Flush()

	ctrl := session.New(client, br, sched, lg.Component("session"), session.Links{
		SupportContact: cfg.SupportContact,
		NewsChannelURL: cfg.NewsChannelURL,
		CompanionBot:   cfg.CompanionBot,
	})
	ctrl.Start(ctx)

	// главный экран при монтировании один раз тянет статус (без автоопроса)
	poller := status.NewPoller(client, lg.Component("status"), cfg.EntryReversed)
	if ctrl.Screen() == models.ScreenMain {
		if st, err := poller.Fetch(ctx); err == nil {
			lg.Base.Info("статус в университете",
				zap.Bool("inside", st.InsideBuilding),
				zap.Int("events", len(st.Events)))
		}
	}

	// поминутный пересчёт «текущей пары» для экрана расписания
	runner := jobs.New(ctx)
	runner.Every(time.Minute, "current_lesson_recompute", func(ctx context.Context) error {
		if ctrl.Screen() == models.ScreenSchedule {
			sched.RecomputeCurrent()
		}
		return nil
	})

	lg.Base.Info("приложение запущено",
		zap.Bool("demo", cfg.DemoMode),
		zap.String("screen", string(ctrl.Screen())))

	<-ctx.Done()
	lg.Base.Info("остановка по сигналу")
}
