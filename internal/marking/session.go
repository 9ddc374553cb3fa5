package marking

import (
	"context"
	"errors"
	"time"

	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/metrics"
	"go.uber.org/zap"
)

// defaultPollInterval — пауза между опросами get_marking_status.
const defaultPollInterval = 2 * time.Second

// Session ведёт запущенную сессию групповой отметки до терминального
// статуса. Повторных попыток при ошибках нет — только по действию
// пользователя, чтобы не плодить дубли записей.
type Session struct {
	api  api.Client
	log  *zap.Logger
	poll time.Duration

	id string
	// OnProgress дёргается после каждого опроса (для view-слоя).
	OnProgress func(s *api.MarkingSession)
}

func NewSession(client api.Client, log *zap.Logger) *Session {
	return &Session{api: client, log: log, poll: defaultPollInterval}
}

// Start запускает сессию и поллит до completed либо терминальной ошибки.
func (s *Session) Start(ctx context.Context, selected []int64, qrURL string) (*api.MarkingSession, error) {
	id, err := s.api.StartMassMarking(ctx, selected, qrURL)
	if err != nil {
		metrics.MarkingSessions.WithLabelValues("start_failed").Inc()
		return nil, err
	}
	s.id = id
	s.log.Info("сессия отметки запущена", zap.String("session", id), zap.Int("selected", len(selected)))
	return s.wait(ctx)
}

// ContinueWith передаёт свежий QR в уже идущую сессию (статус
// awaiting_qr) и продолжает поллинг.
func (s *Session) ContinueWith(ctx context.Context, qrURL string) (*api.MarkingSession, error) {
	if s.id == "" {
		return nil, errors.New("marking session not started")
	}
	if err := s.api.ContinueMarking(ctx, s.id, qrURL); err != nil {
		return nil, err
	}
	return s.wait(ctx)
}

func (s *Session) wait(ctx context.Context) (*api.MarkingSession, error) {
	t := time.NewTicker(s.poll)
	defer t.Stop()
	for {
		st, err := s.api.MarkingStatus(ctx, s.id)
		if err != nil {
			metrics.MarkingSessions.WithLabelValues("poll_failed").Inc()
			return nil, err
		}
		if s.OnProgress != nil {
			s.OnProgress(st)
		}
		if st.Terminal() {
			metrics.MarkingSessions.WithLabelValues(st.Status).Inc()
			return st, nil
		}
		if st.Status == api.MarkingAwaitingQR {
			// нужен новый скан; решение — за экраном отметки
			return st, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// SelfMark — одиночная отметка по QR (send_approve).
func SelfMark(ctx context.Context, client api.Client, qrURL string) (*api.ApproveResult, error) {
	return client.SendApprove(ctx, qrURL)
}
