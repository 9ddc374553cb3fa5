// Package status — нахождение в здании университета: личный статус и
// сводка по группе. Автоопроса нет, обновление только по действию
// пользователя (pull-to-refresh, возврат на главный экран).
package status

import (
	"context"

	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"go.uber.org/zap"
)

type Poller struct {
	api api.Client
	log *zap.Logger
	// reversed инвертирует правило вход/выход: у части турникетов
	// upstream путает from и to (см. DESIGN.md).
	reversed bool
}

func NewPoller(client api.Client, log *zap.Logger, reversed bool) *Poller {
	return &Poller{api: client, log: log, reversed: reversed}
}

// Fetch — личный статус. Клиент деградирует сам, ошибок наружу нет.
func (p *Poller) Fetch(ctx context.Context) (*models.UniversityStatus, error) {
	return p.api.UniversityStatus(ctx)
}

// FetchGroup — сводка по группе с пересчётом агрегатов.
func (p *Poller) FetchGroup(ctx context.Context) (*models.GroupStatusReport, error) {
	report, err := p.api.GroupUniversityStatus(ctx)
	if err != nil {
		p.log.Warn("сводка по группе не получена", zap.Error(err))
		return nil, err
	}
	report.Recount()
	return report, nil
}

// Direction выводит направление прохода сравнением точек доступа с
// «Неконтролируемой территорией».
func (p *Poller) Direction(e models.PassEvent) models.Direction {
	var d models.Direction
	switch {
	case e.AccessPointFrom == models.UncontrolledZone:
		d = models.DirectionIn
	case e.AccessPointTo == models.UncontrolledZone:
		d = models.DirectionOut
	default:
		return models.DirectionUnknown
	}
	if p.reversed {
		if d == models.DirectionIn {
			return models.DirectionOut
		}
		return models.DirectionIn
	}
	return d
}
