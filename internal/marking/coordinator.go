// Package marking — сценарий «отметить нескольких»: вкладки групп,
// выбор одногруппников, предупреждение о смешанных группах и передача
// результата сканирования на экран отметки.
package marking

import (
	"context"
	"errors"

	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/bridge"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"go.uber.org/zap"
)

var (
	// ErrCrossGroup — выбор охватывает несколько вкладок, нужно
	// подтверждение пользователя перед сканированием.
	ErrCrossGroup = errors.New("selection spans multiple groups")
	// ErrScanInProgress — попап сканера уже открыт.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrScanCancelled — пользователь закрыл попап без результата.
	ErrScanCancelled = errors.New("scan cancelled")
	// ErrEmptySelection — сканировать не для кого.
	ErrEmptySelection = errors.New("empty selection")
)

// legacyMaxFetches — исторический предел дозагрузок ростера вкладки.
// Текущий дизайн делает один запрос, поле оставлено под будущий добор.
const legacyMaxFetches = 3

// Tab — вкладка группы. Вкладка 0 («своя группа») неудаляема.
type Tab struct {
	Group      string
	Roster     []models.GroupMember
	Selected   map[int64]bool
	fetchCount int
}

// selectedCount — мощность подмножества вкладки.
func (t *Tab) selectedCount() int {
	n := 0
	for _, on := range t.Selected {
		if on {
			n++
		}
	}
	return n
}

// Payload уезжает на экран отметки после успешного скана.
type Payload struct {
	Selected []models.GroupMember
	QRURL    string
}

type Coordinator struct {
	api    api.Client
	bridge bridge.Bridge
	log    *zap.Logger

	tabs       []*Tab
	active     int
	isScanning bool
}

func NewCoordinator(client api.Client, br bridge.Bridge, log *zap.Logger, ownGroup string) *Coordinator {
	return &Coordinator{
		api:    client,
		bridge: br,
		log:    log,
		tabs:   []*Tab{{Group: ownGroup, Selected: map[int64]bool{}}},
	}
}

// LoadOwnGroup наполняет вкладку 0. По умолчанию выбраны все, кто не
// запретил отмечать себя (allowConfirm != false); битые записи отсеяны.
func (c *Coordinator) LoadOwnGroup(ctx context.Context) error {
	roster, err := c.api.GroupUsers(ctx)
	if err != nil {
		return err
	}
	c.fillTab(c.tabs[0], roster)
	return nil
}

func (c *Coordinator) fillTab(t *Tab, roster []models.GroupMember) {
	t.Roster = t.Roster[:0]
	t.Selected = map[int64]bool{}
	for _, m := range roster {
		if !m.Valid() {
			continue
		}
		t.Roster = append(t.Roster, m)
		if m.AllowConfirm {
			t.Selected[m.TgID] = true
		}
	}
	t.fetchCount++
}

// AddGroup открывает вкладку чужой группы и грузит её ростер один раз.
// Если запрос упал и ростера нет — вкладка снимается, активной
// становится своя группа.
func (c *Coordinator) AddGroup(ctx context.Context, name string) error {
	for _, t := range c.tabs {
		if t.Group == name {
			return nil // вкладка уже открыта
		}
	}
	t := &Tab{Group: name, Selected: map[int64]bool{}}
	c.tabs = append(c.tabs, t)
	c.active = len(c.tabs) - 1

	if t.fetchCount >= legacyMaxFetches {
		return nil
	}
	roster, err := c.api.OtherGroupUsers(ctx, name)
	if err != nil {
		c.log.Warn("ростер группы не загрузился", zap.String("group", name), zap.Error(err))
		if len(t.Roster) == 0 {
			c.RemoveTab(c.active)
		}
		return err
	}
	c.fillTab(t, roster)
	return nil
}

// RemoveTab закрывает вкладку вместе с её ростером и выбором.
// Вкладка 0 не закрывается.
func (c *Coordinator) RemoveTab(idx int) {
	if idx <= 0 || idx >= len(c.tabs) {
		return
	}
	c.tabs = append(c.tabs[:idx], c.tabs[idx+1:]...)
	if c.active >= len(c.tabs) {
		c.active = 0
	}
}

func (c *Coordinator) Tabs() []*Tab   { return c.tabs }
func (c *Coordinator) ActiveTab() int { return c.active }

func (c *Coordinator) SetActive(i int) {
	if i >= 0 && i < len(c.tabs) {
		c.active = i
	}
}

// Toggle переключает выбор студента на вкладке.
func (c *Coordinator) Toggle(tabIdx int, tgID int64) {
	if tabIdx < 0 || tabIdx >= len(c.tabs) {
		return
	}
	t := c.tabs[tabIdx]
	for _, m := range t.Roster {
		if m.TgID == tgID {
			t.Selected[tgID] = !t.Selected[tgID]
			return
		}
	}
}

// Selection — объединение подмножеств всех вкладок. Вкладки не
// пересекаются по студентам, так что это дизъюнктное объединение.
func (c *Coordinator) Selection() []models.GroupMember {
	var out []models.GroupMember
	for _, t := range c.tabs {
		for _, m := range t.Roster {
			if t.Selected[m.TgID] {
				out = append(out, m)
			}
		}
	}
	return out
}

// SelectionIDs — идентификаторы для start_mass_marking.
func (c *Coordinator) SelectionIDs() []int64 {
	sel := c.Selection()
	out := make([]int64, 0, len(sel))
	for _, m := range sel {
		out = append(out, m.TgID)
	}
	return out
}

// CrossGroup — выбор затрагивает больше одной вкладки.
func (c *Coordinator) CrossGroup() bool {
	n := 0
	for _, t := range c.tabs {
		if t.selectedCount() > 0 {
			n++
		}
	}
	return n > 1
}

// BeginScan открывает QR-попап и возвращает полезную нагрузку для
// экрана отметки. confirmed=true означает, что пользователь уже
// подтвердил предупреждение о смешанных группах.
func (c *Coordinator) BeginScan(ctx context.Context, confirmed bool) (*Payload, error) {
	sel := c.Selection()
	if len(sel) == 0 {
		return nil, ErrEmptySelection
	}
	if c.CrossGroup() && !confirmed {
		return nil, ErrCrossGroup
	}
	if c.isScanning {
		return nil, ErrScanInProgress
	}
	c.isScanning = true
	defer func() { c.isScanning = false }()

	text, err := c.bridge.ScanQR(ctx, "Наведите камеру на QR-код преподавателя")
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, ErrScanCancelled
	}
	c.bridge.Haptic(bridge.HapticLight)
	return &Payload{Selected: sel, QRURL: text}, nil
}
