package marking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lavka-enjoyer/lavka-attendance/internal/api"
	"github.com/lavka-enjoyer/lavka-attendance/internal/bridge"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"go.uber.org/zap"
)

type fakeAPI struct {
	api.Client

	own        []models.GroupMember
	other      map[string][]models.GroupMember
	otherErr   error
	sessions   map[string][]*api.MarkingSession
	started    [][]int64
	continueQR []string
}

func (f *fakeAPI) GroupUsers(ctx context.Context) ([]models.GroupMember, error) {
	return f.own, nil
}

func (f *fakeAPI) OtherGroupUsers(ctx context.Context, name string) ([]models.GroupMember, error) {
	if f.otherErr != nil {
		return nil, f.otherErr
	}
	return f.other[name], nil
}

func (f *fakeAPI) StartMassMarking(ctx context.Context, selected []int64, qrURL string) (string, error) {
	f.started = append(f.started, selected)
	return "sess-1", nil
}

func (f *fakeAPI) MarkingStatus(ctx context.Context, id string) (*api.MarkingSession, error) {
	states := f.sessions[id]
	st := states[0]
	if len(states) > 1 {
		f.sessions[id] = states[1:]
	}
	return st, nil
}

func (f *fakeAPI) ContinueMarking(ctx context.Context, id, qrURL string) error {
	f.continueQR = append(f.continueQR, qrURL)
	return nil
}

func ownRoster() []models.GroupMember {
	return []models.GroupMember{
		{TgID: 1, FIO: "Иванов", AllowConfirm: true},
		{TgID: 2, FIO: "Петров", AllowConfirm: true},
		{TgID: 3, FIO: "Сидорова", AllowConfirm: false},
		{TgID: 0, FIO: "Битая запись"},
	}
}

func newCoord(t *testing.T, f *fakeAPI) (*Coordinator, *bridge.Standalone) {
	t.Helper()
	br := bridge.NewStandalone(zap.NewNop())
	c := NewCoordinator(f, br, zap.NewNop(), "БИВТ-22-1")
	if err := c.LoadOwnGroup(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c, br
}

func TestDefaultSelectionPolicy(t *testing.T) {
	c, _ := newCoord(t, &fakeAPI{own: ownRoster()})

	// битые записи отфильтрованы до показа
	if len(c.Tabs()[0].Roster) != 3 {
		t.Fatalf("в ростере %d записей", len(c.Tabs()[0].Roster))
	}
	// выбраны все, кроме запретившей (allowConfirm=false)
	sel := c.Selection()
	if len(sel) != 2 {
		t.Fatalf("по умолчанию выбрано %d", len(sel))
	}
	for _, m := range sel {
		if m.TgID == 3 {
			t.Fatal("Сидорова не разрешала себя отмечать")
		}
	}
}

func TestSelectionIsUnionOfTabs(t *testing.T) {
	f := &fakeAPI{
		own: ownRoster(),
		other: map[string][]models.GroupMember{
			"БПМ-22-1": {
				{TgID: 10, FIO: "А****в", AllowConfirm: true},
				{TgID: 11, FIO: "Б****а", AllowConfirm: true},
			},
		},
	}
	c, _ := newCoord(t, f)
	if err := c.AddGroup(context.Background(), "БПМ-22-1"); err != nil {
		t.Fatal(err)
	}

	// глобальный выбор — дизъюнктное объединение вкладок
	if got := len(c.Selection()); got != 4 {
		t.Fatalf("объединение должно давать 4, got %d", got)
	}
	sum := 0
	for _, tab := range c.Tabs() {
		sum += tab.selectedCount()
	}
	if sum != len(c.Selection()) {
		t.Fatalf("сумма по вкладкам %d != объединение %d", sum, len(c.Selection()))
	}

	// закрытие вкладки уменьшает выбор ровно на её подмножество
	before := len(c.Selection())
	removed := c.Tabs()[1].selectedCount()
	c.RemoveTab(1)
	if got := len(c.Selection()); got != before-removed {
		t.Fatalf("после закрытия вкладки: %d, ожидали %d", got, before-removed)
	}
	if c.ActiveTab() != 0 {
		t.Fatal("активной должна стать своя группа")
	}
}

func TestAddGroupFailureRemovesTab(t *testing.T) {
	f := &fakeAPI{own: ownRoster(), otherErr: errors.New("boom")}
	c, _ := newCoord(t, f)

	if err := c.AddGroup(context.Background(), "БПМ-22-1"); err == nil {
		t.Fatal("ожидали ошибку загрузки ростера")
	}
	if len(c.Tabs()) != 1 || c.ActiveTab() != 0 {
		t.Fatalf("вкладка без ростера должна сняться: tabs=%d active=%d", len(c.Tabs()), c.ActiveTab())
	}
}

func TestCrossGroupWarningGate(t *testing.T) {
	f := &fakeAPI{
		own: ownRoster(),
		other: map[string][]models.GroupMember{
			"БПМ-22-1": {{TgID: 10, FIO: "А****в", AllowConfirm: true}},
		},
	}
	c, br := newCoord(t, f)
	if err := c.AddGroup(context.Background(), "БПМ-22-1"); err != nil {
		t.Fatal(err)
	}
	if !c.CrossGroup() {
		t.Fatal("выбор из двух вкладок")
	}

	// без подтверждения попап не открывается
	_, err := c.BeginScan(context.Background(), false)
	if !errors.Is(err, ErrCrossGroup) {
		t.Fatalf("ожидали ErrCrossGroup, got %v", err)
	}
	if br.ActiveScanListeners() != 0 {
		t.Fatal("попап не должен был открыться")
	}

	// с подтверждением — открывается и дожидается результата
	done := make(chan *Payload, 1)
	go func() {
		p, err := c.BeginScan(context.Background(), true)
		if err != nil {
			t.Error(err)
		}
		done <- p
	}()
	waitListeners(t, br, 1)
	br.PushScanResult("https://qr.example/abc")
	p := <-done
	if p == nil || p.QRURL != "https://qr.example/abc" || len(p.Selected) != 3 {
		t.Fatalf("полезная нагрузка: %+v", p)
	}
	if br.ActiveScanListeners() != 0 {
		t.Fatal("слушатель попапа не снят")
	}
}

func TestScanCancelAndEmptySelection(t *testing.T) {
	c, br := newCoord(t, &fakeAPI{own: ownRoster()})

	// пустой результат — отмена
	done := make(chan error, 1)
	go func() {
		_, err := c.BeginScan(context.Background(), false)
		done <- err
	}()
	waitListeners(t, br, 1)
	br.PushScanResult("")
	if err := <-done; !errors.Is(err, ErrScanCancelled) {
		t.Fatalf("ожидали ErrScanCancelled, got %v", err)
	}
	if br.ActiveScanListeners() != 0 {
		t.Fatal("слушатель не снят после отмены")
	}

	// без выбранных сканировать не для кого
	c.Toggle(0, 1)
	c.Toggle(0, 2)
	if _, err := c.BeginScan(context.Background(), false); !errors.Is(err, ErrEmptySelection) {
		t.Fatalf("ожидали ErrEmptySelection, got %v", err)
	}
}

func waitListeners(t *testing.T, br *bridge.Standalone, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for br.ActiveScanListeners() != want {
		if time.Now().After(deadline) {
			t.Fatalf("слушателей %d, ждали %d", br.ActiveScanListeners(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionPollsUntilCompleted(t *testing.T) {
	f := &fakeAPI{sessions: map[string][]*api.MarkingSession{
		"sess-1": {
			{SessionID: "sess-1", Status: api.MarkingRunning, Marked: 1, Total: 3},
			{SessionID: "sess-1", Status: api.MarkingRunning, Marked: 2, Total: 3},
			{SessionID: "sess-1", Status: api.MarkingCompleted, Marked: 3, Total: 3},
		},
	}}
	s := NewSession(f, zap.NewNop())
	s.poll = time.Millisecond

	var progress int
	s.OnProgress = func(*api.MarkingSession) { progress++ }

	st, err := s.Start(context.Background(), []int64{1, 2, 3}, "https://qr")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != api.MarkingCompleted || st.Marked != 3 {
		t.Fatalf("терминальный статус: %+v", st)
	}
	if progress != 3 {
		t.Fatalf("прогресс дёрнулся %d раз", progress)
	}
}

func TestSessionStopsOnErrorStatus(t *testing.T) {
	f := &fakeAPI{sessions: map[string][]*api.MarkingSession{
		"sess-1": {{SessionID: "sess-1", Status: api.MarkingError, Message: "сессия сорвалась"}},
	}}
	s := NewSession(f, zap.NewNop())
	s.poll = time.Millisecond

	st, err := s.Start(context.Background(), []int64{1}, "https://qr")
	if err != nil {
		t.Fatal(err)
	}
	if !st.Terminal() || st.Status != api.MarkingError {
		t.Fatalf("ожидали терминальную ошибку, got %+v", st)
	}
}

func TestSessionAwaitingQRContinues(t *testing.T) {
	f := &fakeAPI{sessions: map[string][]*api.MarkingSession{
		"sess-1": {
			{SessionID: "sess-1", Status: api.MarkingAwaitingQR, Marked: 1, Total: 2},
			{SessionID: "sess-1", Status: api.MarkingCompleted, Marked: 2, Total: 2},
		},
	}}
	s := NewSession(f, zap.NewNop())
	s.poll = time.Millisecond

	st, err := s.Start(context.Background(), []int64{1, 2}, "https://qr")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != api.MarkingAwaitingQR {
		t.Fatalf("ожидали awaiting_qr, got %s", st.Status)
	}

	st, err = s.ContinueWith(context.Background(), "https://qr2")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != api.MarkingCompleted {
		t.Fatalf("после нового QR ожидали completed, got %s", st.Status)
	}
	if len(f.continueQR) != 1 || f.continueQR[0] != "https://qr2" {
		t.Fatalf("continue_marking: %v", f.continueQR)
	}
}
