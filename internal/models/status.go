package models

// UncontrolledZone — имя точки доступа, обозначающей улицу.
// Направление прохода выводится сравнением с ним.
const UncontrolledZone = "Неконтролируемая территория"

// PassEvent — запись о проходе через турникет.
type PassEvent struct {
	EventUUID       string
	Time            string
	AccessPointFrom string
	AccessPointTo   string
}

// Direction — направление прохода.
type Direction string

const (
	DirectionIn      Direction = "in"
	DirectionOut     Direction = "out"
	DirectionUnknown Direction = "unknown"
)

// UniversityStatus — нахождение студента в здании и журнал проходов.
type UniversityStatus struct {
	InsideBuilding bool
	LastEventTime  string
	Events         []PassEvent
}

// MemberStatus — статус одногруппника на экране группы.
type MemberStatus struct {
	FIO            string
	InsideBuilding bool
	LastEventTime  string
	NotActivated   bool
	Needs2FA       bool
}

// GroupStatusReport — агрегаты по группе.
type GroupStatusReport struct {
	Students     []MemberStatus
	Total        int
	Inside       int
	Outside      int
	NotActivated int
	Needs2FA     int
}

// Recount пересчитывает счётчики по списку студентов.
func (r *GroupStatusReport) Recount() {
	r.Total = len(r.Students)
	r.Inside, r.Outside, r.NotActivated, r.Needs2FA = 0, 0, 0, 0
	for _, s := range r.Students {
		switch {
		case s.NotActivated:
			r.NotActivated++
		case s.Needs2FA:
			r.Needs2FA++
		case s.InsideBuilding:
			r.Inside++
		default:
			r.Outside++
		}
	}
}
