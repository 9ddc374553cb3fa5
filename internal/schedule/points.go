package schedule

import (
	"sort"

	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
)

// autoPassThreshold — сумма в промежуточной ведомости, с которой
// предмет считается «автоматом» (грубый индикатор, не оценка).
const autoPassThreshold = 40

// SubjectPoints — строка экрана БРС по одному предмету.
type SubjectPoints struct {
	Subject      string
	TotalLessons int
	LessonCost   float64 // цена пропуска одной пары
	Score        float64 // накопленные баллы из ведомости, если известны
	AutoPass     bool
}

// PointsSummary строит сводку БРС из карты стоимости пар и (если
// бэкенд их отдал) накопленных баллов по предметам. Предметы
// отсортированы по имени, чтобы экран не прыгал между обновлениями.
func (c *Cache) PointsSummary(scores map[string]float64) []SubjectPoints {
	items := c.costs.Items()
	out := make([]SubjectPoints, 0, len(items))
	for subject, it := range items {
		total := it.Object.(int)
		sp := SubjectPoints{
			Subject:      subject,
			TotalLessons: total,
			LessonCost:   models.PointsPerLesson(total),
		}
		if score, ok := scores[subject]; ok {
			sp.Score = score
			sp.AutoPass = score >= autoPassThreshold
		}
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}
