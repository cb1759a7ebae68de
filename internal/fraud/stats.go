package fraud

import (
	"time"

	"storefront/internal/model"
)

// Stats - сводка по фрод-флагам за период.
type Stats struct {
	From          time.Time                   `json:"from"`
	To            time.Time                   `json:"to"`
	Total         int                         `json:"total"`
	BySeverity    map[model.FraudSeverity]int `json:"bySeverity"`
	ByType        map[model.FraudFlagType]int `json:"byType"`
	ByStatus      map[model.FraudStatus]int   `json:"byStatus"`
	AverageScore  float64                     `json:"averageScore"`
	FalsePositive int                         `json:"falsePositives"`
}

// Summarize считает статистику по уже отобранным флагам.
func Summarize(flags []model.FraudFlag, from, to time.Time) Stats {
	st := Stats{
		From:       from,
		To:         to,
		BySeverity: make(map[model.FraudSeverity]int),
		ByType:     make(map[model.FraudFlagType]int),
		ByStatus:   make(map[model.FraudStatus]int),
	}
	var scoreSum int
	for _, f := range flags {
		st.Total++
		st.BySeverity[f.Severity]++
		st.ByType[f.Type]++
		st.ByStatus[f.Status]++
		scoreSum += f.Score
		if f.FalsePositive || f.Status == model.FraudStatusFalsePositive {
			st.FalsePositive++
		}
	}
	if st.Total > 0 {
		st.AverageScore = float64(scoreSum) / float64(st.Total)
	}
	return st
}
