package reporting

import (
	"github.com/bytedance/sonic"

	"momentum-lab/internal/domain"
)

type runJSON struct {
	ConfigID string                  `json:"config_id"`
	Config   domain.SimulationConfig `json:"config"`
	Summary  domain.Summary          `json:"summary"`
	History  []domain.HistoryPoint   `json:"history"`
}

type sweepJSON struct {
	SweepID  string    `json:"sweep_id"`
	RankedBy Metric    `json:"ranked_by"`
	Runs     []runJSON `json:"runs"`
}

// RenderJSON renders runs, ranked by the metric, with their summaries and
// trade-history logs.
func RenderJSON(sweepID string, runs []*domain.RunResult, by Metric) ([]byte, error) {
	ranked := Rank(runs, by)
	doc := sweepJSON{
		SweepID:  sweepID,
		RankedBy: by,
		Runs:     make([]runJSON, len(ranked)),
	}
	for i, r := range ranked {
		history := r.History
		if history == nil {
			history = []domain.HistoryPoint{}
		}
		doc.Runs[i] = runJSON{
			ConfigID: r.ConfigID,
			Config:   r.Config,
			Summary:  r.Summary,
			History:  history,
		}
	}
	return sonic.ConfigStd.MarshalIndent(doc, "", "  ")
}
