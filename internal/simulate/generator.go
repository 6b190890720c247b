package simulate

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/okian/drillcore/internal/domain/model"
	"github.com/okian/drillcore/internal/domain/run"
)

// Every question offers these four actions; one of them is correct.
var spotActions = [model.OptionsPerQuestion]model.Action{ //nolint:gochecknoglobals // fixed option layout
	model.ActionFold, model.ActionCall, model.ActionRaise, model.ActionAllIn,
}

// generateQuestions builds one run's worth of questions. The correct
// action is drawn uniformly, so a fold-biased trainee misfolds most spots.
func generateQuestions(rng *rand.Rand) []model.Question {
	qs := make([]model.Question, run.QuestionsPerRun)
	for i := range qs {
		correct := rng.Intn(len(spotActions))
		opts := make([]model.Option, len(spotActions))
		for j, a := range spotActions {
			opts[j] = model.Option{
				ID:      fmt.Sprintf("opt_%d", j),
				Label:   string(a),
				Action:  a,
				Correct: j == correct,
			}
		}
		qs[i] = model.Question{
			ID:          "sim_" + uuid.NewString(),
			Options:     opts,
			Explanation: fmt.Sprintf("%s is the solver's choice here.", spotActions[correct]),
		}
	}
	return qs
}

// pick chooses an option id the way a trainee with the given accuracy and
// fold bias would.
func pick(rng *rand.Rand, q model.Question, accuracy, foldBias float64) string {
	right := q.CorrectOption()
	if rng.Float64() < accuracy {
		return right.ID
	}
	wrong := make([]model.Option, 0, len(q.Options)-1)
	for _, o := range q.Options {
		if o.ID == right.ID {
			continue
		}
		if o.Action == model.ActionFold && rng.Float64() < foldBias {
			return o.ID
		}
		wrong = append(wrong, o)
	}
	return wrong[rng.Intn(len(wrong))].ID
}
