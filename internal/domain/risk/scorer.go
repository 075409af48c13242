package risk

import (
	"fmt"

	"github.com/smart-attendance/dropout-radar/internal/domain/shared"
)

// Score прогоняет признаки через классификатор и возвращает записи с оценкой
// риска для одной школы.
//
// Перед первым прогнозом схема классификатора сверяется со SchemaV1: несовпадение
// фатально для прогона школы и возвращается как shared.ErrSchemaMismatch вместо
// тихо искажённых оценок. Ошибки самого классификатора - сбой внешнего
// компонента и пробрасываются как есть.
func Score(features []FeatureRow, clf Classifier, schoolID string) ([]ScoredRecord, error) {
	if got := clf.Schema(); !got.Equal(SchemaV1) {
		return nil, shared.WrapDomainError("risk", "Score", shared.ErrSchemaMismatch,
			fmt.Sprintf("classifier declares %s%v, scorer produces %s%v",
				got.Version, got.Columns, SchemaV1.Version, SchemaV1.Columns), nil)
	}

	records := make([]ScoredRecord, 0, len(features))
	for _, row := range features {
		v := row.Vector()

		prob, err := clf.PredictProba(v)
		if err != nil {
			return nil, fmt.Errorf("risk: predict probability for student %s: %w", row.StudentID, err)
		}

		label, err := clf.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("risk: predict label for student %s: %w", row.StudentID, err)
		}

		records = append(records, ScoredRecord{
			SchoolID:    schoolID,
			FeatureRow:  row,
			DropoutProb: prob,
			DropoutPred: label,
		})
	}

	return records, nil
}
