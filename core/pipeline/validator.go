package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/mapper/model"
)

// Validate turns candidates into relationships whose source and target ids are known.
// Candidates with an unknown source are dropped, unknown targets are dropped one by one.
// Repeated (source, target) pairs are collapsed and the first rationale is kept.
func Validate(candidates []model.Candidate, knownSources, knownTargets map[string]struct{}) ([]*model.Relationship, model.ValidationReport) {
	report := model.ValidationReport{Candidates: len(candidates)}
	relationships := []*model.Relationship{}
	seen := map[[2]string]struct{}{}
	now := time.Now()

	for _, candidate := range candidates {
		if _, ok := knownSources[candidate.SourceID]; !ok {
			report.RejectedSources++
			continue
		}

		for _, targetID := range candidate.TargetIDs {
			if _, ok := knownTargets[targetID]; !ok {
				report.RejectedTargets++
				continue
			}

			key := [2]string{candidate.SourceID, targetID}
			if _, ok := seen[key]; ok {
				report.Duplicates++
				continue
			}
			seen[key] = struct{}{}

			relationships = append(relationships, &model.Relationship{
				ID:        uuid.New(),
				SourceID:  candidate.SourceID,
				TargetID:  targetID,
				Rationale: candidate.Rationale,
				CreatedAt: now,
			})
		}
	}

	report.Accepted = len(relationships)
	return relationships, report
}
