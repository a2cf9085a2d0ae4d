package pipeline

import (
	"strings"
	"unicode"

	"github.com/siherrmann/mapper/model"
)

const (
	mappingSeparator   = "->"
	rationaleSeparator = "|"
	noneMarker         = "NONE"
)

// ParseResponse extracts candidates from a reply following the line grammar
//
//	SOURCE_ID -> TARGET_ID1, TARGET_ID2 | optional rationale
//	SOURCE_ID -> NONE
//
// Lines without "->" are ignored. Ids are stripped of surrounding punctuation
// such as bullets or markdown emphasis. Candidates keep document order.
func ParseResponse(text string) []model.Candidate {
	var candidates []model.Candidate

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		left, right, found := strings.Cut(line, mappingSeparator)
		if !found {
			continue
		}

		sourceID := stripToken(left)
		if sourceID == "" {
			continue
		}

		targetSpec, rationale, _ := strings.Cut(right, rationaleSeparator)
		candidate := model.Candidate{
			SourceID:  sourceID,
			TargetIDs: []string{},
			Rationale: strings.TrimSpace(rationale),
		}

		if !strings.EqualFold(stripToken(targetSpec), noneMarker) {
			for _, token := range strings.Split(targetSpec, ",") {
				if id := stripToken(token); id != "" {
					candidate.TargetIDs = append(candidate.TargetIDs, id)
				}
			}
		}

		candidates = append(candidates, candidate)
	}

	return candidates
}

// FormatCandidates writes candidates in the canonical reply grammar, one line each.
func FormatCandidates(candidates []model.Candidate) string {
	var b strings.Builder
	for _, c := range candidates {
		b.WriteString(c.SourceID)
		b.WriteString(" ")
		b.WriteString(mappingSeparator)
		b.WriteString(" ")
		if len(c.TargetIDs) == 0 {
			b.WriteString(noneMarker)
		} else {
			b.WriteString(strings.Join(c.TargetIDs, ", "))
		}
		if c.Rationale != "" {
			b.WriteString(" ")
			b.WriteString(rationaleSeparator)
			b.WriteString(" ")
			b.WriteString(c.Rationale)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// stripToken trims whitespace and any non letter or digit runes at both ends.
func stripToken(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
