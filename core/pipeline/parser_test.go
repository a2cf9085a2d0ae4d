package pipeline

import (
	"testing"

	"github.com/siherrmann/mapper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	t.Run("Parses multiple targets none and garbage", func(t *testing.T) {
		candidates := ParseResponse("S1 -> T1, T2\nS2 -> NONE\ngarbage line\nS3 -> T9")

		require.Len(t, candidates, 3)
		assert.Equal(t, model.Candidate{SourceID: "S1", TargetIDs: []string{"T1", "T2"}}, candidates[0])
		assert.Equal(t, model.Candidate{SourceID: "S2", TargetIDs: []string{}}, candidates[1])
		assert.Equal(t, model.Candidate{SourceID: "S3", TargetIDs: []string{"T9"}}, candidates[2])
	})

	t.Run("Strips bullets and markdown around ids", func(t *testing.T) {
		tests := []struct {
			line   string
			source string
			target []string
		}{
			{"- S1 -> T1", "S1", []string{"T1"}},
			{"* S1 -> T1", "S1", []string{"T1"}},
			{"**S1** -> **T1**, `T2`.", "S1", []string{"T1", "T2"}},
			{"1. S1 -> T1", "1. S1", []string{"T1"}},
			{"  • STRAT-01 -> CAP-03 ,  CAP-07  ", "STRAT-01", []string{"CAP-03", "CAP-07"}},
		}

		for _, tt := range tests {
			candidates := ParseResponse(tt.line)
			require.Len(t, candidates, 1, tt.line)
			assert.Equal(t, tt.source, candidates[0].SourceID, tt.line)
			assert.Equal(t, tt.target, candidates[0].TargetIDs, tt.line)
		}
	})

	t.Run("NONE is case insensitive and may be decorated", func(t *testing.T) {
		for _, line := range []string{"S1 -> none", "S1 -> None.", "S1 -> **NONE**"} {
			candidates := ParseResponse(line)
			require.Len(t, candidates, 1, line)
			assert.Empty(t, candidates[0].TargetIDs, line)
		}
	})

	t.Run("Splits only at the first separator", func(t *testing.T) {
		candidates := ParseResponse("S1 -> T1 -> T2")

		require.Len(t, candidates, 1)
		assert.Equal(t, []string{"T1 -> T2"}, candidates[0].TargetIDs)
	})

	t.Run("Reads an optional rationale", func(t *testing.T) {
		candidates := ParseResponse("APP1 -> DE14, DE20 | Captures leads | and bookings ")

		require.Len(t, candidates, 1)
		assert.Equal(t, []string{"DE14", "DE20"}, candidates[0].TargetIDs)
		assert.Equal(t, "Captures leads | and bookings", candidates[0].Rationale)
	})

	t.Run("Drops empty tokens and empty sources", func(t *testing.T) {
		candidates := ParseResponse("S1 -> T1, , -, T2\n-- -> T3\n -> T4")

		require.Len(t, candidates, 1)
		assert.Equal(t, []string{"T1", "T2"}, candidates[0].TargetIDs)
	})

	t.Run("Tolerates CRLF line endings", func(t *testing.T) {
		candidates := ParseResponse("S1 -> T1\r\nS2 -> T2\r\n")

		require.Len(t, candidates, 2)
		assert.Equal(t, []string{"T1"}, candidates[0].TargetIDs)
		assert.Equal(t, "S2", candidates[1].SourceID)
	})

	t.Run("Empty reply gives no candidates", func(t *testing.T) {
		assert.Empty(t, ParseResponse(""))
		assert.Empty(t, ParseResponse("I could not find any mappings."))
	})
}

func TestFormatCandidates(t *testing.T) {
	t.Run("Formats the canonical grammar", func(t *testing.T) {
		text := FormatCandidates([]model.Candidate{
			{SourceID: "S1", TargetIDs: []string{"T1", "T2"}},
			{SourceID: "S2"},
			{SourceID: "S3", TargetIDs: []string{"T3"}, Rationale: "shared data"},
		})

		assert.Equal(t, "S1 -> T1, T2\nS2 -> NONE\nS3 -> T3 | shared data\n", text)
	})

	t.Run("Parsing the canonical form is idempotent", func(t *testing.T) {
		replies := []string{
			"- S1 -> T1, T2\nS2 -> none\nnoise\n**S3** -> T3 | because",
			"A -> B -> C\n• X -> Y,,Z",
			"",
		}

		for _, reply := range replies {
			parsed := ParseResponse(reply)
			assert.Equal(t, parsed, ParseResponse(FormatCandidates(parsed)), reply)
		}
	})
}
