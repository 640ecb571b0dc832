// Package compact bounds the transcript sent to the completion service by
// hiding the bodies of old tool results.
package compact

import "github.com/iksnae/deep-research/internal"

// DefaultKeepRounds is the number of most recent tool turns kept verbatim.
const DefaultKeepRounds = internal.DefaultKeepRounds

// Placeholder replaces the content of a compacted tool turn.
const Placeholder = "[earlier tool result hidden]"

// Compact returns a copy of transcript in which every tool turn except the
// newest keepRounds has its content replaced by Placeholder and its evidence
// dropped. Tool call ids, turn order and roles never change, and the input
// slice is not modified. Compacting twice yields the same result as once.
func Compact(transcript []internal.Turn, keepRounds int) []internal.Turn {
	if keepRounds < 0 {
		keepRounds = 0
	}

	var toolPositions []int
	for i, turn := range transcript {
		if _, ok := turn.(internal.ToolTurn); ok {
			toolPositions = append(toolPositions, i)
		}
	}

	out := make([]internal.Turn, len(transcript))
	copy(out, transcript)
	if len(toolPositions) <= keepRounds {
		return out
	}

	for _, pos := range toolPositions[:len(toolPositions)-keepRounds] {
		tt := out[pos].(internal.ToolTurn)
		out[pos] = internal.ToolTurn{
			ToolCallID: tt.ToolCallID,
			Content:    Placeholder,
			Compacted:  true,
		}
	}
	return out
}

// Stats counts tool turns and how many of them are already compacted
func Stats(transcript []internal.Turn) (toolTurns, compacted int) {
	for _, turn := range transcript {
		if tt, ok := turn.(internal.ToolTurn); ok {
			toolTurns++
			if tt.Compacted {
				compacted++
			}
		}
	}
	return toolTurns, compacted
}
