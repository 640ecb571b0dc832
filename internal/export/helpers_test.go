package export

import (
	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/sessionlog"
	"github.com/iksnae/deep-research/internal/viewer"
)

const testRelPath = "2025-06-01/0f1e2d3c4b5a69788796a5b4c3d2e1f0.jsonl"

// testView builds the view of the sample transcript. Unfinished views stop
// after the tool result.
func testView(finished bool) *viewer.SessionView {
	rep := &sessionlog.Replay{
		Query: &sessionlog.QueryInfo{
			Query: "weather today",
			MD5:   "0f1e2d3c4b5a69788796a5b4c3d2e1f0",
			Date:  "2025-06-01",
		},
		Messages: internal.NewTestTranscript(),
	}
	if finished {
		rep.Final = &sessionlog.FinalInfo{Content: "It will be sunny [^0^].", Iteration: 2}
	} else {
		rep.Messages = rep.Messages[:4]
	}
	return viewer.FromReplay(testRelPath, rep)
}

func emptyView() *viewer.SessionView {
	return viewer.FromReplay(testRelPath, &sessionlog.Replay{})
}
