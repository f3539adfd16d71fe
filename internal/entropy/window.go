// Package entropy windows a conversation transcript and scores each window
// for novelty, deciding which windows carry enough new information to be
// worth sending to the Fact Extractor.
package entropy

import "github.com/wardenlabs/atomica/pkg/types"

// CreateWindows slices turns into overlapping windows of size windowSize,
// advancing stride turns between window starts. Windows start at positions
// 0, stride, 2*stride, ... for as long as start < len(turns); the final
// window is truncated to whatever turns remain rather than dropped, so no
// turn is ever left unwindowed.
func CreateWindows(sessionFile string, turns []types.Turn, windowSize, stride int) []*types.ConversationWindow {
	if windowSize <= 0 || stride <= 0 || len(turns) == 0 {
		return nil
	}

	var windows []*types.ConversationWindow
	for start := 0; start < len(turns); start += stride {
		end := start + windowSize
		if end > len(turns) {
			end = len(turns)
		}

		w := &types.ConversationWindow{
			ID:                windowID(sessionFile, start, end),
			Turns:             append([]types.Turn{}, turns[start:end]...),
			StartIndex:        start,
			EndIndex:          end,
			SourceSessionFile: sessionFile,
		}
		windows = append(windows, w)
	}

	return windows
}

func windowID(sessionFile string, start, end int) string {
	return contentHash(sessionFile, start, end)
}
