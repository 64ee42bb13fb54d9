package decision

import "time"

// Refine returns a copy of rec with next installed as the current
// analysis and the previous analysis pushed onto the refinement
// history. The input record is never mutated.
func Refine(rec Record, next AnalysisResult, instruction string, now time.Time) Record {
	out := rec
	out.RefinementHistory = make([]HistoryItem, len(rec.RefinementHistory), len(rec.RefinementHistory)+1)
	copy(out.RefinementHistory, rec.RefinementHistory)
	out.RefinementHistory = append(out.RefinementHistory, HistoryItem{
		Analysis:    rec.Analysis,
		Instruction: instruction,
		Timestamp:   now.UnixMilli(),
	})
	out.Analysis = next
	return out
}

// Version is one entry in a record's full timeline, oldest first.
// Instruction is the refinement request that produced the NEXT version,
// so the newest version always has an empty instruction.
type Version struct {
	Index       int            `json:"index"`
	Analysis    AnalysisResult `json:"analysis"`
	Instruction string         `json:"instruction,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

// Timeline expands a record into its ordered version list: every
// superseded analysis followed by the current one.
func Timeline(rec Record) []Version {
	out := make([]Version, 0, len(rec.RefinementHistory)+1)
	for i, item := range rec.RefinementHistory {
		ts := rec.CreatedAt
		if i > 0 {
			ts = rec.RefinementHistory[i-1].Timestamp
		}
		out = append(out, Version{
			Index:       i,
			Analysis:    item.Analysis,
			Instruction: item.Instruction,
			Timestamp:   ts,
		})
	}
	ts := rec.CreatedAt
	if n := len(rec.RefinementHistory); n > 0 {
		ts = rec.RefinementHistory[n-1].Timestamp
	}
	out = append(out, Version{
		Index:     len(rec.RefinementHistory),
		Analysis:  rec.Analysis,
		Timestamp: ts,
	})
	return out
}

// VersionCount reports how many analysis versions the record holds.
func VersionCount(rec Record) int {
	return len(rec.RefinementHistory) + 1
}
