package ledger

import (
	"fmt"
	"sort"
	"strings"
)

// Summary reports the outcome of a batch operation.
type Summary struct {
	Operation  string
	Processed  int
	Updated    int
	Appended   int
	Skipped    int
	Failed     int
	SkipCounts map[string]int
	Reasons    []string
}

// Skip records a skipped item under a category such as "no change".
func (s *Summary) Skip(category, detail string) {
	s.Skipped++
	if s.SkipCounts == nil {
		s.SkipCounts = make(map[string]int)
	}
	s.SkipCounts[category]++
	if detail != "" {
		s.Reasons = append(s.Reasons, category+": "+detail)
	}
}

// Fail records a per-item failure without aborting the batch.
func (s *Summary) Fail(id string, err error) {
	s.Failed++
	s.Reasons = append(s.Reasons, fmt.Sprintf("failed %s: %v", id, err))
}

// Merge adds the counts and reasons of o into s.
func (s *Summary) Merge(o Summary) {
	s.Processed += o.Processed
	s.Updated += o.Updated
	s.Appended += o.Appended
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	for k, v := range o.SkipCounts {
		if s.SkipCounts == nil {
			s.SkipCounts = make(map[string]int)
		}
		s.SkipCounts[k] += v
	}
	s.Reasons = append(s.Reasons, o.Reasons...)
}

func (s Summary) String() string {
	var b strings.Builder
	if s.Operation != "" {
		b.WriteString(s.Operation)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "Updated: %d | Appended: %d | Skipped: %d", s.Updated, s.Appended, s.Skipped)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " | Failed: %d", s.Failed)
	}
	keys := make([]string, 0, len(s.SkipCounts))
	for k := range s.SkipCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " | Skipped (%s): %d", k, s.SkipCounts[k])
	}
	return b.String()
}
