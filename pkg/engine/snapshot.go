package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/hostcomply/pkg/compliance"
)

// Record is the persisted verdict of one resource.
type Record struct {
	ResourceID string            `json:"resource_id"`
	Rule       string            `json:"rule,omitempty"`
	Section    string            `json:"section,omitempty"`
	Status     compliance.Status `json:"status"`
	Message    string            `json:"message,omitempty"`
	Error      bool              `json:"error,omitempty"`
}

// Failing reports whether the record counts against the host.
func (r Record) Failing() bool {
	return r.Error || r.Status == compliance.NonCompliant
}

// Snapshot holds the verdicts of a session, keyed by resource id.
type Snapshot struct {
	Action  compliance.Action `json:"action"`
	Created time.Time         `json:"created"`
	Records []Record          `json:"records"`
	mu      sync.RWMutex
}

// NewSnapshot creates an empty snapshot
func NewSnapshot(action compliance.Action) *Snapshot {
	return &Snapshot{
		Action:  action,
		Created: time.Now().UTC(),
		Records: make([]Record, 0),
	}
}

// AddOutcomes records outcomes. A resource seen twice keeps its latest
// verdict. Skipped outcomes are ignored.
func (s *Snapshot) AddOutcomes(outcomes []Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range outcomes {
		if o.Skipped {
			continue
		}
		rec := Record{
			ResourceID: o.ResourceID,
			Rule:       o.Rule,
			Section:    o.Benchmark.DottedSection(),
			Status:     o.Status,
			Message:    o.Message(),
			Error:      o.Err != nil,
		}

		exists := false
		for i, existing := range s.Records {
			if existing.ResourceID == rec.ResourceID {
				s.Records[i] = rec
				exists = true
				break
			}
		}
		if !exists {
			s.Records = append(s.Records, rec)
		}
	}
}

// SaveSnapshot writes the snapshot as JSON.
func (s *Snapshot) SaveSnapshot(filename string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the contents with the snapshot stored in filename.
func (s *Snapshot) LoadSnapshot(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse snapshot %s: %w", filename, err)
	}
	return nil
}

// SnapshotDiff classifies failing resources against a baseline.
type SnapshotDiff struct {
	// New fail now but did not fail in the baseline.
	New []Record
	// Fixed failed in the baseline and no longer fail.
	Fixed []Record
	// Unchanged fail in both.
	Unchanged []Record
}

// CompareSnapshot compares s, the current run, with baseline. A baseline
// failure missing from the current run counts as fixed.
func (s *Snapshot) CompareSnapshot(baseline *Snapshot) SnapshotDiff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	baseline.mu.RLock()
	defer baseline.mu.RUnlock()

	before := make(map[string]Record, len(baseline.Records))
	for _, r := range baseline.Records {
		before[r.ResourceID] = r
	}
	now := make(map[string]Record, len(s.Records))
	for _, r := range s.Records {
		now[r.ResourceID] = r
	}

	var diff SnapshotDiff
	for _, r := range s.Records {
		if !r.Failing() {
			continue
		}
		if old, ok := before[r.ResourceID]; ok && old.Failing() {
			diff.Unchanged = append(diff.Unchanged, r)
		} else {
			diff.New = append(diff.New, r)
		}
	}
	for _, r := range baseline.Records {
		if !r.Failing() {
			continue
		}
		if cur, ok := now[r.ResourceID]; !ok || !cur.Failing() {
			diff.Fixed = append(diff.Fixed, r)
		}
	}

	for _, list := range [][]Record{diff.New, diff.Fixed, diff.Unchanged} {
		sort.Slice(list, func(i, j int) bool { return list[i].ResourceID < list[j].ResourceID })
	}
	return diff
}

// GetReport returns a text summary of the diff
func (d SnapshotDiff) GetReport(baselinePath string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Snapshot Comparison (vs %s):\n", baselinePath))
	sb.WriteString("--------------------------------------------------\n")

	sb.WriteString(fmt.Sprintf("NEW FAILURES: %d\n", len(d.New)))
	for _, r := range d.New {
		sb.WriteString(fmt.Sprintf("  [+] %s\n", describe(r)))
	}
	sb.WriteString(fmt.Sprintf("FIXED: %d\n", len(d.Fixed)))
	for _, r := range d.Fixed {
		sb.WriteString(fmt.Sprintf("  [-] %s\n", describe(r)))
	}
	sb.WriteString(fmt.Sprintf("UNCHANGED FAILURES: %d\n", len(d.Unchanged)))
	for i, r := range d.Unchanged {
		if i == 10 {
			sb.WriteString(fmt.Sprintf("  ... and %d more.\n", len(d.Unchanged)-10))
			break
		}
		sb.WriteString(fmt.Sprintf("  [=] %s\n", describe(r)))
	}
	return sb.String()
}

func describe(r Record) string {
	s := r.ResourceID
	if r.Section != "" {
		s += " (" + r.Section + ")"
	}
	if r.Message != "" {
		s += " - " + r.Message
	}
	return s
}
