package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"decisio/api/internal/decision"
)

func sampleSnapshot(summary string) Snapshot {
	return Snapshot{
		RecordID: "dec-1",
		Title:    "Pick a laptop",
		Analysis: decision.AnalysisResult{
			Summary: summary,
			CriteriaAnalysis: []decision.CriterionAnalysis{
				{Name: "Price", Weight: 4, Explanation: "Budget matters most."},
			},
			OptionsAnalysis: []decision.AnalysisOption{
				{
					Name: "Laptop A",
					Pros: []string{"Cheap"},
					Cons: []string{"Slow"},
					Scores: []decision.CriterionScore{
						{CriterionName: "Price", Score: 8},
					},
					TotalScore: 8,
				},
				{
					Name: "Laptop B",
					Pros: []string{"Fast"},
					Cons: []string{"Expensive"},
					Scores: []decision.CriterionScore{
						{CriterionName: "Price", Score: 4},
					},
					TotalScore: 4,
				},
			},
			Recommendation: decision.Recommendation{
				SuggestedOption: "Laptop A",
				Reasoning:       []string{"Best value."},
			},
			ReflectionQuestions: []string{"Is speed really secondary?"},
		},
	}
}

func TestRecordArchiveLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := sampleSnapshot("First take")
	if err := svc.EnsureRecordRepo("dec-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureRecordRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "dec-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// Idempotent on an existing archive.
	if err := svc.EnsureRecordRepo("dec-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureRecordRepo() second call error = %v", err)
	}

	refined := sampleSnapshot("Second take after refinement")
	refined.Instruction = "Weigh price higher"
	commit, err := svc.CommitVersion("dec-1", refined, "Avery", "Refine: weigh price higher")
	if err != nil {
		t.Fatalf("CommitVersion() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("dec-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Message != "Refine: weigh price higher" {
		t.Fatalf("expected newest commit first, got %q", history[0].Message)
	}

	snapshot, err := svc.SnapshotByHash("dec-1", commit.Hash)
	if err != nil {
		t.Fatalf("SnapshotByHash() error = %v", err)
	}
	if snapshot.Analysis.Summary != "Second take after refinement" {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.Instruction != "Weigh price higher" {
		t.Fatalf("expected instruction preserved, got %q", snapshot.Instruction)
	}
}

func TestHistoryHonorsLimit(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureRecordRepo("dec-1", sampleSnapshot("v1"), "Avery"); err != nil {
		t.Fatalf("EnsureRecordRepo() error = %v", err)
	}
	for i := 2; i <= 5; i++ {
		next := sampleSnapshot(fmt.Sprintf("v%d", i))
		if _, err := svc.CommitVersion("dec-1", next, "Avery", fmt.Sprintf("Version %d", i)); err != nil {
			t.Fatalf("CommitVersion() error = %v", err)
		}
	}

	history, err := svc.History("dec-1", 3)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	if history[0].Message != "Version 5" {
		t.Fatalf("expected newest first, got %q", history[0].Message)
	}
}

func TestConcurrentCommitsSameRecord(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureRecordRepo("dec-1", sampleSnapshot("baseline"), "Avery"); err != nil {
		t.Fatalf("EnsureRecordRepo() error = %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := sampleSnapshot(fmt.Sprintf("concurrent-%02d", idx))
			if _, err := svc.CommitVersion("dec-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("CommitVersion() concurrent error = %v", err)
		}
	}

	history, err := svc.History("dec-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d commits, got %d", writers+1, len(history))
	}
}

func TestRemoveDeletesArchive(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureRecordRepo("dec-1", sampleSnapshot("v1"), "Avery"); err != nil {
		t.Fatalf("EnsureRecordRepo() error = %v", err)
	}
	if err := svc.Remove("dec-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "dec-1")); !os.IsNotExist(err) {
		t.Fatalf("expected archive gone, stat err = %v", err)
	}
}
