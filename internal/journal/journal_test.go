package journal

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/lherron/ttags/internal/merge"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func mutation(op merge.Op, card, label string, err error) merge.Mutation {
	return merge.Mutation{
		Canonical: "label1",
		Op:        op,
		CardID:    card,
		CardName:  "card " + card,
		LabelID:   label,
		LabelName: "name-" + label,
		Err:       err,
	}
}

func TestPassLifecycle(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	w, err := j.BeginPass(ctx, "edit")
	if err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}
	w.RecordMutation(ctx, mutation(merge.OpRemove, "c1", "x", nil))
	w.RecordMutation(ctx, mutation(merge.OpAdd, "c1", "labelid1", nil))
	if err := w.Finish(ctx, merge.Summary{Merged: 1, Calls: 2}, nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	passes, err := j.Passes(ctx, 0)
	if err != nil {
		t.Fatalf("Passes failed: %v", err)
	}
	if len(passes) != 1 {
		t.Fatalf("expected 1 pass, got %d", len(passes))
	}
	p := passes[0]
	if p.ID != w.ID() || p.Status != StatusCompleted || p.Strategy != "edit" {
		t.Errorf("unexpected pass %+v", p)
	}
	if p.GroupsMerged != 1 || p.Calls != 2 || p.FinishedAt == "" {
		t.Errorf("expected summary to be stored, got %+v", p)
	}

	entries, err := j.Entries(ctx, w.ID())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Op != "remove" || entries[1].Op != "add" {
		t.Errorf("expected issue order remove, add; got %s, %s", entries[0].Op, entries[1].Op)
	}
	if entries[1].LabelName != "name-labelid1" || entries[1].CardName != "card c1" {
		t.Errorf("unexpected entry %+v", entries[1])
	}

	incomplete, err := j.Incomplete(ctx, w.ID())
	if err != nil {
		t.Fatalf("Incomplete failed: %v", err)
	}
	if len(incomplete) != 0 {
		t.Errorf("expected no incomplete cards, got %+v", incomplete)
	}
}

func TestIncomplete_RemoveWithoutAdd(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	w, err := j.BeginPass(ctx, "edit")
	if err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}
	w.RecordMutation(ctx, mutation(merge.OpRemove, "c1", "x", nil))
	w.RecordMutation(ctx, mutation(merge.OpAdd, "c1", "labelid1", nil))
	w.RecordMutation(ctx, mutation(merge.OpRemove, "c2", "x", nil))
	runErr := errors.New("status 500")
	w.RecordMutation(ctx, mutation(merge.OpAdd, "c2", "labelid1", runErr))
	if err := w.Finish(ctx, merge.Summary{Calls: 4}, runErr); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	incomplete, err := j.Incomplete(ctx, w.ID())
	if err != nil {
		t.Fatalf("Incomplete failed: %v", err)
	}
	if len(incomplete) != 1 || incomplete[0].CardID != "c2" {
		t.Fatalf("expected c2 to be incomplete, got %+v", incomplete)
	}

	entries, err := j.Entries(ctx, w.ID())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Status != EntryFailed || last.Error != "status 500" {
		t.Errorf("expected failed entry with error, got %+v", last)
	}

	passes, err := j.Passes(ctx, 1)
	if err != nil {
		t.Fatalf("Passes failed: %v", err)
	}
	if passes[0].Status != StatusAborted || passes[0].Error != "status 500" {
		t.Errorf("expected aborted pass, got %+v", passes[0])
	}
}

func TestPasses_NewestFirstWithLimit(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		w, err := j.BeginPass(ctx, "ratio")
		if err != nil {
			t.Fatalf("BeginPass failed: %v", err)
		}
		ids = append(ids, w.ID())
	}

	passes, err := j.Passes(ctx, 2)
	if err != nil {
		t.Fatalf("Passes failed: %v", err)
	}
	if len(passes) != 2 {
		t.Fatalf("expected 2 passes, got %d", len(passes))
	}
	if passes[0].ID != ids[2] || passes[1].ID != ids[1] {
		t.Errorf("expected newest first, got %s, %s", passes[0].ID, passes[1].ID)
	}
	if passes[0].Status != StatusRunning {
		t.Errorf("expected unfinished pass to be running, got %s", passes[0].Status)
	}
}

func TestResolve(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	w, err := j.BeginPass(ctx, "edit")
	if err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}

	got, err := j.Resolve(ctx, w.ID()[:8])
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != w.ID() {
		t.Errorf("expected %s, got %s", w.ID(), got)
	}

	if _, err := j.Resolve(ctx, "zzzz"); !errors.Is(err, ErrPassNotFound) {
		t.Errorf("expected ErrPassNotFound, got %v", err)
	}

	if _, err := j.BeginPass(ctx, "edit"); err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}
	if _, err := j.Resolve(ctx, ""); !errors.Is(err, ErrAmbiguousPass) {
		t.Errorf("expected ErrAmbiguousPass for empty prefix, got %v", err)
	}
}

func TestRecordMutation_FailureIsLogged(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), logger)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ctx := context.Background()
	w, err := j.BeginPass(ctx, "edit")
	if err != nil {
		t.Fatalf("BeginPass failed: %v", err)
	}
	j.Close()

	w.RecordMutation(ctx, mutation(merge.OpRemove, "c1", "x", nil))

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
	if !strings.Contains(entry.Message, "journal write failed") {
		t.Errorf("unexpected message %q", entry.Message)
	}
}

func TestPassWriter_ImplementsRecorder(t *testing.T) {
	var _ merge.Recorder = (*PassWriter)(nil)
	var _ merge.Recorder = (*LazyPass)(nil)
}

func TestLazyPass(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	idle := j.Lazy("edit")
	if err := idle.Finish(ctx, merge.Summary{Offered: 1, Skipped: 1}, nil); err != nil {
		t.Fatalf("Finish on idle pass failed: %v", err)
	}
	if idle.ID() != "" {
		t.Errorf("expected no pass id, got %s", idle.ID())
	}
	passes, err := j.Passes(ctx, 0)
	if err != nil {
		t.Fatalf("Passes failed: %v", err)
	}
	if len(passes) != 0 {
		t.Fatalf("expected no passes for an idle run, got %d", len(passes))
	}

	lazy := j.Lazy("ratio")
	lazy.RecordMutation(ctx, mutation(merge.OpRemove, "c1", "x", nil))
	lazy.RecordMutation(ctx, mutation(merge.OpAdd, "c1", "labelid1", nil))
	if err := lazy.Finish(ctx, merge.Summary{Merged: 1, Calls: 2}, nil); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	entries, err := j.Entries(ctx, lazy.ID())
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected both mutations in one pass, got %d", len(entries))
	}
}
