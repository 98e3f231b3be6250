package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lherron/ttags/internal/labels"
	"github.com/lherron/ttags/internal/logging"
	"github.com/lherron/ttags/internal/similarity"
)

// Operator is the person at the terminal. Confirm and Choose keep asking
// until they get a valid answer; an error means input is gone for good.
type Operator interface {
	Confirm(prompt string) (bool, error)
	Choose(prompt string, options []string) (string, error)
	Display(msg string)
}

// Mutator writes label assignments on the remote service
type Mutator interface {
	RemoveLabel(ctx context.Context, cardID, labelID string) error
	AddLabel(ctx context.Context, cardID, labelID string) error
}

// Invalidator is told whenever local data may have gone stale
type Invalidator interface {
	MarkDirty()
}

// Op is the kind of a label mutation
type Op string

const (
	OpRemove Op = "remove"
	OpAdd    Op = "add"
)

// Mutation describes one issued write and its outcome.
type Mutation struct {
	Canonical string
	Op        Op
	CardID    string
	CardName  string
	LabelID   string
	LabelName string
	Err       error
}

// Recorder receives every mutation after it returns.
type Recorder interface {
	RecordMutation(ctx context.Context, m Mutation)
}

// Summary counts what a pass did
type Summary struct {
	Offered int `json:"offered"`
	Merged  int `json:"merged"`
	Skipped int `json:"skipped"`
	Calls   int `json:"calls"`
}

// Planner walks similarity groups with the operator and applies the merges
// they accept.
type Planner struct {
	Operator Operator
	Mutator  Mutator
	Cache    Invalidator
	Recorder Recorder
	Log      logrus.FieldLogger
	// DryRun shows each accepted plan without issuing any call.
	DryRun bool
}

// Run offers each group to the operator. A failed write stops the pass;
// writes already issued stay in place.
func (p *Planner) Run(ctx context.Context, groups []similarity.Group, byRef *labels.CardIndex, byName *labels.NameIndex) (Summary, error) {
	var sum Summary
	log := logging.OrDiscard(p.Log)

	for _, group := range groups {
		sum.Offered++

		names := quoteAll(group)
		accept, err := p.Operator.Confirm(fmt.Sprintf("The following labels are similar: %s. Merge them under one label?", names))
		if err != nil {
			return sum, err
		}
		if !accept {
			p.Operator.Display("Not replacing, moving on.")
			sum.Skipped++
			continue
		}

		canonical, err := p.Operator.Choose("Which label should replace the others?", group)
		if err != nil {
			return sum, err
		}

		plan, err := PlanGroup(group, canonical, byRef, byName)
		if err != nil {
			return sum, err
		}
		if plan.Ambiguous {
			p.Operator.Display("Multiple labels found. Picking the first one.")
			log.WithFields(logrus.Fields{
				"name":       canonical,
				"candidates": len(plan.Candidates),
				"picked":     plan.Canonical.ID,
			}).Warn("ambiguous canonical label")
		}

		if p.DryRun {
			p.Operator.Display(Describe(plan))
			sum.Merged++
			continue
		}

		calls, err := p.Execute(ctx, plan)
		sum.Calls += calls
		if err != nil {
			return sum, fmt.Errorf("merge into %q: %w", canonical, err)
		}
		sum.Merged++
		log.WithFields(logrus.Fields{
			"canonical": canonical,
			"cards":     len(plan.Replaces),
		}).Info("group merged")
	}

	return sum, nil
}

// Execute issues remove-then-add for every replacement in order and returns
// how many calls were made. The cache is marked dirty before each call. The
// first failure stops execution; there is no rollback.
func (p *Planner) Execute(ctx context.Context, plan Plan) (int, error) {
	calls := 0
	for _, r := range plan.Replaces {
		if err := p.mutate(ctx, plan, OpRemove, r.Card.ID, r.Card.Name, r.From); err != nil {
			return calls + 1, err
		}
		calls++

		if err := p.mutate(ctx, plan, OpAdd, r.Card.ID, r.Card.Name, r.To); err != nil {
			return calls + 1, err
		}
		calls++
	}
	return calls, nil
}

func (p *Planner) mutate(ctx context.Context, plan Plan, op Op, cardID, cardName string, label labels.Ref) error {
	if p.Cache != nil {
		p.Cache.MarkDirty()
	}

	var err error
	switch op {
	case OpRemove:
		err = p.Mutator.RemoveLabel(ctx, cardID, label.ID)
	case OpAdd:
		err = p.Mutator.AddLabel(ctx, cardID, label.ID)
	}

	if p.Recorder != nil {
		p.Recorder.RecordMutation(ctx, Mutation{
			Canonical: plan.Canonical.Name,
			Op:        op,
			CardID:    cardID,
			CardName:  cardName,
			LabelID:   label.ID,
			LabelName: label.Name,
			Err:       err,
		})
	}

	if err != nil {
		logging.OrDiscard(p.Log).WithFields(logrus.Fields{
			"op":    op,
			"card":  cardID,
			"label": label.ID,
		}).WithError(err).Error("label mutation failed")
		return fmt.Errorf("%s label %s on card %s: %w", op, label.ID, cardID, err)
	}
	return nil
}

// Describe renders a plan for the operator.
func Describe(plan Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merge %s into %q (%s): %d card(s)", quoteAll(plan.Group), plan.Canonical.Name, plan.Canonical.ID, len(plan.Replaces))
	for _, r := range plan.Replaces {
		fmt.Fprintf(&b, "\n  %s (%s): -%q +%q", r.Card.Name, r.Card.ID, r.From.Name, r.To.Name)
	}
	return b.String()
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}
