package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/shopspring/decimal"
)

const defaultGoalIcon = "Target"

func (r *Registry) getGoals(ctx context.Context, a args) string {
	goals, err := r.store.ListGoals(ctx, r.owner)
	if err != nil {
		return failed("fetch goals", err)
	}
	if len(goals) == 0 {
		return "No goals found."
	}

	lines := make([]string, 0, len(goals))
	for _, g := range goals {
		lines = append(lines, fmt.Sprintf("- ID: %s | %s: target %s, saved %s (%s)",
			g.ID, g.Name, money(g.TargetAmount), money(g.SavedAmount), g.Description))
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) createFinancialGoal(ctx context.Context, a args) string {
	const action = "create goal"

	name, err := a.requireStr("name")
	if err != nil {
		return failed(action, err)
	}
	description, err := a.requireStr("description")
	if err != nil {
		return failed(action, err)
	}
	target, err := a.requireAmount("target_amount")
	if err != nil {
		return failed(action, err)
	}

	g := &domain.Goal{
		OwnerID:      r.owner,
		Name:         name,
		Description:  description,
		TargetAmount: target,
		SavedAmount:  decimal.Zero,
		Icon:         a.strOr("icon", defaultGoalIcon),
	}
	if err := r.store.CreateGoal(ctx, g); err != nil {
		return failed(action, err)
	}
	return fmt.Sprintf("Successfully created goal '%s' with a target of %s.", g.Name, money(g.TargetAmount))
}

func (r *Registry) updateGoal(ctx context.Context, a args) string {
	const action = "update goal"

	id, err := a.id("goal_id")
	if err != nil {
		return byIDFailure("Goal", action, err)
	}
	saved, hasSaved, err := a.amount("saved_amount")
	if err != nil {
		return failed(action, err)
	}
	target, hasTarget, err := a.amount("target_amount")
	if err != nil {
		return failed(action, err)
	}

	g, err := r.store.GetGoal(ctx, r.owner, id)
	if err != nil {
		return byIDFailure("Goal", action, err)
	}
	if hasSaved {
		g.SavedAmount = saved
	}
	if hasTarget {
		g.TargetAmount = target
	}

	if err := r.store.UpdateGoal(ctx, g); err != nil {
		return byIDFailure("Goal", action, err)
	}
	return "Goal updated successfully."
}

func (r *Registry) deleteGoal(ctx context.Context, a args) string {
	const action = "delete goal"

	id, err := a.id("goal_id")
	if err != nil {
		return byIDFailure("Goal", action, err)
	}
	if _, err := r.store.GetGoal(ctx, r.owner, id); err != nil {
		return byIDFailure("Goal", action, err)
	}
	if err := r.store.DeleteGoal(ctx, r.owner, id); err != nil {
		return byIDFailure("Goal", action, err)
	}
	return "Goal deleted successfully."
}
