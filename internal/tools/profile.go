package tools

import (
	"context"
	"fmt"
	"strings"
)

func (r *Registry) getCurrentTime(ctx context.Context, a args) string {
	return r.now().Format("2006-01-02 15:04:05")
}

func (r *Registry) getAchievements(ctx context.Context, a args) string {
	achievements, err := r.store.ListAchievements(ctx, r.owner)
	if err != nil {
		return failed("fetch achievements", err)
	}
	if len(achievements) == 0 {
		return "No achievements unlocked yet."
	}

	lines := make([]string, 0, len(achievements))
	for _, ach := range achievements {
		lines = append(lines, fmt.Sprintf("- %s: %s (Unlocked: %s)", ach.Name, ach.Description, day(ach.UnlockedAt)))
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) getXPLevel(ctx context.Context, a args) string {
	p, err := r.store.GetProfile(ctx, r.owner)
	if err != nil {
		return failed("fetch XP level", err)
	}
	return fmt.Sprintf("Level: %d | XP: %d", p.Level, p.XP)
}

func (r *Registry) getFinancialAdviceCategories(ctx context.Context, a args) string {
	return "Budgeting, Saving, Debt Reduction, Investing Basics, Subscription Management."
}
