package http

import (
	"context"
	"net/http"
	"time"

	"penny/internal/core"
	"penny/internal/log"
)

type dashboardData struct {
	User      core.User
	Month     string
	MonthName string
	PrevMonth string
	NextMonth string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	month := parseMonth(r)

	prev, _ := core.PrevMonthKey(month)
	next := ""
	if t, err := core.ParseMonthKey(month); err == nil {
		if candidate := core.MonthKey(t.AddDate(0, 1, 0)); candidate <= core.MonthKey(time.Now()) {
			next = candidate
		}
	}

	s.render(w, r, "dashboard_page", dashboardData{
		User:      user,
		Month:     month,
		MonthName: core.MonthLabel(month),
		PrevMonth: prev,
		NextMonth: next,
	})
}

type insightsData struct {
	User     core.User
	Month    string
	Insights core.MonthlyInsights

	// Percentage of the total budget spent, capped at 100 for the bar width.
	SpentPct   int
	OverBudget bool
	// Amount spent beyond the budget, as a positive value for display.
	OverBy      core.Money
	BarWidths   map[int64]int
	CategoryPct map[int64]int
}

// handleInsightsPartial renders the spend-vs-budget panel for one month.
// Results are cached per user and month for a few minutes and invalidated
// on writes.
func (s *Server) handleInsightsPartial(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	month := parseMonth(r)

	insights, err := s.loadInsights(r.Context(), user.ID, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load insights",
			log.FieldUserID, user.ID,
			log.FieldMonth, month,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not load insights")
		return
	}

	data := insightsData{
		User:        user,
		Month:       month,
		Insights:    insights,
		BarWidths:   make(map[int64]int),
		CategoryPct: make(map[int64]int),
	}

	if insights.Remaining.Cents < 0 {
		data.OverBudget = true
		data.OverBy = core.Money{Cents: -insights.Remaining.Cents}
	}
	if insights.TotalBudget.Cents > 0 {
		pct := int(insights.TotalSpent.Cents * 100 / insights.TotalBudget.Cents)
		if pct > 100 {
			pct = 100
		}
		data.SpentPct = pct
	}

	for _, cs := range insights.CategorySpending {
		if cs.Budget.Cents > 0 {
			pct := int(cs.Spent.Cents * 100 / cs.Budget.Cents)
			data.CategoryPct[cs.CategoryID] = pct
			if pct > 100 {
				pct = 100
			}
			data.BarWidths[cs.CategoryID] = pct
		}
	}

	s.render(w, r, "insights_partial", data)
}

type historyData struct {
	User    core.User
	History []core.MonthlySpend

	// Bar heights as a percentage of the busiest month.
	Heights map[string]int
}

// handleHistoryPartial renders the trailing 12 month spend chart.
func (s *Server) handleHistoryPartial(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	endMonth := core.MonthKey(time.Now())

	history, err := s.repo.MonthlyHistory(r.Context(), user.ID, endMonth, 12)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load history",
			log.FieldUserID, user.ID,
			log.FieldError, err)
		s.renderError(w, http.StatusInternalServerError, "Could not load history")
		return
	}

	var peak int64
	for _, p := range history {
		if p.Spent.Cents > peak {
			peak = p.Spent.Cents
		}
	}

	heights := make(map[string]int, len(history))
	for _, p := range history {
		if peak > 0 {
			heights[p.Month] = int(p.Spent.Cents * 100 / peak)
		}
	}

	s.render(w, r, "history_partial", historyData{
		User:    user,
		History: history,
		Heights: heights,
	})
}

func (s *Server) loadInsights(ctx context.Context, userID, month string) (core.MonthlyInsights, error) {
	key := s.insightsKey(userID, month)
	if cached, ok := s.insightsCache.Get(key); ok {
		return cached, nil
	}

	insights, err := s.repo.MonthlyInsights(ctx, userID, month)
	if err != nil {
		return core.MonthlyInsights{}, err
	}

	s.insightsCache.Set(key, insights)
	return insights, nil
}
