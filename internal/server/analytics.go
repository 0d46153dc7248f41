package server

import (
	"fmt"
	"time"

	"smartsprint/internal/domain"
)

// SprintDays is the length of the burndown window.
const SprintDays = 10

// Dashboard computes the analytics document. Rates and shares are
// percentages in 0..100.
func (s *Store) Dashboard() domain.DashboardPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	st := s.statusLocked()

	summary := &domain.DashboardSummary{
		TotalTickets:      st.TotalTickets,
		CompletedTickets:  st.CompletedTickets,
		InProgressTickets: st.InProgressTickets,
		BacklogTickets:    st.BacklogTickets,
		UtilizationRate:   st.UtilizationRate,
	}
	if st.TotalTickets > 0 {
		summary.CompletionRate = round1(float64(st.CompletedTickets) / float64(st.TotalTickets) * 100)
	}
	if n := len(s.completions); n > 0 {
		var total float64
		for _, c := range s.completions {
			total += c.CompletionTime
		}
		summary.AvgCompletionTime = round1(total / float64(n))
	}

	p := domain.DashboardPayload{
		Summary:              summary,
		TicketTrends:         []domain.TicketTrend{},
		DeveloperPerformance: []domain.DeveloperPerfRow{},
		PriorityDistribution: []domain.PriorityShare{},
		ComplexityAnalysis:   []domain.ComplexityShare{},
		WorkloadDistribution: []domain.WorkloadShare{},
		VelocityTracking:     []domain.VelocityPoint{},
		BurndownData:         []domain.BurndownPoint{},
	}

	share := func(n int) float64 {
		if st.TotalTickets == 0 {
			return 0
		}
		return round1(float64(n) / float64(st.TotalTickets) * 100)
	}
	byPriority := map[domain.Priority]int{}
	byComplexity := map[int]int{}
	for _, t := range s.tickets {
		byPriority[t.Priority]++
		byComplexity[t.Complexity]++
	}
	for _, pr := range []domain.Priority{domain.PriorityCritical, domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow} {
		if n := byPriority[pr]; n > 0 {
			p.PriorityDistribution = append(p.PriorityDistribution, domain.PriorityShare{Priority: pr, Count: n, Percentage: share(n)})
		}
	}
	for level := 1; level <= 5; level++ {
		if n := byComplexity[level]; n > 0 {
			p.ComplexityAnalysis = append(p.ComplexityAnalysis, domain.ComplexityShare{Complexity: level, Count: n, Percentage: share(n)})
		}
	}

	for _, d := range s.developers {
		util := round1(d.Utilization() * 100)
		p.WorkloadDistribution = append(p.WorkloadDistribution, domain.WorkloadShare{
			DeveloperID:       d.ID,
			DeveloperName:     d.Name,
			CurrentWorkload:   d.CurrentWorkload,
			Availability:      d.Availability,
			RemainingCapacity: d.Availability - d.CurrentWorkload,
			Utilization:       util,
		})
		row := domain.DeveloperPerfRow{
			DeveloperID:     d.ID,
			DeveloperName:   d.Name,
			Utilization:     util,
			Availability:    d.Availability,
			CurrentWorkload: d.CurrentWorkload,
			Skills:          d.Skills,
		}
		var acc, sent, hours float64
		for _, c := range s.completions {
			if c.DeveloperID != d.ID {
				continue
			}
			row.TicketsCompleted++
			acc += estimateAccuracy(c.EstimatedHours, c.CompletionTime)
			sent += c.SentimentScore
			hours += c.EstimatedHours
		}
		if row.TicketsCompleted > 0 {
			n := float64(row.TicketsCompleted)
			row.Accuracy = round1(acc / n * 100)
			row.Sentiment = round1(sent / n * 100)
			row.Velocity = round1(hours)
		}
		p.DeveloperPerformance = append(p.DeveloperPerformance, row)
	}

	for day := 6; day >= 0; day-- {
		date := now.AddDate(0, 0, -day).Format(time.DateOnly)
		trend := domain.TicketTrend{Date: date}
		for _, t := range s.tickets {
			if len(t.CreatedAt) >= 10 && t.CreatedAt[:10] == date {
				trend.Created++
			}
			if t.CompletedAt != nil && len(*t.CompletedAt) >= 10 && (*t.CompletedAt)[:10] == date {
				trend.Completed++
			}
		}
		trend.BacklogChange = trend.Created - trend.Completed
		p.TicketTrends = append(p.TicketTrends, trend)
	}

	planned := st.TotalAvailability / 4
	for week := 3; week >= 0; week-- {
		start := now.AddDate(0, 0, -7*week-int(now.Weekday()))
		end := start.AddDate(0, 0, 7)
		var actual float64
		for _, c := range s.completions {
			ts, err := time.Parse(time.RFC3339, c.CompletedAt)
			if err == nil && !ts.Before(start) && ts.Before(end) {
				actual += c.EstimatedHours
			}
		}
		pt := domain.VelocityPoint{
			Week:            fmt.Sprintf("Week %d", 4-week),
			WeekStart:       start.Format(time.DateOnly),
			PlannedVelocity: round1(planned),
			ActualVelocity:  round1(actual),
			Variance:        round1(actual - planned),
		}
		if planned > 0 {
			pt.VariancePercentage = round1((actual - planned) / planned * 100)
		}
		p.VelocityTracking = append(p.VelocityTracking, pt)
	}

	var total, remaining float64
	for _, t := range s.tickets {
		total += t.EstimatedHours
		if t.Status != domain.StatusCompleted {
			remaining += t.EstimatedHours
		}
	}
	for day := 0; day < SprintDays; day++ {
		date := now.AddDate(0, 0, day-SprintDays+1).Format(time.DateOnly)
		var completedToday float64
		for _, c := range s.completions {
			if len(c.CompletedAt) >= 10 && c.CompletedAt[:10] == date {
				completedToday += c.EstimatedHours
			}
		}
		p.BurndownData = append(p.BurndownData, domain.BurndownPoint{
			Date:           date,
			RemainingWork:  round1(remaining),
			IdealRemaining: round1(total * float64(SprintDays-1-day) / float64(SprintDays-1)),
			CompletedToday: round1(completedToday),
		})
	}
	return p
}
