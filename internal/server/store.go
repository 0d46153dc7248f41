package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"smartsprint/internal/domain"
)

var (
	// ErrConflict is a request that is well formed but cannot be applied.
	ErrConflict = errors.New("conflict")
	// ErrBadRequest is a malformed or out-of-range request.
	ErrBadRequest = errors.New("bad request")
)

type completion struct {
	TicketID       int64   `json:"ticket_id"`
	DeveloperID    int64   `json:"developer_id"`
	EstimatedHours float64 `json:"estimated_hours"`
	CompletionTime float64 `json:"completion_time"`
	Revisions      int     `json:"revisions"`
	SentimentScore float64 `json:"sentiment_score"`
	CompletedAt    string  `json:"completed_at"`
}

// Store is the in-memory backend state served by the dev API.
type Store struct {
	Now func() time.Time
	// SnapshotPath, when set, is where Save writes the state.
	SnapshotPath string
	// JiraProject prefixes exported issue keys.
	JiraProject string

	mu          sync.Mutex
	tickets     []domain.Ticket
	developers  []domain.Developer
	completions []completion
	nextID      int64
}

type snapshot struct {
	Tickets     []domain.Ticket    `json:"tickets"`
	Developers  []domain.Developer `json:"developers"`
	Completions []completion       `json:"completions"`
}

func NewStore() *Store {
	return &Store{Now: time.Now, JiraProject: "SPRINT", nextID: 1}
}

// SeedStore returns a store with a small team and backlog.
func SeedStore() *Store {
	s := NewStore()
	s.developers = []domain.Developer{
		{ID: 1, Name: "Alice Chen", Skills: []string{"python", "backend", "api"}, Availability: 40, CurrentWorkload: 12, ExperienceLevel: 4},
		{ID: 2, Name: "Bilal Okafor", Skills: []string{"react", "frontend", "css"}, Availability: 32, CurrentWorkload: 8, ExperienceLevel: 3},
		{ID: 3, Name: "Carmen Ruiz", Skills: []string{"devops", "testing", "backend"}, Availability: 40, CurrentWorkload: 30, ExperienceLevel: 5},
	}
	for _, d := range []domain.TicketDraft{
		{Title: "Login API", Description: "Implement token based login for the backend api", Priority: domain.PriorityHigh, EstimatedHours: 8},
		{Title: "Dashboard layout", Description: "Build the react dashboard layout with responsive css", Priority: domain.PriorityMedium, EstimatedHours: 12},
		{Title: "CI pipeline", Description: "Set up devops pipeline with automated testing", Priority: domain.PriorityLow, EstimatedHours: 6},
	} {
		s.createLocked(d)
	}
	return s
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Complexity maps an estimate onto the 1..5 scale.
func Complexity(hours float64) int {
	switch {
	case hours <= 4:
		return 1
	case hours <= 8:
		return 2
	case hours <= 16:
		return 3
	case hours <= 32:
		return 4
	default:
		return 5
	}
}

func (s *Store) Tickets() []domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.tickets)
	if out == nil {
		out = []domain.Ticket{}
	}
	return out
}

func (s *Store) Developers() []domain.Developer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.developers)
	if out == nil {
		out = []domain.Developer{}
	}
	return out
}

func (s *Store) ticketLocked(id int64) (*domain.Ticket, error) {
	for i := range s.tickets {
		if s.tickets[i].ID == id {
			return &s.tickets[i], nil
		}
	}
	return nil, fmt.Errorf("Ticket with ID %d %w", id, domain.ErrNotFound)
}

func (s *Store) developerLocked(id int64) (*domain.Developer, error) {
	for i := range s.developers {
		if s.developers[i].ID == id {
			return &s.developers[i], nil
		}
	}
	return nil, fmt.Errorf("Developer with ID %d %w", id, domain.ErrNotFound)
}

func (s *Store) Ticket(id int64) (domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.ticketLocked(id)
	if err != nil {
		return domain.Ticket{}, err
	}
	return *t, nil
}

func (s *Store) AddDeveloper(d domain.Developer) domain.Developer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		for _, existing := range s.developers {
			d.ID = max(d.ID, existing.ID)
		}
		d.ID++
	}
	s.developers = append(s.developers, d)
	return d
}

func (s *Store) CreateTicket(d domain.TicketDraft) (domain.Ticket, error) {
	if strings.TrimSpace(d.Title) == "" {
		return domain.Ticket{}, fmt.Errorf("%w: title is required", ErrBadRequest)
	}
	if !d.Priority.Valid() {
		return domain.Ticket{}, fmt.Errorf("%w: Priority must be one of: low, medium, high, critical", ErrBadRequest)
	}
	if d.EstimatedHours <= 0 {
		return domain.Ticket{}, fmt.Errorf("%w: estimated_hours must be positive", ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(d), nil
}

func (s *Store) createLocked(d domain.TicketDraft) domain.Ticket {
	t := domain.Ticket{
		ID:             s.nextID,
		Title:          strings.TrimSpace(d.Title),
		Description:    strings.TrimSpace(d.Description),
		Status:         domain.StatusBacklog,
		Priority:       d.Priority,
		EstimatedHours: d.EstimatedHours,
		Complexity:     Complexity(d.EstimatedHours),
		Tasks:          []string{},
		Dependencies:   []int64{},
		CreatedAt:      s.now().UTC().Format(time.RFC3339),
	}
	s.nextID++
	s.tickets = append(s.tickets, t)
	return t
}

// Recommendations ranks developers by skill overlap and spare capacity.
func (s *Store) Recommendations(ticketID int64) ([]domain.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.ticketLocked(ticketID)
	if err != nil {
		return nil, err
	}
	text := strings.ToLower(t.Title + " " + t.Description)
	recs := []domain.Recommendation{}
	for _, d := range s.developers {
		var matched []string
		for _, skill := range d.Skills {
			if strings.Contains(text, strings.ToLower(skill)) {
				matched = append(matched, skill)
			}
		}
		spare := 0.0
		if d.Availability > 0 {
			spare = math.Max(0, 1-d.CurrentWorkload/d.Availability)
		}
		skillScore := 0.0
		if len(d.Skills) > 0 {
			skillScore = float64(len(matched)) / float64(len(d.Skills))
		}
		score := 0.6*skillScore + 0.3*spare + 0.1*float64(d.ExperienceLevel)/5
		recs = append(recs, domain.Recommendation{
			DeveloperID:   d.ID,
			DeveloperName: d.Name,
			MatchScore:    math.Round(score*100) / 100,
			SkillsMatch:   matched,
			Method:        "skills",
		})
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].MatchScore > recs[j].MatchScore })
	return recs, nil
}

func (s *Store) Assign(ticketID, developerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.ticketLocked(ticketID)
	if err != nil {
		return err
	}
	d, err := s.developerLocked(developerID)
	if err != nil {
		return err
	}
	if t.Status != domain.StatusBacklog {
		return fmt.Errorf("%w: ticket %d is %s", ErrConflict, ticketID, t.Status.Label())
	}
	if d.CurrentWorkload+t.EstimatedHours > d.Availability {
		return fmt.Errorf("%w: Assignment failed. Developer may not have enough availability.", ErrConflict)
	}
	d.CurrentWorkload += t.EstimatedHours
	t.Status = domain.StatusInProgress
	id := developerID
	t.AssignedTo = &id
	return nil
}

func (s *Store) Complete(ticketID int64, form domain.CompletionForm) error {
	if err := domain.ValidateForm(form); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.ticketLocked(ticketID)
	if err != nil {
		return err
	}
	if t.Status != domain.StatusInProgress || t.AssignedTo == nil {
		return fmt.Errorf("%w: Completion failed. Check if ticket exists and is assigned.", ErrConflict)
	}
	now := s.now().UTC().Format(time.RFC3339)
	t.Status = domain.StatusCompleted
	t.CompletedAt = &now
	if d, err := s.developerLocked(*t.AssignedTo); err == nil {
		d.CurrentWorkload = math.Max(0, d.CurrentWorkload-t.EstimatedHours)
	}
	s.completions = append(s.completions, completion{
		TicketID:       t.ID,
		DeveloperID:    *t.AssignedTo,
		EstimatedHours: t.EstimatedHours,
		CompletionTime: form.CompletionTime,
		Revisions:      form.Revisions,
		SentimentScore: form.SentimentScore,
		CompletedAt:    now,
	})
	return nil
}

func (s *Store) ExportJira(ticketID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.ticketLocked(ticketID)
	if err != nil {
		return err
	}
	if t.JiraID == nil {
		key := fmt.Sprintf("%s-%d", s.JiraProject, t.ID)
		t.JiraID = &key
	}
	return nil
}

// Performance aggregates the completion history of a developer. Developers
// without history have no performance data.
func (s *Store) Performance(developerID int64) (domain.DeveloperPerformance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.developerLocked(developerID); err != nil {
		return domain.DeveloperPerformance{}, err
	}
	var (
		n                    int
		totalTime, sentiment float64
		accuracy             float64
		history              []any
	)
	for _, c := range s.completions {
		if c.DeveloperID != developerID {
			continue
		}
		n++
		totalTime += c.CompletionTime
		sentiment += c.SentimentScore
		accuracy += estimateAccuracy(c.EstimatedHours, c.CompletionTime)
		history = append(history, map[string]any{"ticket_id": c.TicketID, "completion_time": c.CompletionTime, "completed_at": c.CompletedAt})
	}
	if n == 0 {
		return domain.DeveloperPerformance{}, fmt.Errorf("Developer performance data with ID %d %w", developerID, domain.ErrNotFound)
	}
	return domain.DeveloperPerformance{
		AverageCompletionTime: totalTime / float64(n),
		Accuracy:              accuracy / float64(n),
		TotalCompletedTickets: n,
		AverageSentiment:      sentiment / float64(n),
		HistoricalPerformance: history,
	}, nil
}

func estimateAccuracy(estimated, actual float64) float64 {
	if estimated <= 0 || actual <= 0 {
		return 0
	}
	return math.Min(estimated, actual) / math.Max(estimated, actual)
}

func (s *Store) Status() domain.SystemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Store) statusLocked() domain.SystemStatus {
	st := domain.SystemStatus{TotalTickets: len(s.tickets)}
	for _, t := range s.tickets {
		switch t.Status {
		case domain.StatusBacklog:
			st.BacklogTickets++
		case domain.StatusInProgress:
			st.InProgressTickets++
		case domain.StatusCompleted:
			st.CompletedTickets++
		}
	}
	for _, d := range s.developers {
		st.TotalWorkload += d.CurrentWorkload
		st.TotalAvailability += d.Availability
	}
	if st.TotalAvailability > 0 {
		st.UtilizationRate = round1(st.TotalWorkload / st.TotalAvailability * 100)
	}
	return st
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Save writes a JSON snapshot when SnapshotPath is set.
func (s *Store) Save() error {
	s.mu.Lock()
	snap := snapshot{Tickets: slices.Clone(s.tickets), Developers: slices.Clone(s.developers), Completions: slices.Clone(s.completions)}
	path := s.SnapshotPath
	s.mu.Unlock()
	if path == "" {
		return nil
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Load replaces the state with the snapshot at SnapshotPath, if present.
func (s *Store) Load() error {
	if s.SnapshotPath == "" {
		return nil
	}
	b, err := os.ReadFile(s.SnapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets, s.developers, s.completions = snap.Tickets, snap.Developers, snap.Completions
	s.nextID = 1
	for _, t := range s.tickets {
		s.nextID = max(s.nextID, t.ID+1)
	}
	return nil
}

// OptimizeWorkload assigns backlog tickets, highest priority first, to the
// developer with the most spare capacity that can take them.
func (s *Store) OptimizeWorkload() domain.OptimizeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	backlog := []*domain.Ticket{}
	for i := range s.tickets {
		if s.tickets[i].Status == domain.StatusBacklog {
			backlog = append(backlog, &s.tickets[i])
		}
	}
	sort.SliceStable(backlog, func(i, j int) bool {
		return priorityRank(backlog[i].Priority) > priorityRank(backlog[j].Priority)
	})
	res := domain.OptimizeResult{Assignments: []domain.WorkloadAssignment{}}
	for _, t := range backlog {
		var best *domain.Developer
		for i := range s.developers {
			d := &s.developers[i]
			if d.CurrentWorkload+t.EstimatedHours > d.Availability {
				continue
			}
			if best == nil || d.Availability-d.CurrentWorkload > best.Availability-best.CurrentWorkload {
				best = d
			}
		}
		if best == nil {
			continue
		}
		best.CurrentWorkload += t.EstimatedHours
		t.Status = domain.StatusInProgress
		id := best.ID
		t.AssignedTo = &id
		res.Assignments = append(res.Assignments, domain.WorkloadAssignment{
			TicketID:    t.ID,
			DeveloperID: best.ID,
			Score:       math.Round((1-best.Utilization())*100) / 100,
		})
	}
	return res
}

func priorityRank(p domain.Priority) int {
	switch p {
	case domain.PriorityCritical:
		return 3
	case domain.PriorityHigh:
		return 2
	case domain.PriorityMedium:
		return 1
	default:
		return 0
	}
}

// BalanceWorkload suggests moving hours from developers above average
// utilization to those below it. Nothing is changed.
func (s *Store) BalanceWorkload() domain.BalanceReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep := domain.BalanceReport{WorkloadDistribution: []domain.DeveloperLoad{}, Suggestions: []domain.BalanceSuggestion{}}
	if len(s.developers) == 0 {
		return rep
	}
	var sum float64
	for _, d := range s.developers {
		u := d.Utilization()
		sum += u
		rep.WorkloadDistribution = append(rep.WorkloadDistribution, domain.DeveloperLoad{
			DeveloperID:       d.ID,
			DeveloperName:     d.Name,
			CurrentWorkload:   d.CurrentWorkload,
			EffectiveCapacity: d.Availability,
			Utilization:       u,
		})
	}
	rep.AverageUtilization = sum / float64(len(s.developers))
	var over, under []domain.DeveloperLoad
	for _, l := range rep.WorkloadDistribution {
		switch {
		case l.Utilization > rep.AverageUtilization+0.2:
			over = append(over, l)
		case l.Utilization < rep.AverageUtilization-0.2:
			under = append(under, l)
		}
	}
	for i := 0; i < len(over) && i < len(under); i++ {
		hours := (over[i].Utilization - rep.AverageUtilization) * over[i].EffectiveCapacity
		rep.Suggestions = append(rep.Suggestions, domain.BalanceSuggestion{
			FromDeveloper: over[i].DeveloperName,
			ToDeveloper:   under[i].DeveloperName,
			TransferHours: math.Round(hours*10) / 10,
			Reason:        fmt.Sprintf("%s is at %.0f%% utilization", over[i].DeveloperName, over[i].Utilization*100),
		})
	}
	return rep
}

func (s *Store) ProgressReport() domain.ProgressReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statusLocked()
	rep := domain.ProgressReport{
		Summary: domain.ReportSummary{
			TotalTickets:      st.TotalTickets,
			CompletedTickets:  st.CompletedTickets,
			InProgressTickets: st.InProgressTickets,
			BacklogTickets:    st.BacklogTickets,
		},
		DeveloperMetrics: map[string]any{},
		Bottlenecks:      []domain.Bottleneck{},
		SlowTasks:        []domain.SlowTask{},
		Insights:         []domain.Insight{},
		GeneratedAt:      s.now().UTC().Format(time.RFC3339),
	}
	if st.TotalTickets > 0 {
		rep.Summary.CompletionRate = float64(st.CompletedTickets) / float64(st.TotalTickets)
	}
	for _, d := range s.developers {
		u := d.Utilization()
		rep.DeveloperMetrics[d.Name] = map[string]any{"utilization": u, "current_workload": d.CurrentWorkload}
		if u > 0.9 {
			severity := "medium"
			if u > 1 {
				severity = "high"
			}
			rep.Bottlenecks = append(rep.Bottlenecks, domain.Bottleneck{Type: "developer", DeveloperName: d.Name, Utilization: u, Severity: severity})
		}
	}
	for _, t := range s.tickets {
		if t.Status != domain.StatusCompleted && len(t.Dependencies) > 2 {
			rep.Bottlenecks = append(rep.Bottlenecks, domain.Bottleneck{Type: "task", TicketTitle: t.Title, Dependencies: len(t.Dependencies), Severity: "medium"})
		}
	}
	for _, c := range s.completions {
		if c.EstimatedHours > 0 && c.CompletionTime > c.EstimatedHours*1.2 {
			t, _ := s.ticketLocked(c.TicketID)
			title := ""
			if t != nil {
				title = t.Title
			}
			rep.SlowTasks = append(rep.SlowTasks, domain.SlowTask{
				TicketTitle:    title,
				EstimatedHours: c.EstimatedHours,
				ActualHours:    c.CompletionTime,
				OverrunRatio:   c.CompletionTime / c.EstimatedHours,
			})
		}
	}
	switch {
	case st.TotalTickets == 0:
		rep.Insights = append(rep.Insights, domain.Insight{Message: "No tickets yet."})
	case rep.Summary.CompletionRate >= 0.5:
		rep.Insights = append(rep.Insights, domain.Insight{Message: "Sprint is on track."})
	default:
		rep.Insights = append(rep.Insights, domain.Insight{Message: fmt.Sprintf("%d tickets are still in the backlog.", st.BacklogTickets)})
	}
	return rep
}

// AdjustPriorities raises backlog tickets that have waited longer than a
// week by one level.
func (s *Store) AdjustPriorities() domain.AdjustResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := domain.AdjustResult{Adjustments: []domain.PriorityAdjustment{}}
	now := s.now()
	for i := range s.tickets {
		t := &s.tickets[i]
		if t.Status != domain.StatusBacklog || t.Priority == domain.PriorityCritical {
			continue
		}
		created, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err != nil || now.Sub(created) < 7*24*time.Hour {
			continue
		}
		next := domain.Priorities[slices.Index(domain.Priorities, t.Priority)+1]
		res.Adjustments = append(res.Adjustments, domain.PriorityAdjustment{
			TicketID:    t.ID,
			OldPriority: t.Priority,
			NewPriority: next,
			Reason:      "waiting in backlog for more than a week",
		})
		t.Priority = next
	}
	return res
}

func checkDocument(path string) error {
	if path == "" {
		return fmt.Errorf("%w: No document path provided", ErrBadRequest)
	}
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".docx") && !strings.HasSuffix(lower, ".txt") {
		return fmt.Errorf("%w: Unsupported file format. Only .docx and .txt files are supported.", ErrBadRequest)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("Document with ID %s %w", path, domain.ErrNotFound)
	}
	return nil
}

// readLines returns the non-empty lines of a text document. Word documents
// are not parsed by the dev backend.
func readLines(path string) ([]string, error) {
	if strings.HasSuffix(strings.ToLower(path), ".docx") {
		return nil, fmt.Errorf("%w: Error processing document: .docx parsing is not available in the dev backend", ErrConflict)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

var taskLine = regexp.MustCompile(`(?i)^(?:task:|[-*]|\d+[.)])\s*(.+?)(?:\s*\((\d+(?:\.\d+)?)\s*h(?:ours?)?\))?$`)

func parseTask(line string) (domain.TicketDraft, bool) {
	m := taskLine.FindStringSubmatch(line)
	if m == nil {
		return domain.TicketDraft{}, false
	}
	d := domain.NewTicketDraft()
	d.Title = strings.TrimSpace(m[1])
	d.Description = d.Title
	if m[2] != "" {
		d.EstimatedHours, _ = strconv.ParseFloat(m[2], 64)
	}
	return d, d.Title != ""
}

// ProcessDocument creates a ticket for every task line in a text document.
func (s *Store) ProcessDocument(path string) (domain.DocumentResult, error) {
	if err := checkDocument(path); err != nil {
		return domain.DocumentResult{}, err
	}
	lines, err := readLines(path)
	if err != nil {
		return domain.DocumentResult{}, err
	}
	var drafts []domain.TicketDraft
	for _, line := range lines {
		if d, ok := parseTask(line); ok {
			drafts = append(drafts, d)
		}
	}
	if len(drafts) == 0 {
		return domain.DocumentResult{}, fmt.Errorf("%w: No tasks could be extracted from the document. Please ensure the document contains properly formatted tasks.", ErrConflict)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res := domain.DocumentResult{Message: domain.DocumentProcessedMessage, TasksExtracted: len(drafts)}
	for _, d := range drafts {
		res.Tickets = append(res.Tickets, s.createLocked(d))
	}
	res.TicketsCreated = len(res.Tickets)
	return res, nil
}

var (
	goalLine  = regexp.MustCompile(`(?i)^sprint goal:\s*(.+)$`)
	storyLine = regexp.MustCompile(`(?i)^(?:[-*]\s*)?(as an? .+?)\s*\((\d+)\s*(?:story )?points?\)$`)
)

// ProcessSprintDocument reads a sprint goal and user stories; every story
// becomes one ticket sized at four hours per point.
func (s *Store) ProcessSprintDocument(path string) (domain.SprintDocumentResult, error) {
	if err := checkDocument(path); err != nil {
		return domain.SprintDocumentResult{}, err
	}
	lines, err := readLines(path)
	if err != nil {
		return domain.SprintDocumentResult{}, err
	}
	res := domain.SprintDocumentResult{SprintGoal: "No sprint goal found", UserStories: []domain.UserStory{}}
	for _, line := range lines {
		if m := goalLine.FindStringSubmatch(line); m != nil {
			res.SprintGoal = strings.TrimSpace(m[1])
			continue
		}
		if m := storyLine.FindStringSubmatch(line); m != nil {
			points, _ := strconv.Atoi(m[2])
			res.UserStories = append(res.UserStories, domain.UserStory{Story: m[1], StoryPoints: points})
		}
	}
	if len(res.UserStories) == 0 {
		return res, fmt.Errorf("%w: No tasks could be generated from the sprint document. Please ensure the document contains properly formatted user stories.", ErrConflict)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, story := range res.UserStories {
		d := domain.NewTicketDraft()
		d.Title = story.Story
		d.Description = story.Story
		d.EstimatedHours = float64(max(story.StoryPoints, 1) * 4)
		res.Tickets = append(res.Tickets, s.createLocked(d))
	}
	res.Message = domain.SprintDocumentProcessedMessage
	res.TasksExtracted = len(res.Tickets)
	res.TicketsCreated = len(res.Tickets)
	return res, nil
}
