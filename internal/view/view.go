package view

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"smartsprint/internal/domain"
)

type View string

const (
	Dashboard   View = "dashboard"
	Tickets     View = "tickets"
	ViewTicket  View = "viewTicket"
	Developers  View = "developers"
	Create      View = "create"
	Assign      View = "assign"
	Complete    View = "complete"
	Status      View = "status"
	Performance View = "performance"
	Document    View = "document"
	Sprint      View = "sprint"
	Save        View = "save"
)

// All lists the views in navigation order.
var All = []View{Dashboard, Tickets, Developers, Create, Assign, Complete, Status, Performance, Document, Sprint, Save, ViewTicket}

func (v View) Valid() bool {
	return slices.Contains(All, v)
}

func (v View) Title() string {
	switch v {
	case Dashboard:
		return "Dashboard"
	case Tickets:
		return "Tickets"
	case ViewTicket:
		return "Ticket"
	case Developers:
		return "Developers"
	case Create:
		return "Create Ticket"
	case Assign:
		return "Assign Ticket"
	case Complete:
		return "Complete Ticket"
	case Status:
		return "System Status"
	case Performance:
		return "Developer Performance"
	case Document:
		return "Process Document"
	case Sprint:
		return "Sprint Document"
	case Save:
		return "Save Data"
	default:
		return string(v)
	}
}

// Selection is the context carried between views. Entities are held by
// identifier and must be re-resolved against the cache when displayed.
type Selection struct {
	TicketID              *int64
	DeveloperID           *int64
	Recommendations       []domain.Recommendation
	RecommendationsLoaded bool
	Timeline              *domain.TimelineEstimate
	Performance           *domain.DeveloperPerformance
	PerformanceLoaded     bool
}

func (s Selection) clone() Selection {
	out := s
	out.Recommendations = slices.Clone(s.Recommendations)
	if s.TicketID != nil {
		id := *s.TicketID
		out.TicketID = &id
	}
	if s.DeveloperID != nil {
		id := *s.DeveloperID
		out.DeveloperID = &id
	}
	if s.Timeline != nil {
		tl := *s.Timeline
		out.Timeline = &tl
	}
	return out
}

// ClearAssignment drops the ticket, recommendations and timeline.
func (s *Selection) ClearAssignment() {
	s.TicketID = nil
	s.Recommendations = nil
	s.RecommendationsLoaded = false
	s.Timeline = nil
}

// ClearPerformance drops the developer and performance data.
func (s *Selection) ClearPerformance() {
	s.DeveloperID = nil
	s.Performance = nil
	s.PerformanceLoaded = false
}

// TicketLookup resolves tickets by id, typically *cache.Cache.
type TicketLookup interface {
	Ticket(id int64) (domain.Ticket, bool)
}

// DeveloperLookup resolves developers by id, typically *cache.Cache.
type DeveloperLookup interface {
	Developer(id int64) (domain.Developer, bool)
}

// Machine holds the active view, the selection context and the form drafts.
// Every activation gets a fresh scope; results bound to an older scope are
// rejected by Update.
type Machine struct {
	mu         sync.Mutex
	parent     context.Context
	active     View
	generation uint64
	scopeCtx   context.Context
	cancel     context.CancelFunc

	sel             Selection
	ticketDraft     domain.TicketDraft
	completionDraft domain.CompletionForm
	documentPath    string
	sprintPath      string
	notice          string
	listeners       []func(View)
}

// New returns a machine on the dashboard. parent bounds every view scope.
func New(parent context.Context) *Machine {
	m := &Machine{
		parent:          parent,
		active:          Dashboard,
		ticketDraft:     domain.NewTicketDraft(),
		completionDraft: domain.NewCompletionForm(),
	}
	m.scopeCtx, m.cancel = context.WithCancel(parent)
	return m
}

func (m *Machine) Active() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Navigate is the navigation-bar path. Entering assign, complete or
// performance resets the context those views start from.
func (m *Machine) Navigate(v View) error {
	if !v.Valid() {
		return fmt.Errorf("unknown view %q", v)
	}
	m.mu.Lock()
	switch v {
	case Assign:
		m.sel.ClearAssignment()
	case Complete:
		m.sel.TicketID = nil
	case Performance:
		m.sel.ClearPerformance()
	}
	m.activateLocked(v)
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	notify(listeners, v)
	return nil
}

// OpenTicket is the row-action path: the ticket is carried into v and
// nothing else is cleared.
func (m *Machine) OpenTicket(v View, ticketID int64) error {
	switch v {
	case ViewTicket, Assign, Complete:
	default:
		return fmt.Errorf("view %q does not take a ticket", v)
	}
	m.mu.Lock()
	if m.sel.TicketID == nil || *m.sel.TicketID != ticketID {
		m.sel.Recommendations = nil
		m.sel.RecommendationsLoaded = false
		m.sel.Timeline = nil
	}
	id := ticketID
	m.sel.TicketID = &id
	m.activateLocked(v)
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	notify(listeners, v)
	return nil
}

// OpenDeveloper is the developer-card path into the performance view.
func (m *Machine) OpenDeveloper(developerID int64) {
	m.mu.Lock()
	if m.sel.DeveloperID == nil || *m.sel.DeveloperID != developerID {
		m.sel.Performance = nil
		m.sel.PerformanceLoaded = false
	}
	id := developerID
	m.sel.DeveloperID = &id
	m.activateLocked(Performance)
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	notify(listeners, Performance)
}

// OnChange registers fn to run after every activation.
func (m *Machine) OnChange(fn func(View)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *Machine) activateLocked(v View) {
	m.cancel()
	m.active = v
	m.generation++
	m.scopeCtx, m.cancel = context.WithCancel(m.parent)
}

func notify(listeners []func(View), v View) {
	for _, fn := range listeners {
		fn(v)
	}
}

// Scope binds asynchronous work to the current activation.
type Scope struct {
	m          *Machine
	ctx        context.Context
	view       View
	generation uint64
}

// Scope returns the lifetime scope of the active view.
func (m *Machine) Scope() Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Scope{m: m, ctx: m.scopeCtx, view: m.active, generation: m.generation}
}

// Context is cancelled as soon as another view is activated.
func (s Scope) Context() context.Context { return s.ctx }

func (s Scope) View() View { return s.view }

// Active reports whether the scope's activation is still current.
func (s Scope) Active() bool {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.generation == s.generation
}

// Update applies fn to the selection only if scope is still active. It
// reports whether fn ran.
func (m *Machine) Update(scope Scope, fn func(*Selection)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scope.m != m || scope.generation != m.generation {
		return false
	}
	fn(&m.sel)
	return true
}

// Mutate applies fn to the selection regardless of scope.
func (m *Machine) Mutate(fn func(*Selection)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.sel)
}

func (m *Machine) Selection() Selection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel.clone()
}

// SelectedTicket re-resolves the selected ticket against the cache.
func (m *Machine) SelectedTicket(lookup TicketLookup) (domain.Ticket, bool) {
	m.mu.Lock()
	id := m.sel.TicketID
	m.mu.Unlock()
	if id == nil {
		return domain.Ticket{}, false
	}
	return lookup.Ticket(*id)
}

// SelectedDeveloper re-resolves the selected developer against the cache.
func (m *Machine) SelectedDeveloper(lookup DeveloperLookup) (domain.Developer, bool) {
	m.mu.Lock()
	id := m.sel.DeveloperID
	m.mu.Unlock()
	if id == nil {
		return domain.Developer{}, false
	}
	return lookup.Developer(*id)
}

func (m *Machine) TicketDraft() domain.TicketDraft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticketDraft
}

func (m *Machine) SetTicketDraft(d domain.TicketDraft) {
	m.mu.Lock()
	m.ticketDraft = d
	m.mu.Unlock()
}

func (m *Machine) ResetTicketDraft() {
	m.SetTicketDraft(domain.NewTicketDraft())
}

// CompletionDraft persists across ticket reselection for the whole session.
func (m *Machine) CompletionDraft() domain.CompletionForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completionDraft
}

func (m *Machine) SetCompletionDraft(f domain.CompletionForm) {
	m.mu.Lock()
	m.completionDraft = f
	m.mu.Unlock()
}

func (m *Machine) DocumentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.documentPath
}

func (m *Machine) SetDocumentPath(p string) {
	m.mu.Lock()
	m.documentPath = p
	m.mu.Unlock()
}

func (m *Machine) SprintDocumentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sprintPath
}

func (m *Machine) SetSprintDocumentPath(p string) {
	m.mu.Lock()
	m.sprintPath = p
	m.mu.Unlock()
}

// Notice is the user-visible message left by the last workflow outcome.
func (m *Machine) Notice() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notice
}

func (m *Machine) SetNotice(msg string) {
	m.mu.Lock()
	m.notice = msg
	m.mu.Unlock()
}

// Close cancels the active scope.
func (m *Machine) Close() {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
}
