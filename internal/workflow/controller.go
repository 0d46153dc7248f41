package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"smartsprint/internal/cache"
	"smartsprint/internal/domain"
	"smartsprint/internal/events"
	"smartsprint/internal/repo"
	"smartsprint/internal/view"
)

// ErrStale is returned when a result arrived after its view was left. The
// result has been discarded.
var ErrStale = errors.New("result discarded: view changed")

// API is the backend surface the workflows drive.
type API interface {
	CreateTicket(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error)
	AssignTicket(ctx context.Context, ticketID, developerID int64) error
	CompleteTicket(ctx context.Context, ticketID int64, form domain.CompletionForm) error
	Recommendations(ctx context.Context, ticketID int64) ([]domain.Recommendation, error)
	ExportJira(ctx context.Context, ticketID int64) error
	DeveloperPerformance(ctx context.Context, developerID int64) (*domain.DeveloperPerformance, error)
	Dashboard(ctx context.Context) (domain.DashboardPayload, json.RawMessage, error)
	SaveSystem(ctx context.Context) error
	OptimizeWorkload(ctx context.Context) (domain.OptimizeResult, error)
	BalanceWorkload(ctx context.Context) (domain.BalanceReport, error)
	ProgressReport(ctx context.Context) (domain.ProgressReport, error)
	AdjustPriorities(ctx context.Context) (domain.AdjustResult, error)
	ProcessDocument(ctx context.Context, path string) (domain.DocumentResult, error)
	ProcessSprintDocument(ctx context.Context, path string) (domain.SprintDocumentResult, error)
}

// Identity names the acting user for the activity log.
type Identity interface {
	User() (domain.User, bool)
}

// ReportArchive records saved progress reports.
type ReportArchive interface {
	InsertReport(ctx context.Context, generatedAt, path string) (repo.ReportRecord, error)
}

// Controller runs the multi-step workflows against the API, keeping the
// cache and the view selection consistent after every outcome.
type Controller struct {
	API        API
	Cache      *cache.Cache
	View       *view.Machine
	Identity   Identity
	Events     events.Writer
	Reports    ReportArchive
	Logger     *slog.Logger
	Now        func() time.Time
	Extensions []string

	flights singleflight.Group
}

func New(api API, c *cache.Cache, v *view.Machine) *Controller {
	return &Controller{
		API:        api,
		Cache:      c,
		View:       v,
		Now:        time.Now,
		Extensions: []string{".docx", ".txt"},
	}
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Start performs the initial full load after authentication.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.Cache.Reload(ctx); err != nil {
		return c.fail("load data", err)
	}
	return nil
}

// once runs fn unless a call with the same key is already in flight, in which
// case the caller shares that call's outcome.
func (c *Controller) once(key string, fn func() (any, error)) (any, error) {
	v, err, shared := c.flights.Do(key, fn)
	if shared {
		c.logger().Debug("joined in-flight call", "key", key)
	}
	return v, err
}

// bind derives a context that is also cancelled when scope ends.
func bind(ctx context.Context, scope view.Scope) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(scope.Context(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// fail turns err into the user-visible notice and returns it wrapped with op.
func (c *Controller) fail(op string, err error) error {
	if errors.Is(err, ErrStale) || errors.Is(err, context.Canceled) {
		return err
	}
	c.View.SetNotice(NoticeFor(err))
	c.logger().Warn("workflow failed", "op", op, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Controller) succeed(msg string) {
	c.View.SetNotice(msg)
}

// NoticeFor renders err for display.
func NoticeFor(err error) string {
	var (
		authErr   *domain.AuthError
		netErr    *domain.NetworkError
		schemaErr *domain.SchemaError
		valErr    *domain.ValidationError
		apiErr    *domain.APIError
	)
	switch {
	case errors.As(err, &authErr):
		return "Your session has expired. Please log in again."
	case errors.As(err, &netErr):
		return "Unable to reach the server. Please check your connection and try again."
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.As(err, &schemaErr):
		return "Unexpected response from server: " + schemaErr.Error()
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fmt.Sprintf("Request failed with status %d", apiErr.StatusCode)
	case errors.Is(err, domain.ErrInvalidState):
		return err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func (c *Controller) actor() string {
	if c.Identity == nil {
		return ""
	}
	if u, ok := c.Identity.User(); ok {
		return u.Username
	}
	return ""
}

func (c *Controller) record(ctx context.Context, evtType, kind, id string, payload events.EventPayload) {
	w := c.Events
	if w.Now == nil {
		w.Now = c.now
	}
	if err := w.Append(context.WithoutCancel(ctx), evtType, kind, id, c.actor(), payload); err != nil {
		c.logger().Error("record event", "type", evtType, "error", err)
	}
}
