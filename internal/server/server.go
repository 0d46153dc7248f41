package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"smartsprint/internal/domain"
)

// Config for the dev backend handler.
type Config struct {
	Store    *Store
	BasePath string
	Auth     AuthConfig
	// JiraWebhookURL, when set, receives every exported ticket.
	JiraWebhookURL string
	Logger         *slog.Logger
}

func (e *ApiError) GetStatus() int { return e.StatusCode }
func (e *ApiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &ApiError{Message: message, StatusCode: status}
}

// New returns an HTTP handler serving the sprint API from cfg.Store.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Auth.Accounts == nil {
		cfg.Auth.Accounts = DefaultAccounts()
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = cfg.Logger
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		if len(errs) > 0 {
			details := make([]string, 0, len(errs))
			for _, e := range errs {
				details = append(details, e.Error())
			}
			msg = msg + ": " + strings.Join(details, "; ")
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Smart Sprint API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	jira := newJiraForwarder(cfg.JiraWebhookURL, logger)
	registerHealth(group)
	registerLogin(group, cfg.Store, cfg.Auth)
	registerTickets(group, cfg.Store, jira)
	registerDevelopers(group, cfg.Store)
	registerSystem(group, cfg.Store)
	registerDocuments(group, cfg.Store)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
				"elapsed", time.Since(start))
		})
	}
}

// handleError maps store errors onto the error envelope.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrBadRequest):
		return newAPIError(http.StatusBadRequest, trimSentinel(err, ErrBadRequest))
	case errors.As(err, &ve):
		return newAPIError(http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrConflict):
		return newAPIError(http.StatusConflict, trimSentinel(err, ErrConflict))
	default:
		return newAPIError(http.StatusInternalServerError, "internal error: "+err.Error())
	}
}

func trimSentinel(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	r.Get(path.Join(basePath, "openapi.json"), func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
	r.Get(path.Join(basePath, "docs"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, docsHTML(basePath))
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	open := map[string]bool{
		path.Join(basePath, "login"):  true,
		path.Join(basePath, "health"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Put, item.Post, item.Delete, item.Patch} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func docsHTML(basePath string) string {
	specURL := path.Join("/", basePath, "openapi.json")
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <title>Smart Sprint API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => { SwaggerUIBundle({ url: '%s', dom_id: '#swagger-ui' }); };
    </script>
  </body>
</html>`, specURL)
}

var defaultErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

type idPath struct {
	ID int64 `path:"id"`
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{Status: "ok"}}, nil
	})
}

func registerLogin(api huma.API, s *Store, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/login",
		Summary:     "Exchange credentials for a token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body domain.LoginResponse `json:"body"`
	}, error) {
		username := strings.TrimSpace(input.Body.Username)
		if username == "" || input.Body.Password == "" {
			return nil, newAPIError(http.StatusBadRequest, "Username and password are required")
		}
		acct, ok := authCfg.verify(username, input.Body.Password)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "Invalid username or password")
		}
		token, err := signToken(authCfg.secret(), username, acct.Role, s.now())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.LoginResponse `json:"body"`
		}{Body: domain.LoginResponse{Token: token, Username: username, Role: acct.Role}}, nil
	})
}

func registerTickets(api huma.API, s *Store, jira *jiraForwarder) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets",
		Summary:     "List tickets",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Ticket `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Ticket `json:"body"`
		}{Body: s.Tickets()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-ticket",
		Method:        http.MethodPost,
		Path:          "/tickets",
		Summary:       "Create ticket",
		DefaultStatus: http.StatusCreated,
		Errors:        defaultErrors,
	}, func(ctx context.Context, input *struct {
		Body domain.TicketDraft `json:"body"`
	}) (*struct {
		Body domain.Ticket `json:"body"`
	}, error) {
		t, err := s.CreateTicket(input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Ticket `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}",
		Summary:     "Get ticket",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Ticket `json:"body"`
	}, error) {
		t, err := s.Ticket(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Ticket `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ticket-recommendations",
		Method:      http.MethodGet,
		Path:        "/tickets/{id}/recommendations",
		Summary:     "Rank developers for a ticket",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *idPath) (*struct {
		Body []domain.Recommendation `json:"body"`
	}, error) {
		recs, err := s.Recommendations(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Recommendation `json:"body"`
		}{Body: recs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets/{id}/assign",
		Summary:     "Assign ticket",
		Description: "Without developer_id the best recommended developer is used.",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		idPath
		Body AssignRequest `json:"body" required:"false"`
	}) (*struct {
		Body SuccessResponse `json:"body"`
	}, error) {
		devID := input.Body.DeveloperID
		if devID == nil {
			recs, err := s.Recommendations(input.ID)
			if err != nil {
				return nil, handleError(err)
			}
			if len(recs) == 0 {
				return nil, newAPIError(http.StatusConflict, "No developer available for this ticket")
			}
			devID = &recs[0].DeveloperID
		} else if *devID <= 0 {
			return nil, newAPIError(http.StatusBadRequest, "developer_id must be a positive integer")
		}
		if err := s.Assign(input.ID, *devID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SuccessResponse `json:"body"`
		}{Body: SuccessResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-ticket",
		Method:      http.MethodPost,
		Path:        "/tickets/{id}/complete",
		Summary:     "Complete ticket",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		idPath
		Body CompleteRequest `json:"body"`
	}) (*struct {
		Body SuccessResponse `json:"body"`
	}, error) {
		if err := s.Complete(input.ID, input.Body.form()); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SuccessResponse `json:"body"`
		}{Body: SuccessResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-jira",
		Method:      http.MethodPost,
		Path:        "/tickets/{id}/export-jira",
		Summary:     "Export ticket to Jira",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *idPath) (*struct {
		Body SuccessResponse `json:"body"`
	}, error) {
		if err := s.ExportJira(input.ID); err != nil {
			return nil, handleError(err)
		}
		t, err := s.Ticket(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := jira.Forward(ctx, t); err != nil {
			return nil, newAPIError(http.StatusConflict, "Export failed")
		}
		return &struct {
			Body SuccessResponse `json:"body"`
		}{Body: SuccessResponse{Success: true}}, nil
	})
}

func registerDevelopers(api huma.API, s *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "list-developers",
		Method:      http.MethodGet,
		Path:        "/developers",
		Summary:     "List developers",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Developer `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Developer `json:"body"`
		}{Body: s.Developers()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "developer-performance",
		Method:      http.MethodGet,
		Path:        "/developers/{id}/performance",
		Summary:     "Developer performance",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.DeveloperPerformance `json:"body"`
	}, error) {
		perf, err := s.Performance(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DeveloperPerformance `json:"body"`
		}{Body: perf}, nil
	})
}

func registerSystem(api huma.API, s *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "system-status",
		Method:      http.MethodGet,
		Path:        "/system/status",
		Summary:     "System status",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.SystemStatus `json:"body"`
	}, error) {
		return &struct {
			Body domain.SystemStatus `json:"body"`
		}{Body: s.Status()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "system-save",
		Method:      http.MethodPost,
		Path:        "/system/save",
		Summary:     "Persist backend state",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SuccessResponse `json:"body"`
	}, error) {
		if err := s.Save(); err != nil {
			return nil, handleError(fmt.Errorf("%w: %v", ErrConflict, err))
		}
		return &struct {
			Body SuccessResponse `json:"body"`
		}{Body: SuccessResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "optimize-workload",
		Method:      http.MethodPost,
		Path:        "/system/optimize-workload",
		Summary:     "Assign backlog tickets",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.OptimizeResult `json:"body"`
	}, error) {
		return &struct {
			Body domain.OptimizeResult `json:"body"`
		}{Body: s.OptimizeWorkload()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "balance-workload",
		Method:      http.MethodGet,
		Path:        "/system/balance-workload",
		Summary:     "Workload balancing suggestions",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.BalanceReport `json:"body"`
	}, error) {
		return &struct {
			Body domain.BalanceReport `json:"body"`
		}{Body: s.BalanceWorkload()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "progress-report",
		Method:      http.MethodGet,
		Path:        "/system/progress-report",
		Summary:     "Progress report",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.ProgressReport `json:"body"`
	}, error) {
		return &struct {
			Body domain.ProgressReport `json:"body"`
		}{Body: s.ProgressReport()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "adjust-priorities",
		Method:      http.MethodPost,
		Path:        "/system/adjust-priorities",
		Summary:     "Raise priorities of stale backlog tickets",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.AdjustResult `json:"body"`
	}, error) {
		return &struct {
			Body domain.AdjustResult `json:"body"`
		}{Body: s.AdjustPriorities()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Dashboard analytics",
		Errors:      defaultErrors,
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.DashboardPayload `json:"body"`
	}, error) {
		return &struct {
			Body domain.DashboardPayload `json:"body"`
		}{Body: s.Dashboard()}, nil
	})
}

func registerDocuments(api huma.API, s *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "process-document",
		Method:      http.MethodPost,
		Path:        "/process-document",
		Summary:     "Create tickets from a task document",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		Body DocumentRequest `json:"body"`
	}) (*struct {
		Body domain.DocumentResult `json:"body"`
	}, error) {
		res, err := s.ProcessDocument(strings.TrimSpace(input.Body.Path))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DocumentResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "process-sprint-document",
		Method:      http.MethodPost,
		Path:        "/process-sprint-document",
		Summary:     "Create tickets from a sprint planning document",
		Errors:      defaultErrors,
	}, func(ctx context.Context, input *struct {
		Body DocumentRequest `json:"body"`
	}) (*struct {
		Body domain.SprintDocumentResult `json:"body"`
	}, error) {
		res, err := s.ProcessSprintDocument(strings.TrimSpace(input.Body.Path))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.SprintDocumentResult `json:"body"`
		}{Body: res}, nil
	})
}
