package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"smartsprint/internal/app"
	"smartsprint/internal/config"
	"smartsprint/internal/db"
	"smartsprint/internal/domain"
	"smartsprint/internal/ingest"
	"smartsprint/internal/render"
	"smartsprint/internal/repo"
	"smartsprint/internal/server"
	"smartsprint/internal/tui"
	"smartsprint/internal/view"
)

var rootCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Smart Sprint client",
	Long: `Smart Sprint is a terminal client for the sprint planning API.
- Session: log in once; the token is kept in the workspace database (.smartsprint/) and restored on the next run.
- Tickets: create, assign from ranked developer recommendations, complete with a short retrospective.
- System: status, workload optimisation and balance, priority adjustment, progress reports.
- Documents: turn requirement and sprint documents into tickets, once or by watching a folder.
- Dashboard: the analytics summary rendered as tables, or the full interactive UI with 'sprint ui'.
- Dev backend: 'sprint serve-dev' runs an in-memory API with seeded data for local work.
- Activity log: every action is recorded locally, view with 'sprint log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SMARTSPRINT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "API request timeout (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	for _, name := range []string{"workspace", "json", "base-url", "timeout", "log-level", "log-format"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(ticketCmd())
	rootCmd.AddCommand(developerCmd())
	rootCmd.AddCommand(systemCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(sprintCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(uiCmd())
	rootCmd.AddCommand(serveDevCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
}

// --- session ---

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				in := bufio.NewReader(cmd.InOrStdin())
				if username == "" {
					username = prompt(in, cmd.OutOrStdout(), "Username: ")
				}
				if password == "" {
					password = prompt(in, cmd.OutOrStdout(), "Password: ")
				}
				if err := a.Session.Login(ctx, username, password); err != nil {
					return err
				}
				return printJSONOrTable(a.Session.Info(), func(w io.Writer) {
					info := a.Session.Info()
					fmt.Fprintf(w, "Logged in as %s (%s)\n", info.Username, info.Role)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				if _, err := a.Session.Restore(ctx); err != nil && !app.IsNotAuthenticated(err) {
					return err
				}
				a.Session.Logout(ctx)
				fmt.Println("Logged out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				if _, err := a.Session.Restore(ctx); err != nil && !app.IsNotAuthenticated(err) {
					return err
				}
				info := a.Session.Info()
				return printJSONOrTable(info, func(w io.Writer) {
					if !info.Authenticated {
						fmt.Fprintln(w, "Not logged in")
						if info.Notice != "" {
							fmt.Fprintln(w, info.Notice)
						}
						return
					}
					fmt.Fprintf(w, "%s (%s)", info.Username, info.Role)
					if info.ExpiresAt != nil {
						fmt.Fprintf(w, ", token expires in %s", info.ExpiresIn.Round(time.Minute))
					}
					fmt.Fprintln(w)
				})
			})
		},
	}
}

// --- tickets ---

func ticketCmd() *cobra.Command {
	t := &cobra.Command{Use: "ticket", Aliases: []string{"tickets"}, Short: "Work with tickets"}
	t.AddCommand(ticketListCmd())
	t.AddCommand(ticketShowCmd())
	t.AddCommand(ticketCreateCmd())
	t.AddCommand(ticketRecommendCmd())
	t.AddCommand(ticketAssignCmd())
	t.AddCommand(ticketCompleteCmd())
	t.AddCommand(ticketExportCmd())
	return t
}

func ticketListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				tickets := a.Cache.Tickets()
				if status != "" {
					tickets = a.Cache.TicketsByStatus(domain.Status(status))
				}
				return printJSONOrTable(tickets, func(w io.Writer) {
					render.Tickets(w, tickets, a.Cache.Developers())
				})
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: backlog, in_progress, completed")
	return cmd
}

func ticketShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				if err := a.View.OpenTicket(view.ViewTicket, id); err != nil {
					return err
				}
				t, ok := a.View.SelectedTicket(a.Cache)
				if !ok {
					return fmt.Errorf("ticket %d: %w", id, domain.ErrNotFound)
				}
				return printJSONOrTable(t, func(w io.Writer) { render.Ticket(w, t) })
			})
		},
	}
}

func ticketCreateCmd() *cobra.Command {
	draft := domain.NewTicketDraft()
	var priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			draft.Priority = domain.Priority(strings.ToLower(priority))
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				a.View.SetTicketDraft(draft)
				t, err := a.Controller.CreateTicket(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(t, func(w io.Writer) {
					fmt.Fprintln(w, a.View.Notice())
					render.Ticket(w, t)
				})
			})
		},
	}
	cmd.Flags().StringVar(&draft.Title, "title", "", "ticket title")
	cmd.Flags().StringVar(&draft.Description, "description", "", "ticket description")
	cmd.Flags().StringVar(&priority, "priority", string(domain.PriorityMedium), "low, medium, high or critical")
	cmd.Flags().Float64Var(&draft.EstimatedHours, "hours", draft.EstimatedHours, "estimated hours")
	return cmd
}

func ticketRecommendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <id>",
		Short: "Rank developers for a backlog ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				recs, err := recommend(ctx, a, id)
				if err != nil {
					return err
				}
				tl, ok := a.Controller.Timeline()
				out := struct {
					Recommendations []domain.Recommendation  `json:"recommendations"`
					Timeline        *domain.TimelineEstimate `json:"timeline,omitempty"`
				}{Recommendations: recs}
				if ok {
					out.Timeline = &tl
				}
				return printJSONOrTable(out, func(w io.Writer) { render.Recommendations(w, recs, out.Timeline) })
			})
		},
	}
}

func recommend(ctx context.Context, a *app.App, ticketID int64) ([]domain.Recommendation, error) {
	if err := a.View.Navigate(view.Assign); err != nil {
		return nil, err
	}
	if err := a.Controller.SelectTicket(ticketID); err != nil {
		return nil, err
	}
	return a.Controller.FetchRecommendations(ctx)
}

func ticketAssignCmd() *cobra.Command {
	var developerID int64
	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a backlog ticket (top recommendation unless --developer is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				recs, err := recommend(ctx, a, id)
				if err != nil {
					return err
				}
				devID := developerID
				if devID == 0 {
					if len(recs) == 0 {
						return fmt.Errorf("%w: no developer recommendations for ticket %d; pass --developer", domain.ErrInvalidState, id)
					}
					devID = recs[0].DeveloperID
				}
				if err := a.Controller.Assign(ctx, devID); err != nil {
					return err
				}
				return printNotice(a)
			})
		},
	}
	cmd.Flags().Int64Var(&developerID, "developer", 0, "developer id")
	return cmd
}

func ticketCompleteCmd() *cobra.Command {
	form := domain.NewCompletionForm()
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Complete an in-progress ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				if err := a.View.Navigate(view.Complete); err != nil {
					return err
				}
				if err := a.Controller.SelectForCompletion(id); err != nil {
					return err
				}
				a.Controller.UpdateCompletionForm(form)
				if err := a.Controller.SubmitCompletion(ctx); err != nil {
					return err
				}
				return printNotice(a)
			})
		},
	}
	cmd.Flags().Float64Var(&form.CompletionTime, "time", form.CompletionTime, "actual hours spent")
	cmd.Flags().IntVar(&form.Revisions, "revisions", form.Revisions, "number of revisions")
	cmd.Flags().Float64Var(&form.SentimentScore, "sentiment", form.SentimentScore, "sentiment between 0 and 1")
	return cmd
}

func ticketExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-jira <id>",
		Short: "Export a ticket to Jira",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				if err := a.Controller.ExportToJira(ctx, id); err != nil {
					return err
				}
				return printNotice(a)
			})
		},
	}
}

// --- developers ---

func developerCmd() *cobra.Command {
	d := &cobra.Command{Use: "developer", Aliases: []string{"developers"}, Short: "Work with developers"}
	d.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List developers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				devs := a.Cache.Developers()
				return printJSONOrTable(devs, func(w io.Writer) { render.Developers(w, devs) })
			})
		},
	})
	d.AddCommand(&cobra.Command{
		Use:   "performance <id>",
		Short: "Show developer performance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				if err := a.Controller.SelectDeveloper(id); err != nil {
					return err
				}
				perf, err := a.Controller.LoadPerformance(ctx)
				if err != nil {
					return err
				}
				dev, _ := a.View.SelectedDeveloper(a.Cache)
				return printJSONOrTable(perf, func(w io.Writer) { render.Performance(w, dev.Name, perf) })
			})
		},
	})
	return d
}

// --- system ---

func systemCmd() *cobra.Command {
	s := &cobra.Command{Use: "system", Short: "System status and workload actions"}
	s.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				st, _ := a.Cache.Status()
				return printJSONOrTable(st, func(w io.Writer) { render.Status(w, st) })
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "optimize",
		Short: "Assign backlog tickets to the best available developers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				res, err := a.Controller.OptimizeWorkload(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(res, func(w io.Writer) { render.Optimize(w, res) })
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "balance",
		Short: "Report workload balance and bottlenecks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				rep, err := a.Controller.BalanceWorkload(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(rep, func(w io.Writer) { render.Balance(w, rep) })
			})
		},
	})
	s.AddCommand(&cobra.Command{
		Use:   "adjust-priorities",
		Short: "Let the backend re-rank ticket priorities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				res, err := a.Controller.AdjustPriorities(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(res, func(w io.Writer) { render.Adjustments(w, res) })
			})
		},
	})
	s.AddCommand(systemReportCmd())
	s.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Persist all server data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				if err := a.Controller.SaveData(ctx); err != nil {
					return err
				}
				return printNotice(a)
			})
		},
	})
	return s
}

func systemReportCmd() *cobra.Command {
	var out string
	var list bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate and save a progress report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
					items, err := r.ListReports(ctx, 20)
					if err != nil {
						return err
					}
					return printJSONOrTable(items, func(w io.Writer) {
						for _, it := range items {
							fmt.Fprintf(w, "%d  %s  %s\n", it.ID, it.GeneratedAt, it.Path)
						}
					})
				})
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				dir := out
				if dir == "" {
					dir = a.Config.Reports.Dir
				}
				if !filepath.IsAbs(dir) {
					dir = filepath.Join(a.Workspace, dir)
				}
				path, rep, err := a.Controller.SaveProgressReport(ctx, dir)
				if err != nil {
					return err
				}
				return printJSONOrTable(rep, func(w io.Writer) {
					fmt.Fprint(w, render.ProgressReportText(rep))
					fmt.Fprintf(w, "\nSaved to %s\n", path)
				})
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "directory for the report file (default from config)")
	cmd.Flags().BoolVar(&list, "list", false, "list saved reports instead")
	return cmd
}

// --- documents ---

func documentCmd() *cobra.Command {
	d := &cobra.Command{Use: "document", Short: "Create tickets from requirement documents"}
	d.AddCommand(&cobra.Command{
		Use:   "process <path>",
		Short: "Process one requirement document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				res, err := a.Controller.ProcessDocumentAt(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res, func(w io.Writer) { render.Document(w, res) })
			})
		},
	})
	d.AddCommand(documentWatchCmd())
	return d
}

func documentWatchCmd() *cobra.Command {
	var sprintDocs bool
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process documents dropped into a folder until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				w := ingest.New(args[0], a.Config.Ingest.Extensions, func(ctx context.Context, path string) error {
					if sprintDocs {
						res, err := a.Controller.ProcessSprintDocumentAt(ctx, path)
						if err != nil {
							return err
						}
						render.SprintDocument(os.Stdout, res)
						return nil
					}
					res, err := a.Controller.ProcessDocumentAt(ctx, path)
					if err != nil {
						return err
					}
					render.Document(os.Stdout, res)
					return nil
				})
				w.Logger = a.Logger.With("component", "ingest")
				fmt.Printf("Watching %s for %s\n", args[0], strings.Join(a.Config.Ingest.Extensions, ", "))
				return w.Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&sprintDocs, "sprint", false, "treat files as sprint documents")
	return cmd
}

func sprintCmd() *cobra.Command {
	s := &cobra.Command{Use: "sprint-document", Aliases: []string{"sprint-doc"}, Short: "Sprint documents"}
	s.AddCommand(&cobra.Command{
		Use:   "process <path>",
		Short: "Process a sprint document into tickets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				res, err := a.Controller.ProcessSprintDocumentAt(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(res, func(w io.Writer) { render.SprintDocument(w, res) })
			})
		},
	})
	return s
}

// --- dashboard and UI ---

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the analytics dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				v, err := a.Controller.Dashboard(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(v, func(w io.Writer) { render.Dashboard(w, v) })
			})
		},
	}
}

func uiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Start the interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				if _, err := a.Session.Restore(ctx); err != nil && !app.IsNotAuthenticated(err) {
					return err
				}
				m := tui.NewModel(ctx, a.Controller, a.Session)
				dir := a.Config.Reports.Dir
				if !filepath.IsAbs(dir) {
					dir = filepath.Join(a.Workspace, dir)
				}
				m.SetReportDir(dir)
				opts := []tea.ProgramOption{tea.WithContext(ctx)}
				if a.Config.UI.AltScreen {
					opts = append(opts, tea.WithAltScreen())
				}
				_, err := tea.NewProgram(m, opts...).Run()
				if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
					return nil
				}
				return err
			})
		},
	}
}

// --- dev backend ---

func serveDevCmd() *cobra.Command {
	var addr, basePath, snapshot, jiraURL string
	var empty bool
	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run the in-memory development API with seeded data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"), overrides())
			if err != nil {
				return err
			}
			logger := app.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			store := server.SeedStore()
			if empty {
				store = server.NewStore()
			}
			store.SnapshotPath = snapshot
			if err := store.Load(); err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Store:          store,
				BasePath:       basePath,
				Auth:           server.AuthConfig{JWTSecret: viper.GetString("jwt-secret"), Logger: logger},
				JiraWebhookURL: jiraURL,
				Logger:         logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Smart Sprint dev API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at %s/docs)\n", addr, basePath, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:5000", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api", "API base path")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "file that system save writes and startup reads")
	cmd.Flags().StringVar(&jiraURL, "jira-webhook", "", "URL that receives exported tickets")
	cmd.Flags().BoolVar(&empty, "empty", false, "start without seed data")
	cmd.Flags().String("jwt-secret", "", "token signing secret (env SMARTSPRINT_JWT_SECRET)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

// --- log and config ---

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Local activity log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, f)
				if err != nil {
					return err
				}
				return printJSONOrTable(events, func(w io.Writer) { render.Events(w, events) })
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func configCmd() *cobra.Command {
	c := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default smartsprint.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("Wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	c.AddCommand(initCmd)
	c.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := app.ResolveConfig(workspace, overrides())
			if err != nil {
				return err
			}
			return printJSON(map[string]any{
				"config_file": config.Path(workspace),
				"database":    db.Path(workspace),
				"config":      cfg,
			})
		},
	})
	return c
}

// --- helpers ---

func overrides() app.Overrides {
	return app.Overrides{
		BaseURL:   viper.GetString("base-url"),
		Timeout:   viper.GetDuration("timeout"),
		LogLevel:  viper.GetString("log-level"),
		LogFormat: viper.GetString("log-format"),
	}
}

// withApp opens the workspace runtime. With needSession the stored session is
// restored and the cache loaded before fn runs.
func withApp(ctx context.Context, needSession bool, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace"), Overrides: overrides()})
	if err != nil {
		return err
	}
	defer a.Close()
	if needSession {
		if err := a.RequireSession(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	a, err := app.Open(ctx, app.Options{Workspace: viper.GetString("workspace"), Overrides: overrides()})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Repo)
}

func printNotice(a *app.App) error {
	notice := a.View.Notice()
	if viper.GetBool("json") {
		return printJSON(map[string]string{"message": notice})
	}
	fmt.Println(notice)
	return nil
}

func printJSONOrTable(v any, table func(io.Writer)) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	table(os.Stdout)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a valid id", s)}
	}
	return id, nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
