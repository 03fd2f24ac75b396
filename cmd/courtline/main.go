package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"courtline/internal/config"
	"courtline/internal/db"
	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/migrate"
	"courtline/internal/repo"
	"courtline/internal/server"
	"courtline/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "courtline",
	Short: "Courtline CLI",
	Long: `Courtline runs the marriage committee workflow backend.
Applications move through a fixed nine-stage review sequence, couples work
through a 25-week courtship curriculum at a pace of one topic per rolling
seven days, and an inactivity monitor expires idle sessions.`,
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("COURTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(applicationCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(sessionsCmd())
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if basePath != "" {
				cfg.Server.BasePath = basePath
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))
			e := engine.New(conn, cfg)
			sessions := session.NewStore(conn, cfg, log)
			monitor := session.NewMonitor(sessions)
			monitor.Start()
			defer monitor.Stop()

			authCfg := server.AuthConfig{
				ServiceTokenSecret: os.Getenv("COURTLINE_SERVICE_TOKEN_SECRET"),
				Log:                log,
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				Sessions: sessions,
				BasePath: cfg.Server.BasePath,
				Auth:     authCfg,
				Log:      log,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Courtline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			v, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			fmt.Printf("schema at version %d\n", v)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default courtline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage accounts"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	user.AddCommand(userActiveCmd("activate", true))
	user.AddCommand(userActiveCmd("deactivate", false))
	return user
}

func userCreateCmd() *cobra.Command {
	var email, username, password, fullName, role, region, division, church, gender string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch role {
			case domain.RoleSingle, domain.RoleCommitteeMember, domain.RoleCentralCommittee, domain.RoleOverseer:
			default:
				return fmt.Errorf("invalid role %q", role)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				hash, err := session.HashPassword(password)
				if err != nil {
					return err
				}
				now := time.Now().UTC().Format(time.RFC3339)
				u := domain.User{
					ID:           uuid.NewString(),
					Email:        email,
					Username:     username,
					PasswordHash: hash,
					FullName:     fullName,
					Role:         role,
					Region:       region,
					Division:     division,
					LocalChurch:  church,
					Gender:       gender,
					IsActive:     true,
					CreatedAt:    now,
					UpdatedAt:    now,
				}
				if err := e.Repo.InsertUser(ctx, u); err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&fullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&role, "role", domain.RoleSingle, "account role")
	cmd.Flags().StringVar(&region, "region", "", "region")
	cmd.Flags().StringVar(&division, "division", "", "division")
	cmd.Flags().StringVar(&church, "local-church", "", "local church")
	cmd.Flags().StringVar(&gender, "gender", "", "male or female")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}

func userListCmd() *cobra.Command {
	var f repo.UserFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Full Name", "Role", "Region", "Active"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Username, u.FullName, u.Role, u.Region, u.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Role, "role", "", "role filter")
	cmd.Flags().StringVar(&f.Region, "region", "", "region filter")
	return cmd
}

func userActiveCmd(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				now := time.Now().UTC().Format(time.RFC3339)
				if err := r.SetUserActive(ctx, args[0], active, now); err != nil {
					return err
				}
				if !active {
					if err := r.DeleteSessionsForUser(ctx, args[0]); err != nil {
						return err
					}
				}
				fmt.Println("ok")
				return nil
			})
		},
	}
}

func applicationCmd() *cobra.Command {
	app := &cobra.Command{Use: "application", Short: "Inspect applications"}
	app.AddCommand(applicationListCmd())
	app.AddCommand(applicationShowCmd())
	app.AddCommand(applicationCourtshipCmd())
	return app
}

func applicationListCmd() *cobra.Command {
	var f repo.ApplicationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				apps, err := r.ListApplications(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(apps)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Number", "Partner", "Stage", "Status", "Assigned"})
				for _, a := range apps {
					assigned := ""
					if a.AssignedCommitteeMemberID != nil {
						assigned = *a.AssignedCommitteeMemberID
					}
					tw.AppendRow(table.Row{a.ApplicationNumber, a.PartnerName, a.CurrentStage, a.Status, assigned})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage filter")
	cmd.Flags().StringVar(&f.Search, "search", "", "search by number or partner name")
	return cmd
}

func applicationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <application-id>",
		Short: "Show an application with its stage history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				app, err := r.GetApplication(ctx, args[0])
				if err != nil {
					return err
				}
				history, err := r.ListStageHistory(ctx, app.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"application": app,
					"history":     history,
				})
			})
		},
	}
	return cmd
}

func applicationCourtshipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courtship <application-id>",
		Short: "Show courtship tracker state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				weeks, err := r.ListCourtshipWeeks(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(weeks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Week", "Status", "Completed At"})
				for _, w := range weeks {
					completed := ""
					if w.CompletedAt != nil {
						completed = *w.CompletedAt
					}
					tw.AppendRow(table.Row{w.Week, w.Status, completed})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show workflow counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				byStage, err := r.CountApplicationsByStage(ctx)
				if err != nil {
					return err
				}
				byStatus, err := r.CountApplicationsByStatus(ctx)
				if err != nil {
					return err
				}
				byRole, err := r.CountUsersByRole(ctx)
				if err != nil {
					return err
				}
				liveSessions, err := r.CountSessions(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"applications_by_stage":  byStage,
					"applications_by_status": byStatus,
					"users_by_role":          byRole,
					"active_sessions":        liveSessions,
				})
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func sessionsCmd() *cobra.Command {
	sessions := &cobra.Command{Use: "sessions", Short: "Manage login sessions"}
	sessions.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Expire idle sessions now",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, nil))
			store := session.NewStore(conn, cfg, log)
			n := session.NewMonitor(store).Sweep(cmd.Context())
			fmt.Printf("expired %d sessions\n", n)
			return nil
		},
	})
	return sessions
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn, cfg))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
