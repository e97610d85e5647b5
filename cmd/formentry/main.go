package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/formentry/internal/config"
	"github.com/ehr/formentry/internal/htmlform"
	"github.com/ehr/formentry/internal/platform/auth"
	"github.com/ehr/formentry/internal/platform/dataset"
	"github.com/ehr/formentry/internal/platform/db"
	"github.com/ehr/formentry/internal/platform/middleware"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "formentry",
		Short:        "Clinical form entry server",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(renderCmd())
	root.AddCommand(submitCmd())
	return root
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}
	return logger.Level(cfg.Level()).With().Timestamp().Logger()
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	svc    *htmlform.Services
	forms  htmlform.Loader
	pool   *pgxpool.Pool
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// openApp loads the configuration and wires the services to PostgreSQL, or to
// memory seeded with the configured dataset when no database is set.
func openApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg, logOut)
	loc, err := cfg.FormLocale()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		forms:  htmlform.Loader{Dir: cfg.FormsDir},
	}

	if cfg.InMemory() {
		a.svc = htmlform.NewMemServices(loc, logger)
		if err := seed(ctx, cfg, a.svc); err != nil {
			return nil, err
		}
		logger.Info().Str("dataset", datasetName(cfg)).Msg("using in-memory store")
		return a, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to database")
	a.pool = pool
	a.svc = htmlform.NewPGServices(pool, loc, logger)
	return a, nil
}

func datasetName(cfg *config.Config) string {
	if cfg.Dataset == "" {
		return "standard"
	}
	return cfg.Dataset
}

func seed(ctx context.Context, cfg *config.Config, svc *htmlform.Services) error {
	var (
		d   *dataset.Dataset
		err error
	)
	if cfg.Dataset == "" {
		d, err = dataset.Standard()
	} else {
		d, err = dataset.ReadFile(cfg.Dataset)
	}
	if err != nil {
		return err
	}
	return d.Load(ctx, dataset.Targets{
		Concepts: svc.Concepts,
		Identity: svc.Identity,
		Admin:    svc.Admin,
	})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the form entry API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.BodyLimit("1M"))

	authCfg := auth.JWTConfig{SigningKey: []byte(a.cfg.AuthSigningKey)}
	if a.cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(authCfg))
	} else {
		e.Use(auth.JWTMiddleware(authCfg))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.pool))

	htmlform.NewHandler(a.svc, a.forms).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func runServer(ctx context.Context) error {
	a, err := openApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()

	e := newServer(a)

	addr := ":" + a.cfg.Port
	go func() {
		a.logger.Info().Str("addr", addr).Str("forms", a.cfg.FormsDir).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	openMigrator := func(ctx context.Context, dir string) (*db.Migrator, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if cfg.InMemory() {
			return nil, nil, fmt.Errorf("DATABASE_URL is not set")
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, err
		}
		fsys := db.Migrations()
		if dir != "" {
			fsys = os.DirFS(dir)
		}
		return db.NewMigrator(pool, fsys), pool.Close, nil
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, done, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer done()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the built-in set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, done, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer done()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the built-in set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatuses(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <form> <patient-id>",
		Short: "Render a form in ENTER mode for a patient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.enterSession(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s.HTMLToDisplay())
			return nil
		},
	}
	return cmd
}

func submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <form> <patient-id>",
		Short: "Submit a form for a patient with widget values given as --param w1=value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetStringArray("param")
			params, err := parseParams(raw)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.enterSession(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return submit(ctx, cmd.OutOrStdout(), s, params)
		},
	}
	cmd.Flags().StringArrayP("param", "p", nil, "Widget value as name=value (repeatable)")
	return cmd
}

func (a *app) enterSession(ctx context.Context, formName, patientArg string) (*htmlform.Session, error) {
	id, err := strconv.Atoi(patientArg)
	if err != nil {
		return nil, fmt.Errorf("invalid patient id %q", patientArg)
	}
	patient, err := a.svc.Identity.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	form, err := a.forms.Load(formName)
	if err != nil {
		return nil, err
	}
	return htmlform.NewSession(ctx, a.svc, patient, nil, htmlform.ModeEnter, form)
}

// parseParams turns name=value pairs into submission parameters.
func parseParams(raw []string) (url.Values, error) {
	params := url.Values{}
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid param %q, want name=value", kv)
		}
		params.Add(name, value)
	}
	return params, nil
}

func submit(ctx context.Context, out io.Writer, s *htmlform.Session, params url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)

	s.PrepareForSubmit()
	if errs := s.SubmissionController().ValidateSubmission(s.Context(), req); len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].ID < errs[j].ID })
		for _, e := range errs {
			fmt.Fprintln(out, e.String())
		}
		return fmt.Errorf("%d validation error(s)", len(errs))
	}
	if err := s.SubmissionController().HandleFormSubmission(s, req); err != nil {
		return err
	}
	created := s.SubmissionActions().EncountersToCreate()
	if len(created) == 0 {
		return fmt.Errorf("form does not create an encounter")
	}
	if err := s.ApplyActions(ctx); err != nil {
		return err
	}
	for _, enc := range created {
		fmt.Fprintf(out, "created encounter %s with %d obs\n", enc.ID, len(enc.AllObs(false)))
	}
	return nil
}
