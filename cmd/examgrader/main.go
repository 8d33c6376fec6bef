package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/examgrader/internal/export"
	"github.com/pavelanni/examgrader/internal/grading"
	"github.com/pavelanni/examgrader/internal/handler"
	appI18n "github.com/pavelanni/examgrader/internal/i18n"
	"github.com/pavelanni/examgrader/internal/importer"
	"github.com/pavelanni/examgrader/internal/llm"
	"github.com/pavelanni/examgrader/internal/model"
	"github.com/pavelanni/examgrader/internal/store"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examgrader",
		Short: "AI grading service for school exams",
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd(), userCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `examgrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("db", "examgrader.db", "SQLite database path")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringSlice("exams", nil, "Paths to exams JSON files (repeatable)")
	f.StringSlice("users", nil, "Paths to users JSON files (repeatable)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", 60*time.Second, "Timeout for a single LLM request")
	f.Bool("skip-llm-check", false, "Start without checking the LLM endpoint")
	f.StringP("lang", "l", "en", "Default response language (en, ru)")
	f.String("timezone", "UTC", "Time zone for monthly report boundaries (IANA name)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.Duration("session-ttl", model.DefaultSessionTTL, "How long a login stays valid")

	short := model.DefaultShortRubric()
	long := model.DefaultLongRubric()
	f.Int("rubric.short.accuracy", short.Accuracy, "Short answer: accuracy points")
	f.Int("rubric.short.clarity", short.Clarity, "Short answer: clarity points")
	f.Int("rubric.short.completeness", short.Completeness, "Short answer: completeness points")
	f.Int("rubric.long.content-accuracy", long.ContentAccuracy, "Long answer: content accuracy points")
	f.Int("rubric.long.clarity-structure", long.ClarityStructure, "Long answer: clarity and structure points")
	f.Int("rubric.long.grammar-language", long.GrammarLanguage, "Long answer: grammar and language points")
	f.Int("rubric.long.depth-explanation", long.DepthExplanation, "Long answer: depth of explanation points")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import exams and users from JSON files",
		RunE:  runImport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringSlice("exams", nil, "Paths to exams JSON files (repeatable)")
	f.StringSlice("users", nil, "Paths to users JSON files (repeatable)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export graded submissions as JSON or XLSX",
		RunE:  runExport,
	}
	addCommonFlags(cmd)
	f := cmd.Flags()
	f.StringP("format", "f", "json", "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a student or teacher account",
		RunE:  runUserAdd,
	}
	addCommonFlags(add)
	f := add.Flags()
	f.String("id", "", "User ID (required)")
	f.String("name", "", "Full name (required)")
	f.String("email", "", "Email address (required)")
	f.String("role", string(model.UserRoleStudent), "Role (student, teacher)")
	f.String("grade", "", "Grade level (students only)")
	f.String("password", "", "Login password (or set EXAMGRADER_PASSWORD)")
	_ = add.MarkFlagRequired("id")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("email")

	cmd.AddCommand(add)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXAMGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examgrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examgrader")
	v.AddConfigPath("/etc/examgrader")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := importFiles(db, v.GetStringSlice("exams"), v.GetStringSlice("users")); err != nil {
		return err
	}

	users, err := db.UserCount()
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	exams, err := db.ExamCount()
	if err != nil {
		return fmt.Errorf("count exams: %w", err)
	}
	if users == 0 {
		slog.Warn("no users in database; add one with `examgrader user add` or --users")
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	cfg := model.GradingConfig{
		Short: model.ShortRubric{
			Accuracy:     v.GetInt("rubric.short.accuracy"),
			Clarity:      v.GetInt("rubric.short.clarity"),
			Completeness: v.GetInt("rubric.short.completeness"),
		},
		Long: model.LongRubric{
			ContentAccuracy:  v.GetInt("rubric.long.content-accuracy"),
			ClarityStructure: v.GetInt("rubric.long.clarity-structure"),
			GrammarLanguage:  v.GetInt("rubric.long.grammar-language"),
			DepthExplanation: v.GetInt("rubric.long.depth-explanation"),
		},
		Location:      loc,
		SecureCookies: v.GetBool("secure-cookies"),
		SessionTTL:    v.GetDuration("session-ttl"),
	}

	llmClient := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		v.GetDuration("llm-timeout"),
	)
	if !v.GetBool("skip-llm-check") {
		if err := llmClient.Ping(context.Background()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	grader := grading.NewGrader(llmClient, cfg.Short, cfg.Long, slog.Default())
	svc := grading.NewService(db, grader, cfg.Location, slog.Default())
	h := handler.New(db, svc, cfg)

	if n, err := db.PurgeSessions(time.Now()); err != nil {
		slog.Warn("failed to purge expired sessions", "error", err)
	} else if n > 0 {
		slog.Info("purged expired sessions", "count", n)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"languages", appI18n.Languages(),
		"timezone", loc.String(),
		"users", users,
		"exams", exams,
	)
	return http.ListenAndServe(addr, r)
}

func runImport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	exams, users := v.GetStringSlice("exams"), v.GetStringSlice("users")
	if len(exams) == 0 && len(users) == 0 {
		return errors.New("nothing to import: pass --exams or --users")
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return importFiles(db, exams, users)
}

// importFiles loads users before exams so exam authors can refer to them.
func importFiles(db *store.Store, examPaths, userPaths []string) error {
	for _, path := range userPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := importer.Users(db, path, data); err != nil {
			return fmt.Errorf("import users: %w", err)
		}
	}
	for _, path := range examPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, err := importer.Exams(db, path, data); err != nil {
			return fmt.Errorf("import exams: %w", err)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format := strings.ToLower(v.GetString("format"))
	if format != "json" && format != "xlsx" {
		return fmt.Errorf("unknown export format %q", format)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllSubmissions()
	if err != nil {
		return fmt.Errorf("export submissions: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "xlsx" {
		err = export.WriteXLSX(w, results)
	} else {
		err = export.WriteJSON(w, results, time.Now())
	}
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	slog.Info("exported submissions", "count", len(results), "format", format, "output", outPath)
	return nil
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	user, err := importer.NewUser(model.UserImport{
		ID:         v.GetString("id"),
		Name:       v.GetString("name"),
		Email:      v.GetString("email"),
		Role:       model.UserRole(v.GetString("role")),
		GradeLevel: v.GetString("grade"),
		Password:   v.GetString("password"),
	})
	if err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	existing, err := db.GetUserByID(user.ID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	if err := db.PutUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("email %s is already taken", user.Email)
		}
		return fmt.Errorf("create user: %w", err)
	}

	slog.Info("created user", "id", user.ID, "role", user.Role)
	return nil
}
