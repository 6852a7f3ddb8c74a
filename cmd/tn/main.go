package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tasknode/internal/app"
	"tasknode/internal/db"
	"tasknode/internal/docs"
	"tasknode/internal/domain"
	"tasknode/internal/engine"
	"tasknode/internal/keys"
	"tasknode/internal/lifecycle"
	"tasknode/internal/llm"
	"tasknode/internal/migrate"
	"tasknode/internal/server"
	"tasknode/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tn",
	Short: "Tasknode CLI",
	Long: `Tasknode runs a task coordination node over a public memo ledger.
Incoming transactions are classified against the protocol taxonomy, validated,
paired with any already recorded response, and answered by the reasoning
pipeline when no response exists. Task state is reconstructed from memo
history; nothing but the ledger projection is persisted.`,
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
	viper.SetEnvPrefix("TASKNODE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("node", "", "node id (overrides stored config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("node", rootCmd.PersistentFlags().Lookup("node"))
}

func registerCommands() {
	rootCmd.AddCommand(txCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(serveCmd())
}

func txCmd() *cobra.Command {
	tx := &cobra.Command{
		Use:   "tx",
		Short: "Ingest and process ledger transactions",
	}
	tx.AddCommand(txIngestCmd())
	tx.AddCommand(txProcessCmd())
	tx.AddCommand(txShowCmd())
	return tx
}

func txIngestCmd() *cobra.Command {
	var filePath string
	var process bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest transactions from a JSON file",
		Long:  "Reads one transaction object or an array of them and records each into the projection. With --process, every newly inserted transaction is also run through the pipeline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			txs, err := decodeTransactions(data)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				type result struct {
					Hash     string          `json:"hash"`
					Inserted bool            `json:"inserted"`
					Outcome  *engine.Outcome `json:"outcome,omitempty"`
				}
				var results []result
				for _, t := range txs {
					inserted, err := e.Ingest(ctx, t)
					if err != nil {
						return fmt.Errorf("ingest %s: %w", t.Hash, err)
					}
					res := result{Hash: t.Hash, Inserted: inserted}
					if process && inserted {
						out, err := e.Process(ctx, t.Hash)
						if err != nil {
							return fmt.Errorf("process %s: %w", t.Hash, err)
						}
						res.Outcome = &out
					}
					results = append(results, res)
				}
				return printJSONOrTable(results)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to transaction JSON")
	cmd.Flags().BoolVar(&process, "process", false, "process newly ingested transactions")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func txProcessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process <hash>",
		Short: "Run the pipeline over an ingested transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				out, err := e.Process(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	return cmd
}

func txShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <hash>",
		Short: "Show an ingested transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, err := e.Store.GetTransaction(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Inspect reconstructed tasks",
		Long:  "Tasks are derived from memo history, latest write per lifecycle field wins. States follow the terminal-first precedence: rewarded, verification_response, verification_prompt, completed, refused, accepted, proposed, requested.",
	}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskStatsCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var account, state string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an account's tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if account == "" {
				return fmt.Errorf("--account required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				tasks, err := e.Tasks(ctx, account, domain.TaskState(state))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Task", "State", "Reward", "Proposal"})
				for _, t := range tasks {
					proposal := ""
					if t.Proposal != nil {
						proposal = truncate(t.Proposal.Text, 60)
					}
					tw.AppendRow(table.Row{t.ID, lifecycle.State(t), t.RewardAmount, proposal})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "ledger account")
	cmd.Flags().StringVar(&state, "state", "", "state filter")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func taskShowCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show one task with its derived state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if account == "" {
				return fmt.Errorf("--account required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				t, state, err := e.Task(ctx, account, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task": t, "state": state})
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "ledger account")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func taskStatsCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize an account's task history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if account == "" {
				return fmt.Errorf("--account required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				stats, err := e.Statistics(ctx, account)
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "ledger account")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context <account>",
		Short: "Assemble the account context document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				text, err := e.Context(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"account": args[0], "context": text})
				}
				fmt.Println(text)
				return nil
			})
		},
	}
	return cmd
}

func balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the tracked balance for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				bal, err := e.Store.GetBalance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(bal)
			})
		},
	}
	return cmd
}

func authCmd() *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Manage address authorization and flags",
	}
	auth.AddCommand(authShowCmd())
	auth.AddCommand(authSetCmd())
	auth.AddCommand(authFlagCmd())
	return auth
}

func authShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <address>",
		Short: "Show authorization and flag state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				a, err := e.Store.GetAuthorization(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func authSetCmd() *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "set <address>",
		Short: "Authorize an address (or revoke with --revoke)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Authorize(ctx, args[0], !revoke); err != nil {
					return err
				}
				a, err := e.Store.GetAuthorization(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "revoke instead of grant")
	return cmd
}

func authFlagCmd() *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "flag <address>",
		Short: "Apply a RED or YELLOW flag to an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Flag(ctx, args[0], domain.FlagLevel(level)); err != nil {
					return err
				}
				a, err := e.Store.GetAuthorization(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "flag level (RED or YELLOW)")
	_ = cmd.MarkFlagRequired("level")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect node config",
		Long:  "Config is stored in the DB per node id: node addresses, gates (fees, authorization, rite length, oracle balance floor), reward bounds, reasoning models, and context limits. Import from tasknode.yml if desired.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import node config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				cfg, err := app.ImportConfig(ctx, s, data, time.Now())
				if err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				items, err := s.TailEvents(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Account", "Entity"})
				for _, ev := range items {
					tw.AppendRow(table.Row{ev.ID, ev.TS, ev.Type, ev.Account, ev.EntityKind + "/" + ev.EntityID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage operator API keys",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the secret is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				return fmt.Errorf("--actor required")
			}
			secretBytes := make([]byte, 32)
			if _, err := rand.Read(secretBytes); err != nil {
				return err
			}
			secret := hex.EncodeToString(secretBytes)
			key := domain.APIKey{
				ID:        uuid.NewString(),
				ActorID:   actor,
				Name:      name,
				KeyHash:   store.HashAPIKey(secret),
				CreatedAt: time.Now().UTC().Format(time.RFC3339),
			}
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				if err := s.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"id": key.ID, "actor_id": key.ActorID, "secret": secret})
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				items, err := s.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range items {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "filter by actor id")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				return s.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create or show the node exchange keys",
		Long:  "Ensures the node and remembrancer X25519 keys exist under the workspace and prints their public halves, the payloads a handshake memo carries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, err := loadKeys(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]string{
				"node_public_key":         ring.Node.PublicKey(),
				"remembrancer_public_key": ring.Remembrancer.PublicKey(),
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("TASKNODE_JWT_SECRET"), Logger: e.Log}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("TASKNODE_JWT_SECRET is required for bearer auth")
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving Tasknode API on http://%s%s (OpenAPI at %s/openapi.json)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func openDB() (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, store.New(conn))
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()
	s := store.New(conn)
	_, cfg, err := app.ResolveNodeConfig(ctx, viper.GetString("node"), s, time.Now())
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	ring, err := loadKeys(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	opts := engine.Options{
		Keys: ring,
		Docs: docs.NewFetcher(),
		Log:  logger,
	}
	if apiKey := os.Getenv("TASKNODE_GEMINI_API_KEY"); apiKey != "" {
		client, err := llm.NewGemini(ctx, apiKey, logger)
		if err != nil {
			return err
		}
		opts.LLM = client
	}
	e, err := engine.New(conn, cfg, opts)
	if err != nil {
		return err
	}
	return fn(ctx, e)
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("json") {
		// Keep stdout clean for JSON output consumers.
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}
	return zap.NewDevelopment()
}

func loadKeys(workspace string) (keys.Ring, error) {
	dir := filepath.Join(workspace, ".tasknode", "keys")
	node, err := keys.LoadOrCreate(filepath.Join(dir, "node.key"))
	if err != nil {
		return keys.Ring{}, err
	}
	remembrancer, err := keys.LoadOrCreate(filepath.Join(dir, "remembrancer.key"))
	if err != nil {
		return keys.Ring{}, err
	}
	return keys.Ring{Node: node, Remembrancer: remembrancer}, nil
}

func decodeTransactions(data []byte) ([]domain.Transaction, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var txs []domain.Transaction
		if err := json.Unmarshal(data, &txs); err != nil {
			return nil, fmt.Errorf("invalid transaction JSON: %w", err)
		}
		return txs, nil
	}
	var t domain.Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid transaction JSON: %w", err)
	}
	return []domain.Transaction{t}, nil
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

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
