package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsagent/internal/config"
	"github.com/newsagent/internal/generate"
	"github.com/newsagent/internal/ingest"
	"github.com/newsagent/internal/ingest/channel"
	"github.com/newsagent/internal/ingest/rss"
	"github.com/newsagent/internal/ingest/web"
	"github.com/newsagent/internal/models"
	"github.com/newsagent/internal/pipeline"
	"github.com/newsagent/internal/publish"
	"github.com/newsagent/internal/publish/telegram"
	"github.com/newsagent/internal/storage"
	"github.com/newsagent/internal/storage/sqlite"
	"github.com/newsagent/pkg/logger"
	"github.com/newsagent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsagent",
		Short: "News pipeline management",
		Long: `Manages sources and keywords, inspects pipeline state and
triggers passes of the ingest/generate/publish pipeline by hand.`,
		PersistentPreRunE: initializeApp,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(itemsCmd())
	rootCmd.AddCommand(unitsCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// ============ SOURCE COMMANDS ============

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage news sources",
	}

	cmd.AddCommand(sourcesAddCmd())
	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesEnableCmd(true))
	cmd.AddCommand(sourcesEnableCmd(false))
	cmd.AddCommand(sourcesRemoveCmd())
	return cmd
}

func sourcesAddCmd() *cobra.Command {
	var kind, name, address string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a news source",
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceKind := models.SourceKind(kind)
			if sourceKind != models.SourceKindWebsite && sourceKind != models.SourceKindChannel {
				return fmt.Errorf("kind must be %q or %q", models.SourceKindWebsite, models.SourceKindChannel)
			}

			source := &models.Source{
				Kind:    sourceKind,
				Name:    name,
				Address: address,
				Enabled: true,
			}
			if err := repo.CreateSource(context.Background(), source); err != nil {
				return fmt.Errorf("failed to create source: %w", err)
			}

			fmt.Printf("Source %d created: %s (%s) %s\n", source.ID, source.Name, source.Kind, source.Address)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "website", "source kind: website or channel")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&address, "address", "", "feed/page URL or channel handle")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("address")
	return cmd
}

func sourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := repo.ListSources(context.Background(), false)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Println("No sources configured")
				return nil
			}

			fmt.Printf("%-5s %-9s %-20s %-40s %s\n", "ID", "KIND", "NAME", "ADDRESS", "ENABLED")
			for _, s := range sources {
				fmt.Printf("%-5d %-9s %-20s %-40s %v\n", s.ID, s.Kind, s.Name, s.Address, s.Enabled)
			}
			return nil
		},
	}
}

func sourcesEnableCmd(enable bool) *cobra.Command {
	use, short := "enable [id]", "Enable a source"
	if !enable {
		use, short = "disable [id]", "Disable a source"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			source, err := repo.GetSourceByID(ctx, id)
			if err != nil {
				return fmt.Errorf("source not found: %w", err)
			}

			source.Enabled = enable
			if err := repo.UpdateSource(ctx, source); err != nil {
				return err
			}

			fmt.Printf("Source %d (%s) enabled=%v\n", source.ID, source.Name, source.Enabled)
			return nil
		},
	}
}

func sourcesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := repo.DeleteSource(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Source %d removed\n", id)
			return nil
		},
	}
}

// ============ KEYWORD COMMANDS ============

func keywordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keywords",
		Short: "Manage interest-filter keywords",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add [word]",
		Short: "Add a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := &models.Keyword{Word: args[0]}
			if err := repo.CreateKeyword(context.Background(), keyword); err != nil {
				return fmt.Errorf("failed to create keyword: %w", err)
			}
			fmt.Printf("Keyword %d created: %s\n", keyword.ID, keyword.Word)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List keywords",
		RunE: func(cmd *cobra.Command, args []string) error {
			keywords, err := repo.ListKeywords(context.Background())
			if err != nil {
				return err
			}
			if len(keywords) == 0 {
				fmt.Println("No keywords configured (all non-ad items pass)")
				return nil
			}
			for _, k := range keywords {
				fmt.Printf("%-5d %s\n", k.ID, k.Word)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := repo.DeleteKeyword(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Keyword %d removed\n", id)
			return nil
		},
	})

	return cmd
}

// ============ ITEM / UNIT COMMANDS ============

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect ingested items",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored items",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := repo.ListItems(context.Background(), storage.ItemFilter{Limit: limit})
			if err != nil {
				return err
			}

			fmt.Printf("%-5s %-12s %-60s %s\n", "ID", "SOURCE", "TITLE", "INGESTED")
			for _, item := range items {
				fmt.Printf("%-5d %-12s %-60s %s\n",
					item.ID, item.Source, clip(item.Title, 60),
					item.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 50, "max items to show")
	cmd.AddCommand(list)
	return cmd
}

func unitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units",
		Short: "Inspect content units",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List content units by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := repo.FindUnitsByStatus(context.Background(), models.UnitStatus(status))
			if err != nil {
				return err
			}

			fmt.Printf("%-5s %-9s %-50s %s\n", "ID", "STATUS", "TITLE", "ERROR")
			for _, u := range units {
				title := ""
				if u.Item != nil {
					title = clip(u.Item.Title, 50)
				}
				fmt.Printf("%-5d %-9s %-50s %s\n", u.ID, u.Status, title, u.ErrorMessage)
			}
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", string(models.UnitStatusNew), "new, generated, published or failed")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate [unit-id]",
		Short: "Reset a failed unit back to new for another generation attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			unit, err := repo.GetUnitByID(ctx, id)
			if err != nil {
				return fmt.Errorf("unit not found: %w", err)
			}
			if unit.Status == models.UnitStatusPublished {
				return fmt.Errorf("unit %d is already published", id)
			}

			unit.Status = models.UnitStatusNew
			unit.GeneratedText = ""
			unit.ErrorMessage = ""
			unit.PublishedAt = nil
			if err := repo.UpdateUnit(ctx, unit); err != nil {
				return err
			}

			fmt.Printf("Unit %d reset to %s; next generate pass will pick it up\n", unit.ID, unit.Status)
			return nil
		},
	})

	return cmd
}

// ============ RUN COMMANDS ============

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "run [ingest|generate|publish]",
		Short:     "Run one pipeline pass",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{pipeline.PassIngest, pipeline.PassGenerate, pipeline.PassPublish},
		RunE: func(cmd *cobra.Command, args []string) error {
			pass := args[0]
			pipe, err := buildPipeline(pass == pipeline.PassPublish)
			if err != nil {
				return err
			}

			ctx := context.Background()
			switch pass {
			case pipeline.PassIngest:
				result, err := pipe.RunIngest(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Ingest: %d sources, %d candidates, %d saved, %d duplicates, %d errors (%s)\n",
					result.SourcesProcessed, result.CandidatesFound, result.Saved,
					result.Duplicates, len(result.Errors), result.Duration.Round(time.Millisecond))

			case pipeline.PassGenerate:
				result, err := pipe.RunGenerate(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Generate: %d processed, %d generated, %d rejected, %d failed (%s)\n",
					result.Processed, result.Generated, result.Rejected, result.Failed,
					result.Duration.Round(time.Millisecond))

			case pipeline.PassPublish:
				result, err := pipe.RunPublish(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Publish: %d processed, %d published, %d failed (%s)\n",
					result.Processed, result.Published, result.Failed,
					result.Duration.Round(time.Millisecond))

			default:
				return fmt.Errorf("unknown pass %q", pass)
			}
			return nil
		},
	}
	return cmd
}

// buildPipeline assembles a pipeline for manual runs. The publisher is only
// required for the publish pass, so ingest/generate work without a bot token.
func buildPipeline(needPublisher bool) (*pipeline.Pipeline, error) {
	limiter := ratelimit.NewDefaultLimiter()

	registry := ingest.NewRegistry()
	registry.Register(rss.New(limiter, log))
	registry.Register(web.New(nil, limiter, log))
	registry.Register(channel.New(nil, limiter, log))

	generator := generate.NewChain(
		generate.NewClaude(cfg.Anthropic, limiter, log),
		generate.NewFallback(log),
	)

	var publisher publish.Publisher
	if needPublisher {
		p, err := telegram.New(cfg.Telegram, limiter, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		publisher = p
	}

	pipe := pipeline.New(repo, registry, generator, publisher, log)
	pipe.SetFetchLimit(cfg.Ingest.FetchLimit)
	return pipe, nil
}

func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return uint(id), nil
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
