package main

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/librarian/internal/api"
	"github.com/kalambet/librarian/internal/config"
	"github.com/kalambet/librarian/internal/engine"
	"github.com/kalambet/librarian/internal/proxy"
)

// --- recommend ---

var recommendCmd = &cobra.Command{
	Use:   "recommend <query>",
	Short: "Ask the running server for book recommendations",
	Long: `Ask the running server for book recommendations.

Examples:
  librarian recommend "vreau o carte despre prietenie și magie"
  librarian recommend --num 3 --image --tts "cărți despre libertate"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")
		num, _ := cmd.Flags().GetInt("num")
		noFilter, _ := cmd.Flags().GetBool("no-filter")
		image, _ := cmd.Flags().GetBool("image")
		tts, _ := cmd.Flags().GetBool("tts")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		result, err := client.recommend(cmd.Context(), recommendBody(strings.Join(args, " "), topK, num, !noFilter, image, tts))
		if err != nil {
			return err
		}
		printRecommendations(result)
		return nil
	},
}

func recommendBody(query string, topK, num int, filter, image, tts bool) api.RecommendRequest {
	return api.RecommendRequest{
		Query:              query,
		TopK:               topK,
		NumRecommendations: num,
		LanguageFilter:     filter,
		GenerateImage:      image,
		TTS:                tts,
	}
}

func init() {
	recommendCmd.Flags().Int("top-k", 4, "number of candidates to retrieve")
	recommendCmd.Flags().Int("num", 1, "number of recommendations")
	recommendCmd.Flags().Bool("no-filter", false, "disable the language filter")
	recommendCmd.Flags().Bool("image", false, "generate a cover for each recommendation")
	recommendCmd.Flags().Bool("tts", false, "narrate each recommendation")
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		hits, err := client.search(cmd.Context(), strings.Join(args, " "), limit)
		if err != nil {
			return err
		}
		printHits(hits)
		return nil
	},
}

func searchPath(query string, limit int) string {
	params := url.Values{}
	params.Set("query", query)
	params.Set("top_k", strconv.Itoa(limit))
	return "/rag/search?" + params.Encode()
}

func init() {
	searchCmd.Flags().Int("limit", 4, "maximum number of results")
}

// --- books ---

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "List catalog books",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		page, err := client.books(cmd.Context(), limit, offset)
		if err != nil {
			return err
		}
		printBooks(page)
		return nil
	},
}

func init() {
	booksCmd.Flags().Int("limit", 50, "maximum number of books to list")
	booksCmd.Flags().Int("offset", 0, "number of books to skip")
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List chat models available from the configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		var names []string
		switch cfg.LLM.Provider {
		case config.ProviderOllama:
			names, err = engine.NewOllamaEngine(cfg.Ollama.BaseURL).ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing ollama models: %w", err)
			}
		default:
			models, err := proxy.NewClient(cfg.Proxy.APIKey, cfg.Proxy.BaseURL, cfg.Proxy.ChatModel).ListModels(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				names = append(names, m.ID)
			}
		}

		sort.Strings(names)
		current := currentChatModel(cfg)
		for _, n := range names {
			if n == current {
				fmt.Printf("%s %s\n", colorize(colorGreen, n), "(configured)")
				continue
			}
			fmt.Println(n)
		}
		return nil
	},
}

func currentChatModel(cfg config.Config) string {
	if cfg.LLM.Provider == config.ProviderOllama {
		return cfg.Ollama.ChatModel
	}
	return cfg.Proxy.ChatModel
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configSetCmd.Long = "Set a configuration value.\n\nValid keys:\n  " + strings.Join(config.ValidKeys(), "\n  ")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
