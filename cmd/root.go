package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/gboksm11/optimai/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	serverURL  string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "optimai",
	Short: "Terminal client for the OptimAI assistant",
	Long: `A terminal client for the OptimAI assistant backend.

Messages stream back token by token over a chunked HTTP response and are
reconstructed into ordered conversations locally. Generated files and
images are fetched in the background and saved next to the conversation
data.

Quick Start:
  optimai chat                    # Start chatting (new conversation)
  optimai list                    # List saved conversations
  optimai chat <conversation-id>  # Resume a conversation
  optimai export <id> --format md # Export a transcript`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.optimai/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend base URL (overrides config)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// app bundles the collaborators every command needs
type app struct {
	cfg      *internal.Config
	client   *internal.Client
	chats    *internal.ChatList
	store    *internal.ConversationStore
	resolver *internal.MediaResolver
	session  *internal.SessionController
}

// newApp loads configuration and wires the client, stores, and session
// controller. Callers must Close() when done.
func newApp() (*app, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = internal.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	chats, err := internal.OpenChatList(cfg.ChatListPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open chat list: %w", err)
	}

	client := internal.NewClient(cfg.ServerURL)
	store := internal.NewConversationStore()
	resolver := internal.NewMediaResolver(client, cfg.MediaDir)
	dispatcher := internal.NewDispatcher(store, resolver)
	session := internal.NewSessionController(store, client, dispatcher)
	session.ReadTimeout = time.Duration(cfg.StreamTimeout)

	return &app{
		cfg:      cfg,
		client:   client,
		chats:    chats,
		store:    store,
		resolver: resolver,
		session:  session,
	}, nil
}

// Close releases the app's resources
func (a *app) Close() {
	if err := a.chats.Close(); err != nil {
		internal.LogWarn("Failed to close chat list: %v", err)
	}
}
