package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gboksm11/optimai/internal"
	"github.com/spf13/cobra"
)

var (
	successStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true)

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check local data and backend connectivity",
	Long: `Check the health of the optimai client by verifying:
  • Configuration and data directory
  • Conversation-list database
  • Backend reachability

Useful for debugging connection or storage issues.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sectionStyle.Render("OptimAI Health Check"))
		fmt.Println()

		fmt.Println(infoStyle.Render("Step 1: Loading configuration..."))
		a, err := newApp()
		if err != nil {
			fmt.Println(errorStyle.Render("  FAILED:"), err)
			os.Exit(1)
		}
		defer a.Close()
		fmt.Println(successStyle.Render("  OK"))
		if verbose {
			fmt.Printf("    Server: %s\n", a.cfg.ServerURL)
			fmt.Printf("    Data dir: %s\n", a.cfg.DataDir)
		}
		fmt.Println()

		fmt.Println(infoStyle.Render("Step 2: Checking conversation list..."))
		chats, err := a.chats.List()
		if err != nil {
			fmt.Println(errorStyle.Render("  FAILED:"), err)
			os.Exit(1)
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("  OK (%d conversation(s))", len(chats))))
		fmt.Println()

		fmt.Println(infoStyle.Render("Step 3: Checking backend reachability..."))
		httpClient := &http.Client{Timeout: 10 * time.Second}
		resp, err := httpClient.Get(a.cfg.ServerURL)
		if err != nil {
			fmt.Println(errorStyle.Render("  FAILED:"), err)
			internal.LogDebug("Backend probe error: %v", err)
			os.Exit(1)
		}
		resp.Body.Close()
		fmt.Println(successStyle.Render(fmt.Sprintf("  OK (status %d)", resp.StatusCode)))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
}
