package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/inkwell/inkwell/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show inkwell status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s inkwell Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:   %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	fmt.Printf("Backend:  %s\n", cfg.Chat.Backend)
	fmt.Printf("Model:    %s\n", cfg.LLM.Model)
	fmt.Printf("Store:    %s\n", cfg.Store.Path)

	keyMark := "✓"
	if cfg.LLM.APIKey == "" {
		keyMark = "(not set)"
	}
	fmt.Printf("API key:  %s\n", keyMark)
	searchMark := "✓"
	if cfg.Search.APIKey == "" {
		searchMark = "(not set)"
	}
	fmt.Printf("Search:   %s\n\n", searchMark)

	url := fmt.Sprintf("http://127.0.0.1:%d/healthz", cfg.Gateway.Port)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Printf("Server:   not running (%s)\n", url)
		return nil
	}
	defer resp.Body.Close()

	var body map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&body)
	fmt.Printf("Server:   %s (%s)\n", body["status"], url)
	return nil
}
