package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"statisfy/internal/i18n"
)

// envExampleSections groups flags in the generated file.
var envExampleSections = []struct {
	title string
	note  string
	flags []string
}{
	{
		title: "SPOTIFY CONFIGURATION - Required",
		note:  "Get these from https://developer.spotify.com/dashboard",
		flags: []string{"spotify-client-id", "spotify-client-secret", "spotify-redirect-url", "spotify-token-path", "spotify-market"},
	},
	{
		title: "QUEUE",
		flags: []string{"database-path", "queue-recent-capacity", "queue-circular", "queue-persist-debounce-ms"},
	},
	{
		title: "DEVICE POLLING",
		note:  "Failures back off from the fast interval up to the ceiling",
		flags: []string{"poll-fast-interval-secs", "poll-idle-interval-secs", "poll-max-interval-secs", "poll-backoff-factor", "poll-failure-threshold"},
	},
	{
		title: "TRACK METADATA",
		flags: []string{"hydration-batch-size", "hydration-cache-ttl-secs", "hydration-cache-size", "hydration-miss-set-size"},
	},
	{
		title: "HTTP SERVER",
		flags: []string{"server-host", "server-port", "server-command-limit-per-minute"},
	},
	{
		title: "APPLICATION",
		note:  "Supported languages: " + strings.Join(i18n.GetSupportedLanguages(), ", "),
		flags: []string{"language", "log-level", "log-format"},
	},
}

var envExamplePlaceholders = map[string]string{
	"spotify-client-id":     "your_spotify_client_id_here",
	"spotify-client-secret": "your_spotify_client_secret_here",
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(".env.example", []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write .env.example: %w", err)
	}

	fmt.Println("Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# Statisfy Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	fmt.Fprintf(&content, "# Format: %s_<SETTING>=value\n", envPrefix)
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	for _, section := range envExampleSections {
		content.WriteString("# -----------------------------------------------------------------------------\n")
		fmt.Fprintf(&content, "# %s\n", section.title)
		content.WriteString("# -----------------------------------------------------------------------------\n")
		if section.note != "" {
			fmt.Fprintf(&content, "# %s\n", section.note)
		}
		for _, name := range section.flags {
			writeEnvLine(&content, cmd, name)
		}
		content.WriteString("\n")
	}

	return content.String()
}

func writeEnvLine(content *strings.Builder, cmd *cobra.Command, flagName string) {
	f := cmd.PersistentFlags().Lookup(flagName)
	if f == nil {
		return
	}

	value := f.DefValue
	if placeholder, ok := envExamplePlaceholders[flagName]; ok {
		value = placeholder
	}
	fmt.Fprintf(content, "# %s (default: %q)\n", f.Usage, f.DefValue)
	fmt.Fprintf(content, "%s=%s\n", flagToEnvVar(flagName), value)
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
