package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/deskmate-io/deskmate/internal/config"
	"github.com/deskmate-io/deskmate/internal/psa"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check deskmate configuration and environment health",
	Long: `Run health checks to diagnose common configuration and connection issues.

This command checks for:
- Config file presence
- Profile resolution
- Credential resolution (inline or environment)
- Remote helpdesk reachability
- Duplicate detection settings
- Merge history store accessibility
- Assistant environment (ANTHROPIC_API_KEY)

Exit codes:
  0 - All checks passed
  1 - One or more checks failed (but not critical)
  2 - Critical failures that prevent deskmate from running`,
	Run: func(cmd *cobra.Command, args []string) {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running deskmate health checks...\n\n")

		var failures []string
		var warnings []string
		var criticalFailures []string

		// Check 1: Config file
		fmt.Printf("%s Config file\n", cyan("→"))
		path := cfgPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("No config file at %s (using built-in defaults)", path))
			fmt.Printf("  %s No config file found, using built-in defaults\n", yellow("⚠"))
			if verbose {
				fmt.Printf("    Expected at: %s\n", path)
			}
		} else {
			fmt.Printf("  %s Loaded config: %s\n", green("✓"), path)
		}

		// Check 2: Profile resolution
		fmt.Printf("%s Profile resolution\n", cyan("→"))
		name, prof, err := cfg.ResolveProfile(profileName)
		if err != nil {
			criticalFailures = append(criticalFailures, fmt.Sprintf("No usable profile: %v", err))
			fmt.Printf("  %s No usable profile\n", red("✗"))
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
			fmt.Printf("\n%s Critical failures prevent deskmate from running\n", red("✗"))
			os.Exit(2)
		}
		fmt.Printf("  %s Using profile %q\n", green("✓"), name)
		if verbose {
			fmt.Printf("    Base URL: %s\n", prof.BaseURL)
			if prof.Tenant != "" {
				fmt.Printf("    Tenant: %s\n", prof.Tenant)
			}
		}

		// Check 3: Credentials
		fmt.Printf("%s Credentials\n", cyan("→"))
		credentialsOK := true
		if _, err := url.ParseRequestURI(prof.BaseURL); err != nil {
			credentialsOK = false
			criticalFailures = append(criticalFailures, fmt.Sprintf("Profile %q has an invalid base_url: %v", name, err))
			fmt.Printf("  %s Invalid base_url: %s\n", red("✗"), prof.BaseURL)
		}
		if prof.ClientID == "" {
			credentialsOK = false
			criticalFailures = append(criticalFailures, fmt.Sprintf("Profile %q has no client_id", name))
			fmt.Printf("  %s client_id is not set\n", red("✗"))
		}
		if prof.Secret() == "" {
			credentialsOK = false
			if prof.ClientSecretEnv != "" {
				criticalFailures = append(criticalFailures, fmt.Sprintf("Environment variable %s is empty", prof.ClientSecretEnv))
				fmt.Printf("  %s Secret environment variable %s is empty\n", red("✗"), prof.ClientSecretEnv)
			} else {
				criticalFailures = append(criticalFailures, fmt.Sprintf("Profile %q has no client_secret", name))
				fmt.Printf("  %s client_secret is not set\n", red("✗"))
			}
		}
		if credentialsOK {
			fmt.Printf("  %s Client credentials resolved\n", green("✓"))
		}

		// Check 4: Remote connection
		fmt.Printf("%s Remote connection\n", cyan("→"))
		if !credentialsOK {
			fmt.Printf("  %s Skipped (credentials incomplete)\n", yellow("⚠"))
		} else {
			cc := prof.ClientConfig()
			cc.Logger = log
			client, err := psa.NewClient(cc)
			if err != nil {
				criticalFailures = append(criticalFailures, fmt.Sprintf("Cannot build API client: %v", err))
				fmt.Printf("  %s Cannot build API client\n", red("✗"))
				if verbose {
					fmt.Printf("    Error: %v\n", err)
				}
			} else {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				start := time.Now()
				err := client.TestConnection(ctx)
				cancel()
				switch {
				case err == nil:
					fmt.Printf("  %s Authenticated and reached the API (%s)\n", green("✓"), time.Since(start).Round(time.Millisecond))
				case psa.IsAuth(err):
					criticalFailures = append(criticalFailures, fmt.Sprintf("Credentials rejected by %s", prof.BaseURL))
					fmt.Printf("  %s Credentials rejected\n", red("✗"))
					if verbose {
						fmt.Printf("    Error: %v\n", err)
					}
				default:
					failures = append(failures, fmt.Sprintf("Cannot reach %s: %v", prof.BaseURL, err))
					fmt.Printf("  %s Cannot reach the remote instance\n", red("✗"))
					if verbose {
						fmt.Printf("    Error: %v\n", err)
					}
				}
			}
		}

		// Check 5: Duplicate detection settings
		fmt.Printf("%s Duplicate detection settings\n", cyan("→"))
		if err := cfg.Dedup.DetectorConfig().Validate(); err != nil {
			failures = append(failures, fmt.Sprintf("Invalid dedup settings: %v", err))
			fmt.Printf("  %s Invalid dedup settings: %v\n", red("✗"), err)
		} else {
			fmt.Printf("  %s Dedup settings valid\n", green("✓"))
			if verbose {
				dc := cfg.Dedup.DetectorConfig()
				fmt.Printf("    Threshold: %.2f, lookback: %s, max candidates: %d\n",
					dc.ScoreThreshold, dc.LookbackWindow, dc.MaxCandidates)
			}
		}

		// Check 6: Merge history store
		fmt.Printf("%s Merge history store\n", cyan("→"))
		storePath := config.ExpandPath(cfg.Store.Path)
		if hist, err := openHistory(); err != nil {
			failures = append(failures, fmt.Sprintf("Cannot open merge history store: %v", err))
			fmt.Printf("  %s Cannot open %s\n", red("✗"), storePath)
			if verbose {
				fmt.Printf("    Error: %v\n", err)
			}
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			records, err := hist.ListMerges(ctx, 1)
			cancel()
			hist.Close()
			if err != nil {
				failures = append(failures, fmt.Sprintf("Merge history store is not readable: %v", err))
				fmt.Printf("  %s Store opens but is not readable\n", red("✗"))
			} else if len(records) == 0 {
				fmt.Printf("  %s Store accessible at %s (no merges recorded yet)\n", green("✓"), storePath)
			} else {
				fmt.Printf("  %s Store accessible at %s (last merge %s)\n", green("✓"), storePath,
					records[0].StartedAt.Format("2006-01-02 15:04"))
			}
		}

		// Check 7: Assistant environment
		fmt.Printf("%s Assistant environment\n", cyan("→"))
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey == "" {
			warnings = append(warnings, "ANTHROPIC_API_KEY not set (chat assistant unavailable)")
			fmt.Printf("  %s ANTHROPIC_API_KEY not set\n", yellow("⚠"))
			fmt.Printf("    The chat assistant will not work\n")
		} else {
			fmt.Printf("  %s ANTHROPIC_API_KEY is set\n", green("✓"))
			if verbose && len(apiKey) > 14 {
				fmt.Printf("    Key: %s...%s\n", apiKey[:10], apiKey[len(apiKey)-4:])
			}
		}

		// Summary
		fmt.Printf("\n%s\n", strings.Repeat("─", 60))

		totalIssues := len(criticalFailures) + len(failures) + len(warnings)
		if totalIssues == 0 {
			fmt.Printf("%s All checks passed! Deskmate is ready.\n", green("✓"))
			os.Exit(0)
		}

		if len(criticalFailures) > 0 {
			fmt.Printf("\n%s Critical failures (%d):\n", red("✗"), len(criticalFailures))
			for _, failure := range criticalFailures {
				fmt.Printf("  • %s\n", failure)
			}
		}

		if len(failures) > 0 {
			fmt.Printf("\n%s Failures (%d):\n", red("✗"), len(failures))
			for _, failure := range failures {
				fmt.Printf("  • %s\n", failure)
			}
		}

		if len(warnings) > 0 {
			fmt.Printf("\n%s Warnings (%d):\n", yellow("⚠"), len(warnings))
			for _, warning := range warnings {
				fmt.Printf("  • %s\n", warning)
			}
		}

		if len(criticalFailures) > 0 {
			fmt.Printf("\n%s Deskmate cannot run until critical issues are resolved.\n", red("✗"))
			os.Exit(2)
		}

		if len(failures) > 0 {
			fmt.Printf("\n%s Deskmate may not work correctly. Please address the failures above.\n", yellow("⚠"))
			os.Exit(1)
		}

		fmt.Printf("\n%s Deskmate should work, but some warnings were detected.\n", green("✓"))
		os.Exit(0)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
