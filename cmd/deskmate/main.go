package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/deskmate-io/deskmate/internal/config"
	"github.com/deskmate-io/deskmate/internal/deduplication"
	"github.com/deskmate-io/deskmate/internal/logging"
	"github.com/deskmate-io/deskmate/internal/merge"
	"github.com/deskmate-io/deskmate/internal/psa"
	"github.com/deskmate-io/deskmate/internal/store"
)

var (
	cfgPath     string
	profileName string
	verbose     bool

	cfg config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deskmate",
	Short: "Helpdesk assistant for finding and merging duplicate tickets",
	Long: `Deskmate connects to a helpdesk instance, surfaces tickets that
describe the same underlying problem, and merges them without losing
any notes.

Connection profiles live in ~/.deskmate/config.yaml. Run 'deskmate
doctor' to verify a new setup, 'deskmate connect' to test credentials,
and 'deskmate chat' for the interactive assistant.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = config.DefaultPath()
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
		}

		log, err = logging.Setup(cfg.Log)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ~/.deskmate/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "Connection profile to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fatal reports a command failure and exits. Commands use this for
// runtime errors so cobra's usage text stays out of the output.
func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// newClient resolves the selected profile and builds an authenticated
// API client for it. Returns the resolved profile name so commands can
// report and record which instance they touched.
func newClient() (string, *psa.Client, error) {
	name, prof, err := cfg.ResolveProfile(profileName)
	if err != nil {
		return "", nil, err
	}

	cc := prof.ClientConfig()
	cc.Logger = log
	client, err := psa.NewClient(cc)
	if err != nil {
		return "", nil, err
	}
	return name, client, nil
}

// backends bundles the remote services a connected command works with
type backends struct {
	profile     string
	client      *psa.Client
	tickets     *psa.TicketService
	actions     *psa.ActionService
	clients     *psa.ClientService
	agents      *psa.AgentService
	statuses    *psa.StatusService
	detector    *deduplication.Detector
	coordinator *merge.Coordinator
}

func newBackends() (*backends, error) {
	name, client, err := newClient()
	if err != nil {
		return nil, err
	}

	tickets := psa.NewTicketService(client)
	actions := psa.NewActionService(client)

	detector, err := deduplication.NewDetector(tickets, cfg.Dedup.DetectorConfig(), log)
	if err != nil {
		return nil, err
	}

	return &backends{
		profile:     name,
		client:      client,
		tickets:     tickets,
		actions:     actions,
		clients:     psa.NewClientService(client),
		agents:      psa.NewAgentService(client),
		statuses:    psa.NewStatusService(client),
		detector:    detector,
		coordinator: merge.NewCoordinator(tickets, actions, log),
	}, nil
}

// openHistory opens the local merge history database
func openHistory() (*store.Store, error) {
	return store.Open(config.ExpandPath(cfg.Store.Path), log)
}
