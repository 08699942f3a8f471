package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/poller"
	"github.com/muurk/cyberq/internal/ui"
)

var (
	noVerify      bool
	watchInterval int
)

func init() {
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(watchCmd)

	setCmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip comparing the controller's echo with the requested value")
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "Seconds between refreshes (default from the device registry, usually 5)")
}

// snapshotJSON is the --format json document for show and set
type snapshotJSON struct {
	Identity cyberq.Identity `json:"identity"`
	Sensors  map[string]any  `json:"sensors"`
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show controller state",
	Long: `Read the controller once and display probes, fan output, timer,
control settings and every decoded sensor.`,
	Example: `  # Show state of the only registered controller
  cyberq show

  # Show state for a specific controller
  cyberq show --device 192.168.1.50

  # Compact output format
  cyberq show --device backyard --format compact

  # JSON output for scripting
  cyberq show --device 192.168.1.50 --format json`,
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	client, reg, t, err := connectTarget()
	if err != nil {
		return err
	}

	store, err := client.Refresh(cmd.Context())
	if err != nil {
		return reportError(fmt.Sprintf("Could not read %s", t), err)
	}
	rememberDevice(reg, client.Identity())

	switch outputFormat {
	case "json":
		return printJSON(snapshotJSON{Identity: client.Identity(), Sensors: store.Map()})
	case "compact":
		fmt.Print(cyberq.FormatCompact(client.Identity(), store))
	default:
		fmt.Print(cyberq.FormatDetailed(client.Identity(), store))
	}
	return nil
}

var setCmd = &cobra.Command{
	Use:   "set KEY=VALUE [KEY=VALUE...]",
	Short: "Write controller settings",
	Long: `Write one or more settings. Keys are sensor names such as COOK_SET or
FOOD1_NAME; aliases are accepted. Temperatures are degrees Fahrenheit.
Booleans take 1/0, true/false, on/off or yes/no. Enums take an option
label such as Fahrenheit, or its index counting from 0.

Each value is validated before anything is sent. After a write the
controller's echoed page is compared with the requested value unless
--no-verify is given.`,
	Example: `  # Set the pit to 225°F
  cyberq set COOK_SET=225

  # Rename a probe and set its target
  cyberq set "FOOD1_NAME=Pork Butt" FOOD1_SET=203

  # Turn lid-open detection off
  cyberq set OPENDETECT=0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

func runSet(cmd *cobra.Command, args []string) error {
	assignments := make([]cyberq.Assignment, 0, len(args))
	for _, arg := range args {
		a, err := cyberq.ParseAssignment(arg)
		if err != nil {
			return err
		}
		assignments = append(assignments, a)
	}

	client, reg, t, err := connectTarget()
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout)
	quiet := outputFormat == "json"
	if !quiet {
		printer.PrintHeader("Set sensors", "cyberq set", map[string]string{"Device": t.String()})
	}

	// Set resolves keys against the current snapshot, so read first.
	store, err := client.Refresh(cmd.Context())
	if err != nil {
		return reportError(fmt.Sprintf("Could not read %s", t), err)
	}
	rememberDevice(reg, client.Identity())

	for _, a := range assignments {
		current, err := store.Get(a.Key)
		if err != nil {
			return reportError(fmt.Sprintf("Cannot set %s", a.Key), err)
		}
		value := cyberq.NormalizeInput(current.Descriptor(), a.Value)
		if err := cyberq.ValidateInput(current.Descriptor(), value); err != nil {
			return reportError(fmt.Sprintf("Cannot set %s", current.Name()), err)
		}

		details := map[string]string{"Requested": value}
		if noVerify {
			if _, err := client.Set(cmd.Context(), current.Name(), value); err != nil {
				return reportError(fmt.Sprintf("Failed to set %s", current.Name()), err)
			}
		} else {
			result, err := client.SetAndVerify(cmd.Context(), current.Name(), value)
			if err != nil {
				if result != nil && outputFormat != "json" {
					r := ui.NewErrorResult(current.Name()+" did not take the new value", err)
					r.AddDetail("Expected", result.Expected).AddDetail("Actual", result.Actual)
					fmt.Fprintln(os.Stderr, r.Render())
					return errReported
				}
				return reportError(fmt.Sprintf("Failed to set %s", current.Name()), err)
			}
		}

		store = client.Sensors()
		if updated, err := store.Get(current.Name()); err == nil {
			details["Now"] = cyberq.FormatValue(updated)
		}
		if !quiet {
			printer.PrintSuccess(current.Name()+" updated", details)
		}
	}

	if quiet {
		return printJSON(snapshotJSON{Identity: client.Identity(), Sensors: store.Map()})
	}
	return nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of probe temperatures",
	Long: `Poll the controller and show a live dashboard of probes, fan output
and timer. Press q to quit.`,
	Example: `  # Watch with the default 5 second interval
  cyberq watch --device 192.168.1.50

  # Refresh every 15 seconds
  cyberq watch --interval 15`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	client, reg, t, err := connectTarget()
	if err != nil {
		return err
	}

	interval := time.Duration(reg.Preferences.PollInterval) * time.Second
	if watchInterval > 0 {
		interval = time.Duration(watchInterval) * time.Second
	}
	p := poller.New(client, poller.WithInterval(interval))

	// Keep only the newest state; the dashboard never needs a backlog.
	states := make(chan poller.State, 1)
	unsubscribe := p.Subscribe(func(s poller.State) {
		select {
		case <-states:
		default:
		}
		states <- s
	})
	defer unsubscribe()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()
	go p.Run(ctx)

	if _, err := tea.NewProgram(ui.NewDashboardModel(t.String(), states), tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	if s := p.State(); s.Snapshot != nil {
		rememberDevice(reg, s.Identity)
	}
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// reportError renders err as a failure box, or as JSON with --format json
func reportError(title string, err error) error {
	if outputFormat == "json" {
		_ = printJSON(map[string]string{
			"error": cyberq.GetShortErrorMessage(err),
			"hint":  cyberq.GetTroubleshootingHint(err),
		})
		return errReported
	}
	ui.NewPrinter(os.Stderr).PrintError(title, err)
	return errReported
}
