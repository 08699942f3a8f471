package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/discovery"
	"github.com/muurk/cyberq/internal/ui"
)

var (
	scanTimeout int
	scanAll     bool
	assumeYes   bool
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.AddCommand(devicesListCmd, devicesAliasCmd, devicesRemoveCmd)

	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from the device registry, usually 10)")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Also list HTTP services that are not CyberQ controllers")
	devicesRemoveCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find CyberQ controllers on the network",
	Long: `Browse mDNS for HTTP services and probe each one to find CyberQ
controllers. Controllers found are remembered in the device registry so
later commands can address them by serial number or nickname.`,
	Example: `  # Scan for 10 seconds (default)
  cyberq scan

  # Quick 3-second scan
  cyberq scan --timeout 3

  # Show every HTTP service seen, not just controllers
  cyberq scan --all`,
	RunE: runScan,
}

type scanJSON struct {
	Address  string           `json:"address"`
	Hostname string           `json:"hostname"`
	Instance string           `json:"instance"`
	CyberQ   bool             `json:"cyberq"`
	Identity *cyberq.Identity `json:"identity,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	reg := loadRegistry()
	timeout := time.Duration(reg.Preferences.DiscoverTimeout) * time.Second
	if scanTimeout > 0 {
		timeout = time.Duration(scanTimeout) * time.Second
	}
	if timeout <= 0 {
		timeout = discovery.DefaultScanTimeout
	}

	if outputFormat != "json" {
		fmt.Printf("Scanning for CyberQ controllers (timeout: %s)...\n\n", timeout)
	}

	results, err := discovery.DiscoverDevices(cmd.Context(), timeout)
	if err != nil {
		return reportError("Scan failed", err)
	}

	var found []discovery.Result
	for _, r := range results {
		if r.IsCyberQ() {
			found = append(found, r)
			rememberDevice(reg, r.Identity)
		}
	}

	if outputFormat == "json" {
		out := make([]scanJSON, 0, len(results))
		for _, r := range results {
			if !r.IsCyberQ() && !scanAll {
				continue
			}
			entry := scanJSON{
				Address:  r.Candidate.Address(),
				Hostname: r.Candidate.Hostname,
				Instance: r.Candidate.Instance,
				CyberQ:   r.IsCyberQ(),
			}
			if r.IsCyberQ() {
				id := r.Identity
				entry.Identity = &id
			} else {
				entry.Error = cyberq.GetShortErrorMessage(r.Err)
			}
			out = append(out, entry)
		}
		return printJSON(out)
	}

	printer := ui.NewPrinter(os.Stdout)
	if len(found) == 0 {
		printer.PrintWarning("No controllers found", map[string]string{
			"HTTP services": fmt.Sprint(len(results)),
			"Next step":     "cyberq show --device <ip>",
		})
		fmt.Println("Troubleshooting:")
		fmt.Println("  - Ensure the controller is powered on and joined to WiFi")
		fmt.Println("  - Check that this computer is on the same network segment")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --device to address the controller by IP if discovery fails")
		return nil
	}

	fmt.Printf("Found %d controller(s):\n\n", len(found))
	for i, r := range found {
		id := r.Identity
		fmt.Printf("%d. %s\n", i+1, id.Summary())
		fmt.Printf("   Serial:  %s\n", id.SerialNumber)
		fmt.Printf("   MAC:     %s\n", id.MAC)
		if r.Candidate.Hostname != "" {
			fmt.Printf("   mDNS:    %s\n", r.Candidate.Hostname)
		}
		fmt.Println()
	}

	if scanAll {
		for _, r := range results {
			if !r.IsCyberQ() {
				fmt.Printf("   not a controller: %s (%s)\n", r.Candidate, cyberq.GetShortErrorMessage(r.Err))
			}
		}
		fmt.Println()
	}

	fmt.Println("Use 'cyberq devices alias <serial> <nickname>' to name a controller")
	fmt.Println("Use 'cyberq show --device <serial>' to view its state")
	return nil
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Manage remembered controllers",
	RunE:  runDevicesList,
}

var devicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remembered controllers",
	RunE:  runDevicesList,
}

func runDevicesList(cmd *cobra.Command, args []string) error {
	reg := loadRegistry()

	serials := make([]string, 0, len(reg.Devices))
	for serial := range reg.Devices {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	if outputFormat == "json" {
		return printJSON(reg.Devices)
	}
	if len(serials) == 0 {
		fmt.Println("No controllers remembered. Run 'cyberq scan' or 'cyberq show --device <ip>'.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERIAL\tNICKNAME\tADDRESS\tMODEL\tLAST SEEN")
	for _, serial := range serials {
		d := reg.Devices[serial]
		lastSeen := "never"
		if !d.LastSeen.IsZero() {
			lastSeen = d.LastSeen.Local().Format("2006-01-02 15:04")
		}
		port := d.Port
		if port == 0 {
			port = reg.Preferences.DefaultPort
		}
		fmt.Fprintf(w, "%s\t%s\t%s:%d\t%s\t%s\n", serial, d.Nickname, d.Host, port, d.Model, lastSeen)
	}
	return w.Flush()
}

var devicesAliasCmd = &cobra.Command{
	Use:   "alias SERIAL NICKNAME",
	Short: "Give a controller a nickname usable with --device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := loadRegistry()
		serial, nickname := args[0], args[1]
		if reg.GetDevice(serial) == nil {
			return fmt.Errorf("unknown controller %q: run 'cyberq devices list'", serial)
		}
		if other, _, ok := reg.LookupByNickname(nickname); ok && other != serial {
			return fmt.Errorf("nickname %q is already used by %s", nickname, other)
		}
		reg.SetDeviceNickname(serial, nickname)
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("%s is now %q\n", serial, nickname)
		return nil
	},
}

var devicesRemoveCmd = &cobra.Command{
	Use:   "remove SERIAL",
	Short: "Forget a controller",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := loadRegistry()
		serial := args[0]
		if reg.GetDevice(serial) == nil {
			return fmt.Errorf("unknown controller %q", serial)
		}
		if !assumeYes && !ui.Confirm(os.Stdin, os.Stdout, "Forget controller "+serial, []string{
			"Its nickname and last known address will be removed",
			"The controller itself is not changed",
		}) {
			return nil
		}
		reg.RemoveDevice(serial)
		if err := reg.Save(); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", serial)
		return nil
	},
}
