package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"inventory-tracker/internal/app"
	"inventory-tracker/internal/core"
)

// Usage lists the subcommands accepted by Run.
const Usage = `Usage: inventory-cli <command> [args]

Commands:
  alerts [-type T,...] [-severity S,...] [-json]   list active alerts
  summary                                          print the notification summary
  ack <alert-id>...                                acknowledge alerts
  settings [history]                               show current settings or their versions
  notify [test]                                    email the alert summary (or a test message)
  lookup [-type T] <code>                          resolve a scanned code
  stats                                            inventory and scan counts`

// ErrUsage is returned for unknown commands or missing arguments.
var ErrUsage = errors.New("invalid usage")

// Run executes a one-shot CLI command, writing results to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, user string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command\n%s", ErrUsage, Usage)
	}

	switch args[0] {
	case "alerts", "a":
		return runAlerts(ctx, svc, args[1:], out)

	case "summary":
		res, err := svc.AlertSummary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Subject: %s\n\n%s", res.Subject, res.Body)
		return nil

	case "ack":
		if len(args) < 2 {
			return fmt.Errorf("%w: ack <alert-id>...", ErrUsage)
		}
		res, err := svc.AcknowledgeAlerts(ctx, app.AcknowledgeRequest{AlertIDs: args[1:], User: user})
		if res != nil {
			printAckResult(out, res)
		}
		return err

	case "settings":
		if len(args) > 1 && args[1] == "history" {
			versions, err := svc.AlertSettingsHistory(ctx, 0)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUPDATED AT\tBY\tWARN\tCRIT\tSTOCK\tEMAIL")
			for _, v := range versions {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%t\n", v.ID, v.UpdatedAt.Format("2006-01-02 15:04"), v.UpdatedBy,
					v.Settings.ExpiryWarningDays, v.Settings.ExpiryCriticalDays, v.Settings.LowStockThreshold,
					v.Settings.EnableEmailNotifications)
			}
			return tw.Flush()
		}
		return writeJSON(out, svc.GetAlertSettings(ctx))

	case "notify":
		var (
			report *core.DispatchReport
			err    error
		)
		if len(args) > 1 && args[1] == "test" {
			report, err = svc.SendTestNotification(ctx, user)
		} else {
			report, err = svc.SendAlertNotifications(ctx)
		}
		if report != nil {
			fmt.Fprintf(out, "%s via %s: %d sent, %d failed\n", report.Subject, report.Transport, len(report.Sent), len(report.Failed))
		}
		return err

	case "lookup", "scan":
		return runLookup(ctx, svc, user, args[1:], out)

	case "stats":
		inv, err := svc.InventoryStats(ctx)
		if err != nil {
			return err
		}
		scans, err := svc.ScanHistory(ctx, core.ScanFilter{})
		if err != nil {
			return err
		}
		return writeJSON(out, map[string]any{"inventory": inv, "scans": scans.Stats})

	default:
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, args[0], Usage)
	}
}

func runAlerts(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("alerts", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	types := fs.String("type", "", "comma-separated alert types")
	severities := fs.String("severity", "", "comma-separated severities")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	var q app.AlertQuery
	for _, t := range splitList(*types) {
		q.Types = append(q.Types, core.AlertType(t))
	}
	for _, s := range splitList(*severities) {
		q.Severities = append(q.Severities, core.Severity(s))
	}
	res, err := svc.ListAlerts(ctx, q)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(out, res)
	}

	fmt.Fprintf(out, "Active alerts: %d (critical %d, warning %d, info %d)\n\n",
		res.Counts.Total, res.Counts.Critical, res.Counts.Warning, res.Counts.Info)
	if len(res.Alerts) == 0 {
		fmt.Fprintln(out, "No alerts match.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tTYPE\tITEM\tLOCATION\tMESSAGE")
	for _, a := range res.Alerts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Severity, a.Type, a.ItemName, a.Location, a.Message)
	}
	return tw.Flush()
}

func runLookup(ctx context.Context, svc app.ApplicationService, user string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	codeType := fs.String("type", string(core.CodeInventoryNumber), "code type")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: lookup [-type T] <code>", ErrUsage)
	}
	res, err := svc.LookupBarcode(ctx, app.LookupRequest{Code: fs.Arg(0), CodeType: core.CodeType(*codeType), ScannedBy: user})
	if err != nil {
		return err
	}
	if !res.Found {
		fmt.Fprintf(out, "No record found for %q.\n", fs.Arg(0))
		return nil
	}
	return writeJSON(out, res.Record)
}

func printAckResult(out io.Writer, res *core.AckResult) {
	for _, id := range res.Acknowledged {
		fmt.Fprintf(out, "acknowledged  %s\n", id)
	}
	for _, id := range res.Skipped {
		fmt.Fprintf(out, "skipped       %s (stock alerts cannot be acknowledged)\n", id)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(out, "failed        %s: %s\n", f.ID, f.Reason)
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
