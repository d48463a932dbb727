package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sdlcguard/sdlcguard/internal/observability"
)

var (
	eventsType  string
	eventsLevel string
	eventsTask  string
	eventsSince string
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Display the audit event log",
	Long: `Display events from the append-only audit log. Every task mutation,
policy decision, and hook verdict lands here.

Use --since with a Go duration (e.g. 36h) or an RFC 3339 timestamp to
bound the time range.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if EventLog == nil {
			return fmt.Errorf("event log not initialized")
		}

		filter := observability.EventFilter{
			Type:   eventsType,
			Level:  eventsLevel,
			TaskID: eventsTask,
		}
		if eventsSince != "" {
			since, err := parseSince(eventsSince)
			if err != nil {
				return err
			}
			filter.Since = &since
		}

		events, err := EventLog.Read(filter)
		if err != nil {
			return fmt.Errorf("reading event log: %w", err)
		}

		if eventsLimit > 0 && len(events) > eventsLimit {
			events = events[len(events)-eventsLimit:]
		}

		if len(events) == 0 {
			fmt.Println("No events found.")
			return nil
		}

		for _, e := range events {
			taskID := e.TaskID
			if taskID == "" {
				taskID = "-"
			}
			fmt.Printf("%s %-5s %-24s %-10s %s\n",
				e.Time.Format("2006-01-02 15:04:05"), e.Level, e.Type, taskID, e.Message)
		}

		return nil
	},
}

// parseSince accepts either a Go duration ("36h") interpreted as relative to
// now, or an RFC 3339 timestamp.
func parseSince(raw string) (time.Time, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return time.Now().UTC().Add(-d), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q (want duration or RFC 3339 timestamp)", raw)
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Filter by event type (e.g. task.created)")
	eventsCmd.Flags().StringVar(&eventsLevel, "level", "", "Filter by level (INFO, WARN, ERROR)")
	eventsCmd.Flags().StringVar(&eventsTask, "task", "", "Filter by task ID")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "Only events after this duration ago or timestamp")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of events to show (0 = all)")
	rootCmd.AddCommand(eventsCmd)
}
