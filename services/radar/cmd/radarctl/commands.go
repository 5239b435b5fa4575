package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/comment-radar/services/radar/internal/comment"
	"github.com/example/comment-radar/services/radar/internal/reconcile"
	"github.com/example/comment-radar/services/radar/internal/reportq"
	"github.com/example/comment-radar/services/radar/internal/router"
)

type statusAck struct {
	Status string `json:"status"`
}

type queuedAck struct {
	Status        string `json:"status"`
	QueuePosition int    `json:"queuePosition"`
	CommentID     string `json:"commentId"`
	Added         bool   `json:"added"`
}

type completedAck struct {
	Status      string         `json:"status"`
	NextInQueue *reportq.Entry `json:"nextInQueue"`
}

type pingAck struct {
	Status        string `json:"status"`
	PageTitle     string `json:"pageTitle"`
	URL           string `json:"url,omitempty"`
	VideoID       string `json:"videoId"`
	CommentsCount int    `json:"commentsCount"`
	CurrentReport *struct {
		Username string         `json:"username"`
		Status   reportq.Status `json:"status"`
	} `json:"currentReport"`
}

type logsAck struct {
	Logs []comment.Record `json:"logs"`
}

type reportStatusAck struct {
	CommentID string `json:"commentId"`
	Reported  bool   `json:"reported"`
}

func newScanCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Start a scan of the comments currently on the page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ack statusAck
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionForceScan}, &ack); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, ack)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Scan started")
			return nil
		},
	}
}

func newReportCommand(cc *commandContext) *cobra.Command {
	var req reportq.Request
	cmd := &cobra.Command{
		Use:   "report <commentId>",
		Short: "Queue a comment for manual reporting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Fingerprint = args[0]
			var ack queuedAck
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionManualReport, CommentData: &req}, &ack); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, ack)
			}
			if ack.Added {
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s at position %d\n", ack.CommentID, ack.QueuePosition)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already queued at position %d\n", ack.CommentID, ack.QueuePosition)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Author, "user", "", "Comment author")
	cmd.Flags().StringVar(&req.Text, "text", "", "Comment text used to locate the element")
	cmd.Flags().Float64Var(&req.Confidence, "confidence", 0, "Classifier confidence")
	return cmd
}

func newCompleteCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete",
		Short: "Confirm the report awaiting the user and move to the next one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ack completedAck
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionCompleteReport}, &ack); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, ack)
			}
			out := cmd.OutOrStdout()
			switch {
			case ack.Status == "no_active_report":
				fmt.Fprintln(out, "No report awaiting confirmation")
			case ack.NextInQueue != nil:
				fmt.Fprintf(out, "Report completed, next: %s (@%s)\n", ack.NextInQueue.Fingerprint, ack.NextInQueue.Author)
			default:
				fmt.Fprintln(out, "Report completed, queue empty")
			}
			return nil
		},
	}
}

func newCancelCommand(cc *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the current report, or the whole queue with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, msg := router.ActionCancelReport, "Report cancelled"
			if all {
				action, msg = router.ActionClearQueue, "Queue cleared"
			}
			var ack statusAck
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: action}, &ack); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, ack)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every queued report")
	return cmd
}

func newQueueCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the report queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var snap reportq.Snapshot
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionQueueStatus}, &snap); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, snap)
			}
			out := cmd.OutOrStdout()
			if snap.QueueLength == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			rows := make([][]string, 0, len(snap.Queue))
			for i, e := range snap.Queue {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					e.Fingerprint,
					e.Author,
					string(e.Status),
					strconv.Itoa(e.Attempts),
					e.EnqueuedAt.Local().Format(time.TimeOnly),
					e.LastError,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Comment", "User", "Status", "Attempts", "Added", "Error"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newLogsCommand(cc *commandContext) *cobra.Command {
	var spamOnly, clearAll bool
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "List classified comments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if clearAll {
				var ack statusAck
				if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionClearLogs}, &ack); err != nil {
					return err
				}
				if cc.asJSON {
					return writeJSON(cmd, ack)
				}
				fmt.Fprintln(out, "Logs cleared")
				return nil
			}

			var ack logsAck
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionGetLogs}, &ack); err != nil {
				return err
			}
			records := filterRecords(ack.Logs, spamOnly, limit)
			if cc.asJSON {
				return writeJSON(cmd, logsAck{Logs: records})
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No records")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				reported := ""
				if r.Reported {
					reported = "yes"
				}
				rows = append(rows, []string{
					r.Fingerprint,
					r.Author,
					string(r.Label),
					strconv.FormatFloat(r.Confidence, 'f', 1, 64),
					reported,
					comment.Truncate(r.Text, 40),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Comment", "User", "Label", "Confidence", "Reported", "Text"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&spamOnly, "spam", false, "Only show spam records")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many records")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete every stored record")
	return cmd
}

func filterRecords(records []comment.Record, spamOnly bool, limit int) []comment.Record {
	out := make([]comment.Record, 0, len(records))
	for _, r := range records {
		if spamOnly && !r.IsSpam() {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func newStatsCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st reconcile.Stats
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionGetStats}, &st); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, st)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Total", "Spam", "Safe", "Reported"},
				[][]string{{strconv.Itoa(st.Total), strconv.Itoa(st.Spam), strconv.Itoa(st.Safe), strconv.Itoa(st.Reported)}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newStatusCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <commentId>",
		Short: "Check whether a comment has been reported",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ack reportStatusAck
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionCheckReportStatus, CommentID: args[0]}, &ack); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, ack)
			}
			state := "not reported"
			if ack.Reported {
				state = "reported"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", ack.CommentID, state)
			return nil
		},
	}
}

var errNotAlive = errors.New("radar did not answer alive")

func newPingCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the radar and the page it is attached to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ack pingAck
			if err := cc.client().do(cc.ctx(cmd), router.Command{Action: router.ActionPing}, &ack); err != nil {
				return err
			}
			if cc.asJSON {
				return writeJSON(cmd, ack)
			}
			if ack.Status != "alive" {
				return errNotAlive
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Alive: %s (video %s, %d comments)\n", ack.PageTitle, ack.VideoID, ack.CommentsCount)
			if ack.CurrentReport != nil {
				fmt.Fprintf(out, "Current report: @%s %s\n", ack.CurrentReport.Username, ack.CurrentReport.Status)
			}
			return nil
		},
	}
}
