package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recruit-comms/internal/app"
	"recruit-comms/internal/jobs"
	"recruit-comms/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and feed the job queues",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print job counts per queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			stats, err := a.Queues.Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-22s %8s %8s %8s %10s %8s\n", "QUEUE", "WAITING", "ACTIVE", "DELAYED", "COMPLETED", "FAILED")
			for _, s := range stats {
				fmt.Fprintf(w, "%-22s %8d %8d %8d %10d %8d\n", s.Queue, s.Waiting, s.Active, s.Delayed, s.Completed, s.Failed)
			}
			return nil
		})
	},
}

var recoverFlags struct {
	queue     string
	olderThan time.Duration
}

var queueRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Fail jobs left reserved by a dead worker so they follow the retry policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names := queue.Names
		if recoverFlags.queue != "" {
			names = []string{recoverFlags.queue}
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			for _, name := range names {
				q, err := a.Queues.Queue(name)
				if err != nil {
					return err
				}
				n, err := q.RecoverStalled(cmd.Context(), recoverFlags.olderThan)
				if err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s recovered %d\n", name, n)
			}
			return nil
		})
	},
}

var reminder struct {
	to, name, job, location, channel string
	at, fireAt                       string
}

var queueEnqueueReminderCmd = &cobra.Command{
	Use:   "enqueue-reminder",
	Short: "Schedule an interview reminder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interviewAt, err := time.Parse(time.RFC3339, reminder.at)
		if err != nil {
			return fmt.Errorf("--at must be RFC3339: %w", err)
		}
		var fireAt time.Time
		if reminder.fireAt != "" {
			if fireAt, err = time.Parse(time.RFC3339, reminder.fireAt); err != nil {
				return fmt.Errorf("--fire-at must be RFC3339: %w", err)
			}
		}
		p := jobs.ReminderPayload{
			To:            reminder.to,
			CandidateName: reminder.name,
			JobTitle:      reminder.job,
			InterviewAt:   interviewAt,
			Location:      reminder.location,
			Channel:       reminder.channel,
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			job, err := jobs.ScheduleReminder(cmd.Context(), a.Queues.InterviewReminders(), p, fireAt, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s job %s (%s)\n", job.Queue, job.ID, job.Status)
			return nil
		})
	},
}

func init() {
	f := queueEnqueueReminderCmd.Flags()
	f.StringVar(&reminder.to, "to", "", "candidate phone number")
	f.StringVar(&reminder.name, "name", "", "candidate name")
	f.StringVar(&reminder.job, "job", "", "job title")
	f.StringVar(&reminder.at, "at", "", "interview time (RFC3339)")
	f.StringVar(&reminder.location, "location", "", "interview location")
	f.StringVar(&reminder.channel, "channel", jobs.ChannelSMS, "sms or call")
	f.StringVar(&reminder.fireAt, "fire-at", "", "when to send the reminder (RFC3339, default now)")
	for _, name := range []string{"to", "name", "job", "at"} {
		_ = queueEnqueueReminderCmd.MarkFlagRequired(name)
	}
	rf := queueRecoverCmd.Flags()
	rf.StringVar(&recoverFlags.queue, "queue", "", "queue name (default every queue)")
	rf.DurationVar(&recoverFlags.olderThan, "older-than", 6*time.Minute, "recover jobs reserved longer ago than this")

	queueCmd.AddCommand(queueStatsCmd, queueEnqueueReminderCmd, queueRecoverCmd)
	rootCmd.AddCommand(queueCmd)
}
