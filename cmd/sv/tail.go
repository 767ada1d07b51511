package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schedview/internal/events"
	"github.com/alfredjeanlab/schedview/internal/model"
	"github.com/alfredjeanlab/schedview/internal/ui"
)

var tailCmd = &cobra.Command{
	Use:     "tail [subject]",
	Short:   "Print schedview events from NATS as they arrive",
	GroupID: "system",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		natsFlag, _ := cmd.Flags().GetString("nats")
		natsURL := natsURLFor(natsFlag)
		if natsURL == "" {
			return fmt.Errorf("no NATS URL; pass --nats, set SCHEDVIEW_NATS_URL, or add one to the active remote")
		}
		subject := events.TopicAll
		if len(args) == 1 {
			subject = args[0]
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		logger := newLogger()
		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				logger.Info("nats reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(subject)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				printEvent(cmd.OutOrStdout(), msg, logger)
			}
		}
	},
}

// printEvent writes one event line. In JSON mode the payload is passed
// through unchanged.
func printEvent(w io.Writer, msg events.Message, logger *slog.Logger) {
	if jsonOutput {
		fmt.Fprintf(w, "{\"topic\":%q,\"data\":%s}\n", msg.Topic, msg.Data)
		return
	}
	stamp := ui.RenderMuted(time.Now().Format("15:04:05"))
	topic := ui.RenderAccent(msg.Topic)

	var detail string
	var err error
	switch msg.Topic {
	case events.TopicFrameRendered:
		var ev events.FrameRendered
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			detail = fmt.Sprintf("job %s %s (%s) %s bars, %s",
				ev.JobID, ui.RenderStatus(ev.SolverStatus, model.IsActive(ev.SolverStatus)), ev.Reason,
				humanize.Comma(int64(ev.Bars)), ev.Score)
		}
	case events.TopicAnalysisUpdated:
		var ev events.AnalysisUpdated
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			detail = "job " + ev.JobID + " digest " + shortDigest(ev.Digest)
			if ev.Stale {
				detail += " " + ui.RenderWarn("(stale)")
			}
			if ev.Report != nil && ev.Report.Advisory != "" {
				detail += " " + ui.RenderWarn(ev.Report.Advisory)
			}
		}
	case events.TopicPollStopped:
		var ev events.PollStopped
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			detail = fmt.Sprintf("job %s: %s", ev.JobID, ev.Reason)
		}
	case events.TopicJobsUpdated:
		var ev events.JobsUpdated
		if err = json.Unmarshal(msg.Data, &ev); err == nil {
			detail = fmt.Sprintf("%s %s", humanize.Comma(int64(len(ev.Jobs))), plural(len(ev.Jobs), "job", "jobs"))
		}
	default:
		detail = string(msg.Data)
	}
	if err != nil {
		logger.Debug("undecodable event", "topic", msg.Topic, "err", err)
		detail = string(msg.Data)
	}
	fmt.Fprintf(w, "%s %s %s\n", stamp, topic, detail)
}

func init() {
	tailCmd.Flags().String("nats", "", "NATS URL (default $SCHEDVIEW_NATS_URL or the active remote)")
}
