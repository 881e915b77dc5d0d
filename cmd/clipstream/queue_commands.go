package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipstream/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			var statuses []queue.Status
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				status, ok := queue.ParseStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", trimmed)
				}
				statuses = append(statuses, status)
			}

			videos, err := store.List(cmd.Context(), statuses...)
			if err != nil {
				return fmt.Errorf("list queue: %w", err)
			}
			if len(videos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}

			rows := make([][]string, 0, len(videos))
			for _, video := range videos {
				rows = append(rows, []string{
					video.ID,
					truncate(video.Title, 32),
					string(video.Status),
					strconv.Itoa(video.StatusCode()),
					strconv.Itoa(video.Attempts),
					truncate(video.ErrorMessage, 48),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Code", "Attempts", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show videos in the given status")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [video-id...]",
		Short: "Requeue failed videos at the stage they failed in",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.RetryFailed(cmd.Context(), args...)
			if err != nil {
				return fmt.Errorf("retry failed videos: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d video(s).\n", count)
			return nil
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <video-id>",
		Short: "Request cancellation of a queued or in-flight video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			id := strings.TrimSpace(args[0])
			flagged, err := store.RequestCancel(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("request cancel: %w", err)
			}
			if !flagged {
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s is unknown or already terminal.\n", id)
				return nil
			}

			video, err := store.GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("read video: %w", err)
			}
			if video != nil && video.Status == queue.StatusCancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Video %s cancelled.\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for %s; it takes effect at the current stage boundary.\n", id)
			}
			return nil
		},
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
