package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipstream/internal/embedding"
)

func newRelationsCommand(ctx *commandContext) *cobra.Command {
	var kindFilter string

	cmd := &cobra.Command{
		Use:   "relations <video-id>",
		Short: "Show relationship edges recorded for a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openEmbeddings()
			if err != nil {
				return err
			}
			defer store.Close()

			videoID := strings.TrimSpace(args[0])
			relations, err := store.RelationsFor(cmd.Context(), videoID)
			if err != nil {
				return fmt.Errorf("load relations: %w", err)
			}
			if kind := strings.TrimSpace(kindFilter); kind != "" {
				filtered := relations[:0]
				for _, rel := range relations {
					if rel.Kind == kind {
						filtered = append(filtered, rel)
					}
				}
				relations = filtered
			}
			if len(relations) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No relations recorded for %s.\n", videoID)
				return nil
			}

			rows := make([][]string, 0, len(relations))
			for _, rel := range relations {
				rows = append(rows, []string{
					rel.Kind,
					relationCounterpart(rel, videoID),
					fmt.Sprintf("%.4f", rel.Score),
					offsetColumn(rel),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Kind", "Related Video", "Score", "Offset"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFilter, "kind", "", "Only show edges of the given kind (duplicate, similar, pov, trimmed_from)")
	return cmd
}

// relationCounterpart names the other endpoint. Directed edges point from the
// derived clip to its source, so the counterpart is annotated with the
// direction relative to the queried video.
func relationCounterpart(rel embedding.Relation, videoID string) string {
	if !embedding.Directed(rel.Kind) {
		if rel.VideoA == videoID {
			return rel.VideoB
		}
		return rel.VideoA
	}
	if rel.VideoA == videoID {
		return rel.VideoB + " (source)"
	}
	return rel.VideoA + " (derived)"
}

func offsetColumn(rel embedding.Relation) string {
	if rel.OffsetWindows == nil {
		return ""
	}
	return strconv.Itoa(*rel.OffsetWindows)
}
