package workflow

import (
	"clipstream/internal/queue"
	"clipstream/internal/stage"
)

// Handlers bundles the stage executors the manager drives, in pipeline order.
type Handlers struct {
	DuplicateCheck stage.Handler
	Transcode      stage.Handler
	Transcribe     stage.Handler
	Analyze        stage.Handler
}

type pipelineStage struct {
	name       string
	handler    stage.Handler
	start      queue.Status
	processing queue.Status
	done       queue.Status
}

func buildStages(handlers Handlers) []pipelineStage {
	return []pipelineStage{
		{
			name:       "duplicate-check",
			handler:    handlers.DuplicateCheck,
			start:      queue.StatusPending,
			processing: queue.StatusDuplicateChecking,
			done:       queue.StatusDuplicateChecked,
		},
		{
			name:       "transcode",
			handler:    handlers.Transcode,
			start:      queue.StatusDuplicateChecked,
			processing: queue.StatusTranscoding,
			done:       queue.StatusTranscoded,
		},
		{
			name:       "transcribe",
			handler:    handlers.Transcribe,
			start:      queue.StatusTranscoded,
			processing: queue.StatusTranscribing,
			done:       queue.StatusTranscribed,
		},
		{
			name:       "analyze",
			handler:    handlers.Analyze,
			start:      queue.StatusTranscribed,
			processing: queue.StatusAnalyzing,
			done:       queue.StatusCompleted,
		},
	}
}
