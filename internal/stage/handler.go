package stage

import (
	"context"

	"clipstream/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Video) error
	Execute(context.Context, *queue.Video) error
	HealthCheck(context.Context) Health
}
