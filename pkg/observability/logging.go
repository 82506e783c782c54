package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowrun/internal/logging"
	"github.com/aretw0/flowrun/pkg/domain"
)

// LogHooks returns lifecycle hooks that write every event to logger.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_enter",
				logging.SessionID(e.SessionID),
				logging.NodeID(e.NodeID),
				logging.NodeType(e.NodeType),
			)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.DebugContext(ctx, "node_leave",
				logging.SessionID(e.SessionID),
				logging.NodeID(e.NodeID),
			)
		},
		OnStatusChange: func(ctx context.Context, e *domain.StatusEvent) {
			logger.InfoContext(ctx, "status_change",
				logging.SessionID(e.SessionID),
				logging.FlowID(e.FlowID),
				slog.String("from", string(e.From)),
				logging.Status(e.To),
			)
		},
		OnInput: func(ctx context.Context, e *domain.InputEvent) {
			logger.InfoContext(ctx, "input",
				logging.SessionID(e.SessionID),
				logging.NodeID(e.NodeID),
				slog.Bool("outcome", e.Outcome),
			)
		},
		OnMisconfigured: func(ctx context.Context, e *domain.MisconfigurationEvent) {
			logger.WarnContext(ctx, "misconfigured",
				logging.SessionID(e.SessionID),
				logging.NodeID(e.NodeID),
				logging.Err(e.Err),
			)
		},
	}
}
