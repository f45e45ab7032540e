package workflow

import (
	"context"

	"capturesync/internal/queue"
	"capturesync/internal/services"
)

func itemContext(ctx context.Context, item *queue.Item) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if item == nil {
		return ctx
	}
	ctx = services.WithItemID(ctx, item.ID)
	return services.WithRecordID(ctx, item.RecordID)
}
