package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finances/internal/amqp"
	"finances/internal/log"
	"finances/internal/services"
)

// Importer runs the reconciliation pipeline for one upload.
type Importer interface {
	Import(ctx context.Context, fileName string) (services.ImportResult, error)
}

// ImportWorker handles import jobs delivered over AMQP
type ImportWorker struct {
	importer Importer
}

func NewImportWorker(importer Importer) *ImportWorker {
	return &ImportWorker{importer: importer}
}

// HandleImportRequest imports the referenced upload. Stream failures are
// final and marked amqp.ErrDiscard; storage failures are returned as is so
// the client retries the job a bounded number of times.
func (w *ImportWorker) HandleImportRequest(ctx context.Context, msg *amqp.ImportRequestedMessage) error {
	logger := slog.With(
		log.FieldComponent, log.ComponentWorker,
		log.FieldFileName, msg.FileName,
		log.FieldRequestID, msg.RequestID)

	logger.InfoContext(ctx, "Processing import request", "requested_at", msg.Timestamp)

	res, err := w.importer.Import(ctx, msg.FileName)
	if err != nil {
		if errors.Is(err, services.ErrStreamFailure) {
			return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
		}
		return fmt.Errorf("import %s: %w", msg.FileName, err)
	}

	logger.InfoContext(ctx, "Import request completed",
		log.NewFields().WithImport(msg.FileName, len(res.Transactions), res.Dropped, res.CategoriesCreated).ToSlice()...)
	return nil
}
