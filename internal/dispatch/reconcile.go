package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blue-raster/workforce-bridge/internal/notify"
	"github.com/blue-raster/workforce-bridge/pkg/arcgis"
)

// attachmentConcurrency bounds simultaneous attachment transfers.
const attachmentConcurrency = 4

// reconcile pairs ordered upload results with their ordered source
// records, transfers attachments for the successes, and emails one report
// enumerating the failures. A result count that disagrees with the batch
// is a broken upstream contract and fatal.
func (r *Runner) reconcile(ctx context.Context, sources []sourceRecord, results []arcgis.AddResult) (uploaded, failed int, err error) {
	log := zap.L()

	if len(results) != len(sources) {
		return 0, 0, &UploadError{
			Err: fmt.Errorf("submitted %d assignments but got %d results", len(sources), len(results)),
		}
	}

	var failures []string
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(attachmentConcurrency)

	for i, result := range results {
		src := sources[i]
		if !result.Success {
			failed++
			desc := "unknown error"
			if result.Error != nil {
				desc = result.Error.Description
			}
			failures = append(failures, fmt.Sprintf("%d: %s", src.ObjectID, desc))
			log.Warn("dispatch: assignment rejected",
				zap.Int64("record_id", src.ObjectID),
				zap.String("error", desc))
			continue
		}

		uploaded++
		sourceID, targetID := src.ObjectID, result.ObjectID
		g.Go(func() error {
			if terr := r.transferAttachments(gctx, sourceID, targetID); terr != nil {
				log.Warn("dispatch: attachment transfer failed", zap.Error(terr))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		body := notify.FailureBody(failures)
		if mailErr := r.mail.Send(ctx, r.cfg.Notify.Subject, body); mailErr != nil {
			log.Error("dispatch: send failure report", zap.Error(mailErr))
		}
	}

	return uploaded, failed, nil
}

// transferAttachments copies every attachment from a maintenance record
// to its uploaded assignment. Individual attachment failures are logged
// and skipped; only listing failure aborts the record's transfer.
func (r *Runner) transferAttachments(ctx context.Context, sourceID, targetID int64) error {
	log := zap.L().With(zap.Int64("source_id", sourceID), zap.Int64("target_id", targetID))

	infos, err := r.client.ListAttachments(ctx, r.cfg.Source.URL, sourceID)
	if err != nil {
		return &AttachmentError{SourceID: sourceID, TargetID: targetID, Err: err}
	}
	for _, info := range infos {
		data, err := r.client.FetchAttachment(ctx, r.cfg.Source.URL, sourceID, info)
		if err != nil {
			log.Warn("dispatch: fetch attachment", zap.String("name", info.Name), zap.Error(err))
			continue
		}
		if err := r.client.AddAttachment(ctx, r.cfg.Dispatch.URL, targetID, info.Name, info.ContentType, data); err != nil {
			log.Warn("dispatch: add attachment", zap.String("name", info.Name), zap.Error(err))
			continue
		}
		log.Debug("dispatch: attachment transferred", zap.String("name", info.Name))
	}
	return nil
}
