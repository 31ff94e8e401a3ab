// Package delivery forwards stored files that have not yet been sent to a
// chat, oldest first, and records each successful send.
package delivery

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/iteehub/itee_hub/internal/archive"
	"github.com/iteehub/itee_hub/internal/logctx"
	"github.com/iteehub/itee_hub/internal/storage"
	"github.com/iteehub/itee_hub/internal/telemetry"
)

// DocumentSender sends a local file with a caption to a chat.
type DocumentSender interface {
	SendDocument(ctx context.Context, chatID, caption, filePath string) error
}

// Deliverer computes pending files per chat and sends them in chronological
// order.
type Deliverer struct {
	repo      storage.Repository
	sender    DocumentSender
	dataDir   string
	pause     time.Duration
	telemetry *telemetry.Telemetry
}

func New(repo storage.Repository, sender DocumentSender, dataDir string, pause time.Duration, tel *telemetry.Telemetry) *Deliverer {
	return &Deliverer{
		repo:      repo,
		sender:    sender,
		dataDir:   dataDir,
		pause:     pause,
		telemetry: tel,
	}
}

// Deliver sends every pending file for the chat. A failed send is logged and
// the record stays pending for the next run; subsequent items are still
// attempted. A pacing pause between sends keeps the Bot API rate limit happy
// (20 messages per minute per chat).
func (d *Deliverer) Deliver(ctx context.Context, chatID string) error {
	logger := logctx.LoggerFromContext(ctx).With("chat_id", chatID)

	pending, err := d.repo.GetPending(ctx, chatID)
	if err != nil {
		return fmt.Errorf("failed to get pending files: %w", err)
	}

	if len(pending) == 0 {
		logger.Info("found no pending files")

		return nil
	}

	logger.Info("found pending files", "count", len(pending))

	for i, record := range pending {
		if i > 0 {
			if err := d.wait(ctx); err != nil {
				return err
			}
		}

		caption, filePath, err := d.prepareMessage(ctx, record)
		if err != nil {
			logger.Warn("skipping record", "link", record.Link, "err", err)

			continue
		}

		if err := d.sender.SendDocument(ctx, chatID, caption, filePath); err != nil {
			logger.Error("failed to send document", "file", filepath.Base(filePath), "err", err)
			d.telemetry.RecordDelivery(ctx, false)

			continue
		}

		d.telemetry.RecordDelivery(ctx, true)

		// A failed append means the file is re-sent on the next run; the
		// store itself never rejects the retry.
		if err := d.repo.AddDelivery(ctx, chatID, record.ContentHash); err != nil {
			logger.Error("failed to record delivery", "link", record.Link, "err", err)
		}

		logger.Info("sent", "file", filepath.Base(filePath))
	}

	return nil
}

func (d *Deliverer) wait(ctx context.Context) error {
	if d.pause <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.pause):
		return nil
	}
}

var sessionPattern = regexp.MustCompile(`(?i)(\d{4}[AS])`)

// prepareMessage derives the local file path and composes the HTML caption
// with its hashtags for a pending record.
func (d *Deliverer) prepareMessage(ctx context.Context, record storage.FileRecord) (string, string, error) {
	info := archive.Classify(ctx, record.Link)

	filePath, err := archive.LocalPath(ctx, info, d.dataDir)
	if err != nil {
		return "", "", err
	}

	return buildCaption(info, record, filepath.Base(filePath)), filePath, nil
}

func buildCaption(info archive.LinkInfo, record storage.FileRecord, fileName string) string {
	lastModified := time.Unix(record.LastModified, 0).UTC()
	level := strings.ToUpper(info.Level)
	linkType := capitalize(info.Type)

	tags := "#" + level + " #" + level + "_" + info.Year

	if match := sessionPattern.FindStringSubmatch(fileName); match != nil {
		tags += " #" + level + "_" + match[1]
	}

	tags += " #" + info.Type

	var headline string

	if info.Country != "" {
		tags += " #" + info.Country
		headline = linkType + " of " + info.Country + "'s"
	} else {
		headline = linkType + " of"
	}

	caption := fmt.Sprintf("<a href='%s'>%s %s %s</a>", record.Link, headline, level, record.PeriodLabel)
	caption += "\n<b>last modified: </b> " + lastModified.Format(time.RFC1123)
	caption += "\n\n" + tags

	return caption
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
