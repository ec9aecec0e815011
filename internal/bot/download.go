package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tunebot/core/jobs"
	"github.com/m3rciful/tunebot/core/journal"
	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/media"
	"github.com/m3rciful/tunebot/core/session"
	"github.com/m3rciful/tunebot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/tunebot/core/telegram/helpers"
)

type downloadJob struct {
	guard      *jobs.Guard
	to         tghelpers.Target
	status     *tele.Message
	chatID     int64
	userID     int64
	resourceID string
}

func (a *App) onDownloadButton(c tele.Context) error {
	id := callbacks.PayloadString(c)
	if id == "" {
		return callbacks.Answer(c, textExpired, true)
	}
	return a.startDownload(c, id, false)
}

// startLinkDownload is startDownload for pasted links, which cost a quota unit.
func (a *App) startLinkDownload(c tele.Context, id string) error {
	return a.startDownload(c, id, true)
}

// startDownload registers the job, posts a status message and hands the work
// to the pool. The guard is released by the job, or here when the job never
// gets scheduled.
func (a *App) startDownload(c tele.Context, id string, quota bool) error {
	ctx := ctxOf(c)
	user := c.Sender()
	chat := c.Chat()
	if user == nil || chat == nil {
		return nil
	}

	guard, err := a.coord.BeginDownload(ctx, chat.ID, user.ID, id)
	if errors.Is(err, session.ErrDuplicateJob) {
		if c.Callback() != nil {
			return callbacks.Answer(c, textAlreadyActive, false)
		}
		return a.reply(c, textAlreadyActive, nil)
	}
	if err != nil {
		return err
	}

	if quota {
		if err := a.coord.AdmitRequest(ctx, user.ID); err != nil {
			guard.Release()
			return a.reply(c, quotaText(a.coord.MaxRequests()), nil)
		}
	}
	if c.Callback() != nil {
		_ = callbacks.Answer(c, textStartDownload, false)
	}

	to := tghelpers.TargetOf(c)
	status, err := a.send.HTML(ctx, to, textDownloading, nil)
	if err != nil {
		guard.Release()
		return err
	}

	job := downloadJob{
		guard:      guard,
		to:         to,
		status:     status,
		chatID:     chat.ID,
		userID:     user.ID,
		resourceID: id,
	}
	// The job outlives the update; only the timeout ends it.
	a.pool.Go(context.WithoutCancel(ctx), func(jctx context.Context) {
		defer job.guard.Release()
		a.runDownload(jctx, job)
	})
	return nil
}

func (a *App) runDownload(ctx context.Context, job downloadJob) {
	start := time.Now()
	a.metrics.DownloadStarted()

	dctx, cancel := context.WithTimeout(ctx, a.cfg.Downloads.Timeout)
	defer cancel()

	entry := journal.Entry{
		ChatID:     job.chatID,
		UserID:     job.userID,
		ResourceID: job.resourceID,
		Outcome:    journal.OutcomeOK,
	}

	track, err := a.down.Download(dctx, job.resourceID)
	if track != nil {
		defer media.RemoveFiles(ctx, track.Files(), media.WithRemoveResult(func(removed bool) {
			if removed {
				a.metrics.FileRemoval("removed")
			} else {
				a.metrics.FileRemoval("abandoned")
			}
		}))
		entry.Title = track.Title
		entry.SizeBytes = track.Size
	}

	if err == nil {
		err = a.deliver(ctx, job, track)
	}

	switch {
	case errors.Is(err, media.ErrTooLarge):
		entry.Outcome = journal.OutcomeTooLarge
		a.editStatus(ctx, job, textTooLarge)
	case err != nil:
		entry.Outcome = journal.OutcomeFail
		a.editStatus(ctx, job, failedText(err))
	default:
		if job.status != nil {
			a.send.Delete(ctx, job.status)
		}
	}

	took := time.Since(start)
	entry.DurationMS = took.Milliseconds()
	a.metrics.DownloadFinished(entry.Outcome, took)

	attrs := []slog.Attr{
		slog.String("resource_id", job.resourceID),
		slog.String("reason", entry.Outcome),
		slog.Int64("size_bytes", entry.SizeBytes),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("outcome", "fail"), slog.String("err", err.Error()))
		logger.Warn(ctx, component, "download.done", attrs...)
	} else {
		attrs = append(attrs, slog.String("outcome", "ok"))
		logger.Info(ctx, component, "download.done", attrs...)
	}

	if jerr := a.journal.Record(ctx, entry); jerr != nil {
		logger.Warn(ctx, component, "journal.fail", slog.String("err", jerr.Error()))
	}
}

// deliver uploads the track with its thumbnail.
func (a *App) deliver(ctx context.Context, job downloadJob, track *media.Track) error {
	if track == nil || track.Path == "" {
		return media.ErrNoAudio
	}
	audio := &tele.Audio{
		File:      tele.FromDisk(track.Path),
		Title:     track.Title,
		Performer: track.Artist,
		Duration:  int(track.Duration.Seconds()),
		Caption:   audioCaption(track.Title, track.Artist),
		FileName:  track.Title + ".mp3",
	}
	if track.ThumbPath != "" {
		audio.Thumbnail = &tele.Photo{File: tele.FromDisk(track.ThumbPath)}
	}
	_, err := a.send.Audio(ctx, job.to, audio)
	return err
}

func (a *App) editStatus(ctx context.Context, job downloadJob, text string) {
	if job.status == nil {
		a.send.Notify(ctx, job.to, text, nil)
		return
	}
	if err := a.send.Edit(ctx, job.status, text, nil); err != nil {
		logger.Warn(ctx, component, "status.edit.fail", slog.String("err", err.Error()))
	}
}
