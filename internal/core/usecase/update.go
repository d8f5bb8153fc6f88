package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
)

// UpdateObserver follows one update session through its states.
type UpdateObserver interface {
	UpdateStateChanged(sessionID string, state domain.UpdateState)
	DownloadProgressed(sessionID string, progress domain.DownloadProgress)
	DownloadFinished(sessionID string, progress domain.DownloadProgress)
}

type UpdateUseCase struct {
	currentVersion string
	source         ports.ReleaseSource
	downloader     ports.PackageDownloader
	installer      ports.PackageInstaller
	restarter      ports.Restarter
	observers      []UpdateObserver

	stagingDir string
	inflight   singleflight.Group
}

func NewUpdateUseCase(
	currentVersion string,
	source ports.ReleaseSource,
	downloader ports.PackageDownloader,
	installer ports.PackageInstaller,
	restarter ports.Restarter,
	observers ...UpdateObserver,
) *UpdateUseCase {
	return &UpdateUseCase{
		currentVersion: currentVersion,
		source:         source,
		downloader:     downloader,
		installer:      installer,
		restarter:      restarter,
		observers:      observers,
	}
}

// WithStagingDir sets where packages are downloaded before install.
func (uc *UpdateUseCase) WithStagingDir(dir string) *UpdateUseCase {
	uc.stagingDir = dir
	return uc
}

// Update runs Checking → Downloading → Installing → RestartPending. Having no
// newer release is a normal outcome. Concurrent callers share one session,
// which keeps running when any one of them stops waiting.
func (uc *UpdateUseCase) Update(ctx context.Context) (domain.UpdateOutcome, error) {
	shared := context.WithoutCancel(ctx)
	ch := uc.inflight.DoChan("update", func() (any, error) {
		return uc.run(shared)
	})
	select {
	case res := <-ch:
		outcome, _ := res.Val.(domain.UpdateOutcome)
		return outcome, res.Err
	case <-ctx.Done():
		return domain.UpdateOutcome{}, ctx.Err()
	}
}

func (uc *UpdateUseCase) run(ctx context.Context) (domain.UpdateOutcome, error) {
	session := &updateSession{id: uuid.NewString(), observers: uc.observers}

	session.transition(domain.UpdateChecking)
	manifest, available, err := uc.check(ctx)
	if err != nil {
		return session.fail(err)
	}
	if !available {
		session.transition(domain.UpdateNone)
		return session.outcome(domain.UpdateNone, ""), nil
	}
	session.transition(domain.UpdateAvailable)
	slog.Info("update_available", "session_id", session.id, "current", uc.currentVersion, "version", manifest.Version)

	session.transition(domain.UpdateDownloading)
	pkg, err := uc.download(ctx, session, manifest)
	if err != nil {
		return session.fail(err)
	}
	defer func() {
		_ = pkg.Close()
		_ = os.Remove(pkg.Name())
	}()

	session.transition(domain.UpdateInstalling)
	if err := uc.installer.Install(ctx, pkg, manifest); err != nil {
		return session.fail(domain.WrapError(domain.ErrUpdateInstall, "install update", err))
	}

	session.transition(domain.UpdateRestartPending)
	outcome := session.outcome(domain.UpdateRestartPending, manifest.Version)
	if err := uc.restarter.Restart(); err != nil {
		return outcome, fmt.Errorf("restart after update %s: %w", manifest.Version, err)
	}
	return outcome, nil
}

func (uc *UpdateUseCase) check(ctx context.Context) (domain.UpdateManifest, bool, error) {
	manifest, err := uc.source.Latest(ctx)
	if err != nil {
		return domain.UpdateManifest{}, false, domain.WrapError(domain.ErrUpdateCheck, "check for update", err)
	}
	if strings.TrimSpace(manifest.URL) == "" {
		return domain.UpdateManifest{}, false, domain.WrapError(domain.ErrUpdateCheck, "check for update", errors.New("manifest has no download url"))
	}

	remote := canonicalVersion(manifest.Version)
	if !semver.IsValid(remote) {
		return domain.UpdateManifest{}, false, domain.WrapError(domain.ErrUpdateCheck, "check for update",
			fmt.Errorf("invalid remote version %q", manifest.Version))
	}
	current := canonicalVersion(uc.currentVersion)
	if !semver.IsValid(current) {
		slog.Warn("update_skipped_unversioned_build", "current", uc.currentVersion, "remote", manifest.Version)
		return manifest, false, nil
	}
	return manifest, semver.Compare(remote, current) > 0, nil
}

func (uc *UpdateUseCase) download(ctx context.Context, session *updateSession, manifest domain.UpdateManifest) (*os.File, error) {
	pkg, err := os.CreateTemp(uc.stagingDir, "invoice-agent-update-*")
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpdateDownload, "stage update", err)
	}
	discard := func() {
		_ = pkg.Close()
		_ = os.Remove(pkg.Name())
	}

	var lastStep int64 = -1
	tracker := NewProgressTracker(
		func(p domain.DownloadProgress) {
			if step := progressStep(p); step != lastStep {
				lastStep = step
				slog.Info("update_progress", "session_id", session.id, "downloaded", p.Downloaded, "total", p.Total)
			}
			for _, o := range session.observers {
				o.DownloadProgressed(session.id, p)
			}
		},
		func(p domain.DownloadProgress) {
			for _, o := range session.observers {
				o.DownloadFinished(session.id, p)
			}
		},
	)

	if _, err := uc.downloader.Download(ctx, manifest, pkg, tracker.Chunk, tracker.Finish); err != nil {
		discard()
		return nil, domain.WrapError(domain.ErrUpdateDownload, "download update", err)
	}
	if _, err := pkg.Seek(0, 0); err != nil {
		discard()
		return nil, domain.WrapError(domain.ErrUpdateDownload, "rewind update package", err)
	}
	slog.Info("update_downloaded", "session_id", session.id, "bytes", tracker.Progress().Downloaded)
	return pkg, nil
}

type updateSession struct {
	id        string
	observers []UpdateObserver
}

func (s *updateSession) transition(state domain.UpdateState) {
	slog.Info("update_state", "session_id", s.id, "state", string(state))
	for _, o := range s.observers {
		o.UpdateStateChanged(s.id, state)
	}
}

func (s *updateSession) fail(err error) (domain.UpdateOutcome, error) {
	slog.Error("update_failed", "session_id", s.id, "error", err)
	s.transition(domain.UpdateFailed)
	return s.outcome(domain.UpdateFailed, ""), err
}

func (s *updateSession) outcome(state domain.UpdateState, version string) domain.UpdateOutcome {
	return domain.UpdateOutcome{SessionID: s.id, State: state, Version: version}
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// progressStep buckets progress into tenths of the total, or MiB when the
// total is unknown, so update_progress is logged a bounded number of times.
func progressStep(p domain.DownloadProgress) int64 {
	if p.Total > 0 {
		return p.Downloaded * 10 / p.Total
	}
	return p.Downloaded >> 20
}
