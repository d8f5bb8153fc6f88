package update

import (
	"context"
	"crypto"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/selfupdate"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

// SelfInstaller swaps the running executable for the downloaded package.
type SelfInstaller struct {
	targetPath string
}

// NewSelfInstaller targets the current executable when targetPath is empty.
func NewSelfInstaller(targetPath string) *SelfInstaller {
	return &SelfInstaller{targetPath: targetPath}
}

func (i *SelfInstaller) Install(ctx context.Context, pkg io.Reader, manifest domain.UpdateManifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := selfupdate.Options{
		TargetPath: i.targetPath,
		TargetMode: 0o755,
		Hash:       crypto.SHA256,
	}
	if sum := strings.TrimSpace(manifest.SHA256); sum != "" {
		checksum, err := hex.DecodeString(sum)
		if err != nil {
			return fmt.Errorf("decode manifest checksum: %w", err)
		}
		opts.Checksum = checksum
	}

	if err := selfupdate.Apply(pkg, opts); err != nil {
		if rerr := selfupdate.RollbackError(err); rerr != nil {
			slog.Error("update_rollback_failed", "error", rerr)
			return fmt.Errorf("apply update: %w (rollback failed: %v)", err, rerr)
		}
		return fmt.Errorf("apply update: %w", err)
	}
	slog.Info("update_installed", "version", manifest.Version)
	return nil
}
