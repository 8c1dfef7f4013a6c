package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/psantana5/charon/pkg/engine"
	"github.com/psantana5/charon/pkg/errs"
	"github.com/psantana5/charon/pkg/logging"
	"github.com/psantana5/charon/pkg/retry"
)

// Options controls an image download
type Options struct {
	Client *http.Client
	Retry  retry.Config
	Force  bool // download even when the image already exists
	Logger *logging.Logger
}

// Image downloads the VM disk image at url into volumeRoot. The file is
// written to a temporary name and renamed into place, so a partial
// download never looks like an image. Returns whether anything was
// downloaded.
func Image(ctx context.Context, url, volumeRoot string, opts Options) (bool, error) {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialBackoff == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}

	dest := engine.ImagePath(volumeRoot)
	if !opts.Force {
		if _, err := os.Stat(dest); err == nil {
			opts.Logger.Debug("Image already present", map[string]interface{}{"path": dest})
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, errs.Wrap(errs.KindIOFailure, "fetch", dest, err)
		}
	}

	if err := os.MkdirAll(volumeRoot, 0755); err != nil {
		return false, errs.Wrap(errs.KindIOFailure, "fetch", volumeRoot, err)
	}

	attempt := 0
	err := retry.Do(ctx, opts.Retry, func() error {
		attempt++
		err := download(ctx, opts.Client, url, dest)
		if err == nil {
			return nil
		}
		if !retry.IsRetryable(err) {
			return retry.Permanent(err)
		}
		opts.Logger.Warn("Image download failed, retrying", map[string]interface{}{
			"url":     url,
			"attempt": attempt,
			"error":   err.Error(),
		})
		return err
	})
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			return false, errs.Wrap(errs.KindIOFailure, "fetch", url, err)
		}
		return false, err
	}

	opts.Logger.Info("Image downloaded", map[string]interface{}{"url": url, "path": dest})
	return true, nil
}

func download(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.Wrap(errs.KindInvalid, "fetch", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.KindNotFound, "fetch", url, "image not found")
	case resp.StatusCode >= 500:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return errs.New(errs.KindIOFailure, "fetch", url, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errs.Wrap(errs.KindIOFailure, "fetch", tmp, err)
	}

	_, copyErr := io.Copy(f, resp.Body)
	syncErr := f.Sync()
	closeErr := f.Close()
	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		os.Remove(tmp)
		// Truncated bodies are worth another attempt
		return fmt.Errorf("writing %s: %w", filepath.Base(tmp), err)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindIOFailure, "fetch", dest, err)
	}
	return nil
}
