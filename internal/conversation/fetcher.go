package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/icholy/digest"
)

// maxRecordingBytes caps a mirrored recording download.
const maxRecordingBytes = 32 << 20

// Fetcher downloads recording audio from the telephony provider into the
// local data directory. Providers protect recording media with digest or
// basic auth on the account credentials.
type Fetcher struct {
	client  *http.Client
	dataDir string
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. When username is empty the download is
// attempted unauthenticated.
func NewFetcher(dataDir, username, password string, logger *slog.Logger) *Fetcher {
	client := &http.Client{Timeout: 30 * time.Second}
	if username != "" {
		client.Transport = &digest.Transport{
			Username: username,
			Password: password,
		}
	}
	return &Fetcher{
		client:  client,
		dataDir: dataDir,
		logger:  logger.With("component", "recording_fetcher"),
	}
}

// Mirror downloads the recording at recordingURL to
// $DATA_DIR/recordings/<conversationID>.wav and returns the local path.
func (f *Fetcher) Mirror(ctx context.Context, recordingURL, conversationID string) (string, error) {
	dir := filepath.Join(f.dataDir, "recordings")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("creating recordings directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating recording request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching recording: provider returned status %d", resp.StatusCode)
	}

	path := filepath.Join(dir, conversationID+".wav")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating recording file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, io.LimitReader(resp.Body, maxRecordingBytes))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing recording file: %w", err)
	}

	f.logger.Info("recording mirrored",
		"conversation_id", conversationID,
		"path", path,
		"bytes", n,
	)
	return path, nil
}
