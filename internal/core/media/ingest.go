package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"Perch/internal/core/compressor"
)

// InputItem is one heterogeneous input handed to ingestion: a share-sheet
// item, file URL, camera capture, clipboard or drag-and-drop payload.
// Exactly one of Data, FilePath, URL or Text is expected to be set.
type InputItem struct {
	Name     string
	Data     []byte
	FilePath string
	URL      string
	Text     string
}

// IngestResult is the normalized outcome of an ingestion pass.
type IngestResult struct {
	// Containers holds one pending container per recognized media item.
	Containers []*Container

	// InitialText concatenates the text-typed items, to seed the buffer.
	InitialText string

	// HadError is set when at least one item was unrecognized and
	// dropped. Non-fatal: recognized items still produce containers.
	HadError bool
}

// IngestionService converts heterogeneous input items into pending media
// containers, extracting preview frames for video and GIF content.
type IngestionService struct {
	httpClient *http.Client
	scratchDir string
}

// NewIngestionService creates an ingestion service. scratchDir receives
// temporary files for video payloads delivered as raw bytes; empty means
// the system temp dir.
func NewIngestionService(scratchDir string) *IngestionService {
	return &IngestionService{
		httpClient: &http.Client{
			// 30s to handle slow CDNs and large images
			Timeout: 30 * time.Second,
		},
		scratchDir: scratchDir,
	}
}

// Ingest normalizes items into pending containers and initial text.
// Detection is by content, not extension, with video taking precedence over
// GIF over static image over plain text. Unrecognized items set HadError
// and are dropped.
func (s *IngestionService) Ingest(ctx context.Context, items []InputItem) IngestResult {
	var result IngestResult
	var textParts []string

	for _, item := range items {
		if item.Text != "" {
			textParts = append(textParts, item.Text)
			continue
		}

		data := item.Data
		path := item.FilePath

		if item.URL != "" {
			fetched, err := s.fetchURL(ctx, item.URL)
			if err != nil {
				log.Printf("[INGEST] failed to fetch %s: %v", item.URL, err)
				result.HadError = true
				continue
			}
			data = fetched
		}
		if len(data) == 0 && path != "" {
			read, err := os.ReadFile(path)
			if err != nil {
				log.Printf("[INGEST] failed to read %s: %v", path, err)
				result.HadError = true
				continue
			}
			data = read
		}
		if len(data) == 0 {
			result.HadError = true
			continue
		}

		content, text, ok := s.classify(ctx, data, path)
		switch {
		case text != "":
			textParts = append(textParts, text)
		case ok:
			result.Containers = append(result.Containers, NewContainer(content))
		default:
			result.HadError = true
		}
	}

	result.InitialText = strings.Join(textParts, " ")
	return result
}

// loaderResult is one loader's claim on an input item. Lower priority
// numbers win.
type loaderResult struct {
	priority int
	content  Content
	text     string
	ok       bool
}

// classify races the type-specific loaders over the item bytes and takes
// the highest-priority success, cancelling the rest.
func (s *IngestionService) classify(ctx context.Context, data []byte, path string) (Content, string, bool) {
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	loaders := []func(context.Context, []byte, string) loaderResult{
		s.loadVideo,
		s.loadGIF,
		s.loadImage,
		s.loadText,
	}

	results := make([]loaderResult, len(loaders))
	var wg sync.WaitGroup
	for i, loader := range loaders {
		wg.Add(1)
		go func(slot int, load func(context.Context, []byte, string) loaderResult) {
			defer wg.Done()
			results[slot] = load(loadCtx, data, path)
		}(i, loader)
	}
	wg.Wait()

	best := loaderResult{priority: len(loaders)}
	found := false
	for _, r := range results {
		if r.ok && (!found || r.priority < best.priority) {
			best = r
			found = true
		}
	}
	if !found {
		return Content{}, "", false
	}
	return best.content, best.text, true
}

// loadVideo recognizes MP4/QuickTime payloads by their ftyp box, writing
// byte payloads to a scratch file so the encoder has a path to work with.
func (s *IngestionService) loadVideo(ctx context.Context, data []byte, path string) loaderResult {
	if !isVideo(data) {
		return loaderResult{}
	}

	videoPath := path
	if videoPath == "" {
		f, err := os.CreateTemp(s.scratchDirOrDefault(), "perch-ingest-*.mp4")
		if err != nil {
			log.Printf("[INGEST] failed to create scratch video file: %v", err)
			return loaderResult{}
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return loaderResult{}
		}
		if err := f.Close(); err != nil {
			return loaderResult{}
		}
		videoPath = f.Name()
	}

	// Preview extraction is best effort; a video without a preview still
	// uploads fine
	preview, err := compressor.ExtractVideoFrame(ctx, videoPath)
	if err != nil {
		preview = nil
	}
	return loaderResult{priority: 0, content: VideoContent(videoPath, preview), ok: true}
}

func (s *IngestionService) loadGIF(_ context.Context, data []byte, _ string) loaderResult {
	if !isGIF(data) {
		return loaderResult{}
	}
	preview, err := compressor.ExtractGIFFrame(data)
	if err != nil {
		preview = nil
	}
	return loaderResult{priority: 1, content: GIFContent(data, preview), ok: true}
}

func (s *IngestionService) loadImage(_ context.Context, data []byte, _ string) loaderResult {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return loaderResult{}
	}
	return loaderResult{priority: 2, content: ImageContent(data), ok: true}
}

func (s *IngestionService) loadText(_ context.Context, data []byte, _ string) loaderResult {
	if !utf8.Valid(data) || bytes.ContainsRune(data, 0) {
		return loaderResult{}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return loaderResult{}
	}
	return loaderResult{priority: 3, text: text, ok: true}
}

// fetchURL downloads remote image bytes with size and status validation.
func (s *IngestionService) fetchURL(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Some CDNs filter requests without a browser-looking User-Agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Perch/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("Warning: failed to close fetch response body: %v", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return data, nil
}

func (s *IngestionService) scratchDirOrDefault() string {
	if s.scratchDir != "" {
		return s.scratchDir
	}
	return os.TempDir()
}

// isVideo sniffs the ISO base media ftyp box (MP4, QuickTime).
func isVideo(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp"))
}

// isGIF sniffs the GIF87a/GIF89a magic.
func isGIF(data []byte) bool {
	return len(data) >= 6 && (bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")))
}
