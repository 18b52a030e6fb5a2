package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Winstonlu01/Lunori/internal/audio"
	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
)

const (
	// DefaultURL is where a locally started backend listens.
	DefaultURL = "http://127.0.0.1:8000"
	// DefaultTimeout bounds a single request. Whisper runs inside the
	// chunk and finalize handlers, so it is generous.
	DefaultTimeout = 60 * time.Second
	// UserAgent is sent on every request.
	UserAgent = "lunori-client"

	maxErrorBody = 64 << 10
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Detail)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client talks to the Lunori backend over HTTP.
type Client struct {
	base *url.URL
	http *http.Client
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse server url: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base: u,
		http: &http.Client{Timeout: DefaultTimeout},
		log:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "remote")
	return c, nil
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(elem ...string) string {
	return c.base.JoinPath(elem...).String()
}

// do sends req and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("request", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{Code: resp.StatusCode}
		var eb ErrorBody
		if json.Unmarshal(body, &eb) == nil {
			se.Detail = eb.Message()
		} else {
			se.Detail = strings.TrimSpace(string(body))
		}
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, se)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, out any, elem ...string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(elem...), http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, in, out any, elem ...string) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(elem...), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// filePart is one file field of a multipart form.
type filePart struct {
	field       string
	filename    string
	contentType string
	r           io.Reader
}

func (c *Client) postMultipart(ctx context.Context, fields map[string]string, file filePart, out any, elem ...string) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}

	var fw io.Writer
	var err error
	if file.contentType == "" {
		fw, err = mw.CreateFormFile(file.field, file.filename)
	} else {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		h.Set("Content-Type", file.contentType)
		fw, err = mw.CreatePart(h)
	}
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(fw, file.r); err != nil {
		return fmt.Errorf("copy form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(elem...), &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

// SubmitChunk uploads the cumulative audio of a live session.
func (c *Client) SubmitChunk(ctx context.Context, sessionID string, index int, p audio.Payload) (journal.ChunkResult, error) {
	var resp ChunkResponse
	err := c.postMultipart(ctx,
		map[string]string{"session_id": sessionID, "index": strconv.Itoa(index)},
		filePart{field: "file", filename: p.Filename, contentType: p.ContentType, r: bytes.NewReader(p.Data)},
		&resp, "transcribe", "chunk")
	if err != nil {
		return journal.ChunkResult{}, fmt.Errorf("submit chunk %d: %w", index, err)
	}
	return journal.ChunkResult{
		SessionID:  resp.SessionID,
		Index:      resp.Index,
		Transcript: resp.Transcript,
		Segments:   segments(resp.Segments),
	}, nil
}

// Finalize asks the backend to transcribe the session's full audio once and
// store it.
func (c *Client) Finalize(ctx context.Context, sessionID string) (journal.FinalizeResult, error) {
	var resp FinalizeResponse
	if err := c.postJSON(ctx, FinalizeRequest{SessionID: sessionID}, &resp, "transcribe", "finalize"); err != nil {
		return journal.FinalizeResult{}, fmt.Errorf("finalize session: %w", err)
	}
	if resp.AudioFilename == "" {
		return journal.FinalizeResult{}, errors.New("finalize session: response carries no audio filename")
	}
	return journal.FinalizeResult{
		SessionID:        resp.SessionID,
		Transcript:       resp.FinalTranscript,
		WordCount:        resp.Words,
		AudioFilename:    resp.AudioFilename,
		RawAudioFilename: resp.RawAudioFilename,
	}, nil
}

// CheckAudioExtension rejects files /transcribe/upload would refuse.
func CheckAudioExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(AudioExtensions, ext) {
		return fmt.Errorf("unsupported audio type %q (want one of %s)", ext, strings.Join(AudioExtensions, ", "))
	}
	return nil
}

// UploadFile transcribes a recorded audio file in one request.
func (c *Client) UploadFile(ctx context.Context, path string) (journal.UploadResult, error) {
	if err := CheckAudioExtension(path); err != nil {
		return journal.UploadResult{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return journal.UploadResult{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var resp UploadResponse
	err = c.postMultipart(ctx, nil,
		filePart{field: "file", filename: filepath.Base(path), r: f},
		&resp, "transcribe", "upload")
	if err != nil {
		return journal.UploadResult{}, fmt.Errorf("upload audio: %w", err)
	}
	return journal.UploadResult{
		Filename:   resp.Filename,
		Language:   resp.Language,
		Transcript: resp.Transcript,
		Segments:   segments(resp.Segments),
		SizeBytes:  resp.SizeBytes,
	}, nil
}

// ListEntries returns the saved entries, newest first.
func (c *Client) ListEntries(ctx context.Context) ([]journal.Entry, error) {
	var resp ListResponse
	if err := c.getJSON(ctx, &resp, "entries"); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out := make([]journal.Entry, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.ID == "" {
			continue
		}
		out = append(out, it.toEntry())
	}
	return out, nil
}

// GetEntry returns one entry with its transcript and images.
func (c *Client) GetEntry(ctx context.Context, id string) (journal.EntryDetail, error) {
	var resp EntryResponse
	if err := c.getJSON(ctx, &resp, "entries", id); err != nil {
		return journal.EntryDetail{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	if resp.ID == "" {
		resp.ID = id
	}
	return resp.toDetail(), nil
}

// DeleteEntry removes an entry and its audio.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("entries", id), http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	var resp DeleteResponse
	if err := c.do(req, &resp); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	c.log.Debug("entry deleted", "id", id, "audio", resp.Deleted.Audio, "raw", resp.Deleted.Raw)
	return nil
}

// SaveEntry persists an entry. The image list replaces the entry's images.
func (c *Client) SaveEntry(ctx context.Context, req journal.SaveRequest) (string, error) {
	body := SaveRequest{Filename: req.AudioFilename, Transcript: req.Transcript}
	for _, im := range req.Images {
		body.Images = append(body.Images, imageMeta(im))
	}
	var resp SaveResponse
	if err := c.postJSON(ctx, body, &resp, "entries", "save"); err != nil {
		return "", fmt.Errorf("save entry: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("save entry: response carries no id")
	}
	return resp.ID, nil
}

// UploadImage stores one image and returns its caption and tags.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (journal.Image, error) {
	var resp ImageResponse
	err := c.postMultipart(ctx, nil,
		filePart{field: "file", filename: filename, r: r},
		&resp, "images", "upload")
	if err != nil {
		return journal.Image{}, fmt.Errorf("upload image: %w", err)
	}
	return journal.Image{Filename: resp.Filename, Caption: resp.Caption, Tags: resp.Tags}, nil
}

// Health returns the backend's status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp HealthResponse
	if err := c.getJSON(ctx, &resp, "health"); err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return resp.Status, nil
}

// WhisperModel returns the active transcription model.
func (c *Client) WhisperModel(ctx context.Context) (string, error) {
	var resp ModelBody
	if err := c.getJSON(ctx, &resp, "config", "whisper_model"); err != nil {
		return "", fmt.Errorf("get whisper model: %w", err)
	}
	return resp.Name, nil
}

// SetWhisperModel switches the transcription model.
func (c *Client) SetWhisperModel(ctx context.Context, name string) (string, error) {
	if !slices.Contains(WhisperModels, name) {
		return "", fmt.Errorf("set whisper model: unsupported model %q (want one of %s)", name, strings.Join(WhisperModels, ", "))
	}
	var resp ModelBody
	if err := c.postJSON(ctx, ModelBody{Name: name}, &resp, "config", "whisper_model"); err != nil {
		return "", fmt.Errorf("set whisper model: %w", err)
	}
	return resp.Name, nil
}

// AudioURL is where the backend serves a stored recording.
func (c *Client) AudioURL(filename string) string {
	return c.endpoint("audio", filename)
}
