// Package remote is the HTTP client for the Lunori backend: live chunk
// transcription, finalize, one-shot file upload, the entry store and the
// image store.
package remote

import (
	"fmt"
	"strings"
	"time"

	"github.com/Winstonlu01/Lunori/internal/journal"
)

// createdAtLayout is the backend's ISO-8601 timestamp, local time, no zone.
const createdAtLayout = "2006-01-02T15:04:05"

// WhisperModels are the model names the backend accepts.
var WhisperModels = []string{"tiny", "base.en", "small.en", "medium.en"}

// AudioExtensions are the audio types /transcribe/upload accepts.
var AudioExtensions = []string{".wav", ".mp3", ".webm", ".ogg"}

// ErrorBody is the FastAPI error envelope.
type ErrorBody struct {
	Detail any `json:"detail"`
}

// Message flattens Detail, which is a string for HTTPException and a list
// of objects for validation errors.
func (e ErrorBody) Message() string {
	switch d := e.Detail.(type) {
	case nil:
		return ""
	case string:
		return d
	case []any:
		var parts []string
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					parts = append(parts, msg)
					continue
				}
			}
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(d)
	}
}

// Segment is a timed transcript piece.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ChunkResponse answers POST /transcribe/chunk.
type ChunkResponse struct {
	OK         bool      `json:"ok"`
	SessionID  string    `json:"session_id"`
	Index      int       `json:"index"`
	Transcript string    `json:"transcript"`
	Segments   []Segment `json:"segments"`
}

// FinalizeRequest is the body of POST /transcribe/finalize.
type FinalizeRequest struct {
	SessionID string `json:"session_id"`
}

// FinalizeResponse answers POST /transcribe/finalize.
type FinalizeResponse struct {
	OK               bool   `json:"ok"`
	SessionID        string `json:"session_id"`
	FinalTranscript  string `json:"final_transcript"`
	Words            int    `json:"words"`
	AudioFilename    string `json:"audio_filename"`
	AudioPath        string `json:"audio_path,omitempty"`
	RawAudioFilename string `json:"raw_audio_filename,omitempty"`
	Note             string `json:"note,omitempty"`
}

// UploadResponse answers POST /transcribe/upload.
type UploadResponse struct {
	OK         bool      `json:"ok"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path,omitempty"`
	Note       string    `json:"note,omitempty"`
	Language   string    `json:"language"`
	Transcript string    `json:"transcript"`
	Segments   []Segment `json:"segments"`
	SizeBytes  int64     `json:"size_bytes"`
}

// Emotion is one entry of emotions_top3.
type Emotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ImageMeta is an image as stored on an entry and sent on save.
type ImageMeta struct {
	Filename string   `json:"filename"`
	Caption  *string  `json:"caption"`
	Tags     []string `json:"tags"`
}

// EntryItem is one row of GET /entries, and the common part of GET
// /entries/{id}. Nullable fields are pointers.
type EntryItem struct {
	ID            string             `json:"id"`
	CreatedAt     string             `json:"created_at"`
	AudioFilename *string            `json:"audio_filename"`
	Words         int                `json:"words"`
	Mood          *int               `json:"mood"`
	EmotionsTop3  []Emotion          `json:"emotions_top3"`
	EmotionsAll   map[string]float64 `json:"emotions_all,omitempty"`
	ImageCount    int                `json:"image_count"`
}

// ListResponse answers GET /entries.
type ListResponse struct {
	OK    bool        `json:"ok"`
	Items []EntryItem `json:"items"`
}

// EntryResponse answers GET /entries/{id}.
type EntryResponse struct {
	EntryItem
	Transcript string      `json:"transcript"`
	Images     []ImageMeta `json:"images"`
}

// SaveRequest is the body of POST /entries/save.
type SaveRequest struct {
	Filename   string      `json:"filename"`
	Transcript string      `json:"transcript"`
	Images     []ImageMeta `json:"images,omitempty"`
}

// SaveResponse answers POST /entries/save.
type SaveResponse struct {
	OK   bool   `json:"ok"`
	ID   string `json:"id"`
	Path string `json:"path,omitempty"`
}

// DeleteResponse answers DELETE /entries/{id}.
type DeleteResponse struct {
	OK      bool `json:"ok"`
	Deleted struct {
		JSON  bool `json:"json"`
		Audio bool `json:"audio"`
		Raw   bool `json:"raw"`
	} `json:"deleted"`
}

// ImageResponse answers POST /images/upload.
type ImageResponse struct {
	OK       bool     `json:"ok"`
	Filename string   `json:"filename"`
	URL      string   `json:"url,omitempty"`
	Caption  string   `json:"caption"`
	Tags     []string `json:"tags"`
}

// HealthResponse answers GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ModelBody is both the request and response of /config/whisper_model.
type ModelBody struct {
	OK   bool   `json:"ok,omitempty"`
	Name string `json:"name"`
}

// ParseCreatedAt reads a created_at value. The zoneless layout is read as
// local time; RFC 3339 values are accepted as well. An empty value yields
// the zero time.
func ParseCreatedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(createdAtLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}

// parseIDTime recovers a timestamp from an entry id of the form
// 2006-01-02T15-04-05.
func parseIDTime(id string) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02T15-04-05", id, time.Local)
	return t, err == nil
}

func (it EntryItem) toEntry() journal.Entry {
	e := journal.Entry{
		ID:          it.ID,
		WordCount:   it.Words,
		Mood:        it.Mood,
		AllEmotions: it.EmotionsAll,
		ImageCount:  it.ImageCount,
	}
	if it.AudioFilename != nil {
		e.AudioFilename = *it.AudioFilename
	}
	if t, err := ParseCreatedAt(it.CreatedAt); err == nil && !t.IsZero() {
		e.CreatedAt = t
	} else if t, ok := parseIDTime(it.ID); ok {
		e.CreatedAt = t
	}
	for _, em := range it.EmotionsTop3 {
		e.TopEmotions = append(e.TopEmotions, journal.Emotion{Label: em.Label, Score: em.Score})
	}
	return e
}

func (r EntryResponse) toDetail() journal.EntryDetail {
	d := journal.EntryDetail{Entry: r.toEntry(), Transcript: r.Transcript}
	for _, im := range r.Images {
		d.Images = append(d.Images, im.toImage())
	}
	d.ImageCount = len(d.Images)
	return d
}

func (im ImageMeta) toImage() journal.Image {
	out := journal.Image{Filename: im.Filename, Tags: im.Tags}
	if im.Caption != nil {
		out.Caption = *im.Caption
	}
	return out
}

func imageMeta(img journal.Image) ImageMeta {
	m := ImageMeta{Filename: img.Filename, Tags: img.Tags}
	if c := strings.TrimSpace(img.Caption); c != "" {
		m.Caption = &c
	}
	return m
}

func segments(in []Segment) []journal.Segment {
	if len(in) == 0 {
		return nil
	}
	out := make([]journal.Segment, len(in))
	for i, s := range in {
		out[i] = journal.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}
	return out
}
