// Package journal holds the domain types shared by the recording session,
// the entry cache, the attachment tracker and the remote client.
package journal

import "time"

// Emotion is one label/score pair produced by the remote emotion model.
type Emotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entry is the list-level view of a saved journal entry.
type Entry struct {
	ID            string             `json:"id"`
	CreatedAt     time.Time          `json:"created_at"`
	AudioFilename string             `json:"audio_filename,omitempty"`
	WordCount     int                `json:"words"`
	Mood          *int               `json:"mood,omitempty"`
	TopEmotions   []Emotion          `json:"emotions_top3,omitempty"`
	AllEmotions   map[string]float64 `json:"emotions_all,omitempty"`
	ImageCount    int                `json:"image_count"`
}

// TopEmotion returns the highest ranked emotion label, or "" when the entry
// carries none.
func (e Entry) TopEmotion() string {
	if len(e.TopEmotions) == 0 {
		return ""
	}
	return e.TopEmotions[0].Label
}

// Image is an image attached (or staged for attachment) to an entry.
type Image struct {
	Filename string   `json:"filename"`
	Caption  string   `json:"caption,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// EntryDetail is the full record returned for a single entry.
type EntryDetail struct {
	Entry
	Transcript string  `json:"transcript"`
	Images     []Image `json:"images,omitempty"`
}

// Hydrated carries the lazily fetched fields the cache attaches to an entry.
type Hydrated struct {
	Transcript string
	ImageTags  []string
	Images     []Image
}

// Segment is a timed piece of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ChunkResult is the response to a cumulative chunk upload.
type ChunkResult struct {
	SessionID  string
	Index      int
	Transcript string
	Segments   []Segment
}

// FinalizeResult is the authoritative outcome of a recording session.
type FinalizeResult struct {
	SessionID        string
	Transcript       string
	WordCount        int
	AudioFilename    string
	RawAudioFilename string
}

// UploadResult is the response to a one-shot audio file transcription.
type UploadResult struct {
	Filename   string
	Language   string
	Transcript string
	Segments   []Segment
	SizeBytes  int64
}

// SaveRequest is what the client submits to persist an entry. Images replace
// the entry's attachment list as a whole.
type SaveRequest struct {
	AudioFilename string
	Transcript    string
	Images        []Image
}
