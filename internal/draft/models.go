// Package draft keeps finalized transcripts that have not been saved as
// entries yet in a local SQLite database.
package draft

import (
	"strings"
	"time"

	"github.com/Winstonlu01/Lunori/internal/journal"
)

// Source tells how a draft was produced.
type Source string

const (
	SourceLive   Source = "live"
	SourceUpload Source = "upload"
)

// Draft is a transcript plus the audio handle it belongs to.
type Draft struct {
	ID            string
	SessionID     string
	AudioFilename string
	Transcript    string
	Words         int
	Images        []journal.Image
	Source        Source
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FromFinalize builds the draft of a finished live recording.
func FromFinalize(res journal.FinalizeResult) Draft {
	return Draft{
		ID:            res.SessionID,
		SessionID:     res.SessionID,
		AudioFilename: res.AudioFilename,
		Transcript:    res.Transcript,
		Words:         res.WordCount,
		Source:        SourceLive,
	}
}

// FromUpload builds the draft of a transcribed audio file.
func FromUpload(res journal.UploadResult) Draft {
	return Draft{
		ID:            res.Filename,
		AudioFilename: res.Filename,
		Transcript:    res.Transcript,
		Words:         len(strings.Fields(res.Transcript)),
		Source:        SourceUpload,
	}
}

// SaveRequest turns the draft into an entry save request.
func (d Draft) SaveRequest() journal.SaveRequest {
	return journal.SaveRequest{
		AudioFilename: d.AudioFilename,
		Transcript:    d.Transcript,
		Images:        d.Images,
	}
}
