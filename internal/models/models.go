package models

import (
	"fmt"
	"time"
)

// ClipRole identifies one of the three fixed source-clip slots.
type ClipRole string

const (
	ClipArtist ClipRole = "artist"
	ClipGuitar ClipRole = "guitar"
	ClipCrowd  ClipRole = "crowd"
)

// AllClipRoles in canonical order.
var AllClipRoles = []ClipRole{ClipArtist, ClipGuitar, ClipCrowd}

// JobStatus tracks where a job is in its lifecycle.
type JobStatus string

const (
	JobStatusCreated   JobStatus = "created"
	JobStatusAnalyzed  JobStatus = "analyzed"
	JobStatusRendering JobStatus = "rendering"
	JobStatusComplete  JobStatus = "complete"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ClipInfo is the probed metadata for one source clip.
type ClipInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Codec    string  `json:"codec"`
	HasAudio bool    `json:"hasAudio"`
	FileSize int64   `json:"fileSize"`
	BitRate  int64   `json:"bitRate"`
}

// Job is the unit of work. Persisted as job.json inside the job's private
// working directory and re-persisted after every mutating step.
type Job struct {
	ID         string                 `json:"id"`
	Status     JobStatus              `json:"status"`
	ArtistName string                 `json:"artistName,omitempty"`
	Clips      map[ClipRole]string    `json:"clips"`
	ClipInfo   map[ClipRole]*ClipInfo `json:"clipInfo"`
	Analysis   *Analysis              `json:"analysis,omitempty"`

	// Set by a completed render.
	Outputs       map[string]string `json:"outputs,omitempty"` // format → file path
	ThumbnailPath string            `json:"thumbnailPath,omitempty"`
	TotalDuration float64           `json:"totalDuration,omitempty"`

	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Renderable reports whether the job can enter the render pipeline: all
// three clip slots populated and the artist clip carrying the soundtrack.
func (j *Job) Renderable() error {
	for _, role := range AllClipRoles {
		if j.Clips[role] == "" {
			return fmt.Errorf("missing %s clip", role)
		}
		if j.ClipInfo[role] == nil {
			return fmt.Errorf("%s clip has not been probed", role)
		}
	}
	if !j.ClipInfo[ClipArtist].HasAudio {
		return fmt.Errorf("artist clip has no audio track — it supplies the entire soundtrack")
	}
	return nil
}

// Mood is the AI's creative read of the footage.
type Mood struct {
	Genre       string `json:"genre"`
	Energy      string `json:"energy"`
	Description string `json:"description"`
	SearchQuery string `json:"searchQuery"`
}

// AnalysisSegment is one AI-suggested body segment.
type AnalysisSegment struct {
	ClipRole      ClipRole `json:"clipRole"`
	StartTime     float64  `json:"startTime"`
	Duration      float64  `json:"duration"`
	Caption       string   `json:"caption"`
	CaptionReason string   `json:"captionReason,omitempty"`
	TrimReason    string   `json:"trimReason,omitempty"`
}

// AnalysisTransition is one AI-suggested join between adjacent segments.
type AnalysisTransition struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

// KenBurns enables a slow programmatic zoom on a clip.
type KenBurns struct {
	Enabled   bool   `json:"enabled"`
	Direction string `json:"direction"` // "in" or "out"
}

// ColorGrade is a linear brightness/contrast/saturation adjustment.
type ColorGrade struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Saturation float64 `json:"saturation"`
}

// HeroFrame marks the AI-chosen thumbnail frame.
type HeroFrame struct {
	ClipRole  ClipRole `json:"clipRole"`
	Timestamp float64  `json:"timestamp"`
}

// Outro holds up to four lines of call-to-action copy.
type Outro struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
	Line3 string `json:"line3,omitempty"`
	Line4 string `json:"line4,omitempty"`
}

// Lines returns the non-empty outro lines in order.
func (o Outro) Lines() []string {
	var lines []string
	for _, l := range []string{o.Line1, o.Line2, o.Line3, o.Line4} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// Analysis is the validated vision-AI response for a job. The raw response
// is clamped and coerced before this struct is trusted downstream.
type Analysis struct {
	Mood                Mood                    `json:"mood"`
	Segments            []AnalysisSegment       `json:"segments"`
	SegmentOrder        []ClipRole              `json:"segmentOrder,omitempty"`
	OrderReason         string                  `json:"orderReason,omitempty"`
	Transitions         []AnalysisTransition    `json:"transitions"`
	OverallNotes        string                  `json:"overallNotes,omitempty"`
	SuggestedArtistName string                  `json:"suggestedArtistName,omitempty"`
	GuitarType          string                  `json:"guitarType,omitempty"`
	Outro               Outro                   `json:"outro"`
	KenBurns            map[ClipRole]KenBurns   `json:"kenBurns,omitempty"`
	ColorGrade          map[ClipRole]ColorGrade `json:"colorGrade,omitempty"`
	HeroFrame           *HeroFrame              `json:"heroFrame,omitempty"`
}

// Segment is one body segment of a render request: either taken from the
// stored analysis or supplied by the caller with overrides.
type Segment struct {
	ClipRole     ClipRole    `json:"clipRole"`
	StartTime    float64     `json:"startTime"`
	Duration     float64     `json:"duration"`
	Caption      string      `json:"caption,omitempty"`
	CaptionStyle string      `json:"captionStyle,omitempty"` // fade, slideUp, slideDown, fadeSlide, scaleBounce
	Speed        float64     `json:"speed,omitempty"`        // playback multiplier, 1.0 when unset
	FitMode      string      `json:"fitMode,omitempty"`      // "crop" (default) or "fit"
	KenBurns     *KenBurns   `json:"kenBurns,omitempty"`
	ColorGrade   *ColorGrade `json:"colorGrade,omitempty"`
}

// RenderRequest is the caller's input to a full render.
type RenderRequest struct {
	Segments    []Segment `json:"segments,omitempty"`    // empty → use stored analysis
	Transitions []string  `json:"transitions,omitempty"` // inter-segment types, len = segments-1
	OutroLines  []string  `json:"outroLines,omitempty"`
	Formats     []string  `json:"formats,omitempty"` // extra exports: "square", "wide"
	Thumbnail   bool      `json:"thumbnail,omitempty"`
	BeatSync    *bool     `json:"beatSync,omitempty"` // nil → config default
	Review      *bool     `json:"review,omitempty"`   // nil → config default
}

// TransitionReview is the per-boundary portion of a review verdict.
type TransitionReview struct {
	Index         int    `json:"index"`
	Quality       string `json:"quality"`
	Issue         string `json:"issue,omitempty"`
	SuggestedType string `json:"suggestedType,omitempty"`
}

// ReviewVerdict is the vision AI's judgment of a concatenated draft.
type ReviewVerdict struct {
	Approved       bool               `json:"approved"`
	OverallQuality string             `json:"overallQuality"`
	Transitions    []TransitionReview `json:"transitions"`
}

// BoundaryFrames groups the frames extracted around one transition
// boundary for review, labeled with the transition's type and neighbors.
type BoundaryFrames struct {
	Index  int      `json:"index"`
	Type   string   `json:"type"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Frames []string `json:"frames"` // file paths, before/mid/after order
}
