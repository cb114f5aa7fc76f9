package models

// Pipeline stage identifiers, in emission order.
const (
	StageAudio     = "audio"
	StageCards     = "cards"
	StageSegments  = "segments"
	StageBeatSync  = "beatsync"
	StageConcat    = "concat"
	StageReview    = "review"
	StageCaptions  = "captions"
	StageComposite = "composite"
	StageThumbnail = "thumbnail"
	StageExport    = "export"
	StageDownload  = "download"
)

type EventType string

const (
	EventProgress  EventType = "progress"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
)

// Event is one progress record on a job's event stream. Events are emitted
// in strict pipeline order; percent is monotonically non-decreasing within
// a stage; exactly one terminal event (complete, error or cancelled) ends
// the stream.
type Event struct {
	Type    EventType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Percent int       `json:"percent"`
	Message string    `json:"message,omitempty"`

	// Terminal completion payload.
	Outputs       map[string]string `json:"outputs,omitempty"`
	Thumbnail     string            `json:"thumbnail,omitempty"`
	TotalDuration float64           `json:"totalDuration,omitempty"`
	Title         string            `json:"title,omitempty"` // remote-fetch completion
}

// Terminal reports whether no further events may follow.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError || e.Type == EventCancelled
}
