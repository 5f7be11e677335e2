package model

// AssembleRequest is the JSON body of POST /assemble. Exactly one audio
// source is used per job: Script wins over AudioURL, which wins over
// AudioBase64. Title and Source are carried for logging only.
type AssembleRequest struct {
	Script      string   `json:"script,omitempty"`
	AudioURL    string   `json:"audio_url,omitempty"`
	AudioBase64 string   `json:"audio_base64,omitempty"`
	VideoURLs   []string `json:"video_urls"`
	Title       string   `json:"title,omitempty"`
	Source      string   `json:"source,omitempty"`
}

type AudioSourceKind string

const (
	AudioFromScript AudioSourceKind = "script"
	AudioFromURL    AudioSourceKind = "url"
	AudioFromBytes  AudioSourceKind = "base64"
	AudioFromFile   AudioSourceKind = "upload"
)

type JobState string

const (
	StateCreated         JobState = "created"
	StateAcquiringAudio  JobState = "acquiring-audio"
	StateProbing         JobState = "probing"
	StateProcessingClips JobState = "processing-clips"
	StateConcatenating   JobState = "concatenating"
	StateMuxing          JobState = "muxing"
	StateComplete        JobState = "complete"
	StateFailed          JobState = "failed"
)

// Job is the validated, typed form of one assembly request. It is owned by
// a single pipeline run and never shared across requests.
type Job struct {
	ID    string
	State JobState

	AudioKind   AudioSourceKind
	Script      string
	AudioURL    string
	AudioBytes  []byte // decoded base64 payload
	AudioPath   string // set when audio arrives as an upload
	VideoURLs   []string
	Title       string
	Source      string
	ArtifactKey string // archive object key once uploaded
}

type ClipOutcome string

const (
	ClipOK      ClipOutcome = "ok"
	ClipSkipped ClipOutcome = "skipped"
)

// ClipTask tracks one clip through fetch and normalization. Index is the
// position in the request's video_urls list and fixes the final ordering.
type ClipTask struct {
	Index          int
	URL            string
	RawPath        string
	NormalizedPath string
	Outcome        ClipOutcome
	Err            error
}
