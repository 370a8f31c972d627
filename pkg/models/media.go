package models

// Kind selects which media a download produces
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ParseKind maps a request format onto a Kind. Anything other than "audio" is video.
func ParseKind(format string) Kind {
	if format == string(KindAudio) {
		return KindAudio
	}
	return KindVideo
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// ExtractOptions configures a single run of the extraction backend
type ExtractOptions struct {
	OutputTemplate           string // e.g. downloads/%(title)s.%(ext)s
	Format                   string // yt-dlp format selector
	UserAgent                string
	SkipUnavailableFragments bool
	ExtractAudio             bool
	AudioFormat              string // container produced by audio extraction, e.g. "mp3"
	AudioQuality             string // e.g. "192K"
}

// MediaInfo is the metadata reported by the extraction backend
type MediaInfo struct {
	Title    string `json:"title"`
	Filename string `json:"filename"` // path as reported before any post-processing
}

// ProgressFunc receives download progress as a percentage between 0 and 100
type ProgressFunc func(percent float64)
