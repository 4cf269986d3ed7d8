package session

import "github.com/playperu/walkquest/internal/geo"

type NoticeKind string

const (
	NoticeLoadFailed      NoticeKind = "load_failed"
	NoticeSaveFailed      NoticeKind = "save_failed"
	NoticeSaved           NoticeKind = "saved"
	NoticeRescueAvailable NoticeKind = "rescue_available"
	NoticeModeChanged     NoticeKind = "mode_changed"
	NoticeAdvanced        NoticeKind = "advanced"
	NoticeCompleted       NoticeKind = "completed"
	NoticeSummaryFailed   NoticeKind = "summary_failed"
)

// Notice is an out-of-band signal for the presentation layer. Save and
// load failures are retryable warnings, never fatal.
type Notice struct {
	Kind   NoticeKind       `json:"kind"`
	Step   int              `json:"step"`
	Mode   Mode             `json:"mode,omitempty"`
	Reason geo.RescueReason `json:"reason,omitempty"`
	Err    error            `json:"-"`
}

func (n Notice) Message() string {
	switch n.Kind {
	case NoticeLoadFailed:
		return "could not load saved progress; starting from the first spot"
	case NoticeSaveFailed:
		return "progress may not be saved; retry before leaving"
	case NoticeSummaryFailed:
		return "session summary could not be recorded"
	}
	return ""
}
