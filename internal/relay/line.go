// Package relay turns a worker's stdout and stderr pipes into ordered line
// events.
package relay

// Source identifies which output stream a line was read from.
type Source string

const (
	Stdout Source = "stdout"
	Stderr Source = "stderr"
)

// ErrorPrefix marks lines read from stderr when they are emitted.
const ErrorPrefix = "ERROR: "

// Line is one decoded line of worker output, without its line terminator.
type Line struct {
	Source Source `json:"source"`
	Text   string `json:"text"`

	// Token is the run that produced the line. The relay leaves it empty;
	// the worker supervisor stamps it before emitting.
	Token string `json:"token,omitempty"`
}

// Message returns the text as it is emitted to consumers: stderr lines carry
// ErrorPrefix, stdout lines are unchanged.
func (l Line) Message() string {
	if l.Source == Stderr {
		return ErrorPrefix + l.Text
	}
	return l.Text
}
