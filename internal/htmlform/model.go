package htmlform

import "fmt"

// HtmlForm is a stored form definition. XMLData holds the <htmlform> markup.
type HtmlForm struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	FormID  int    `json:"form_id"`
	XMLData string `json:"xml_data"`
}

// Mode selects how a session renders and whether it accepts submissions.
type Mode int

const (
	ModeEnter Mode = iota
	ModeEdit
	ModeView
)

func (m Mode) String() string {
	switch m {
	case ModeEnter:
		return "ENTER"
	case ModeEdit:
		return "EDIT"
	case ModeView:
		return "VIEW"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// FormSubmissionError reports a validation failure. ID is the error widget
// the message belongs to.
type FormSubmissionError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

func (e FormSubmissionError) String() string {
	return e.ID + " -> " + e.Error
}
