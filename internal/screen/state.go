package screen

// Status is the informal progress of the screen, used for rendering
type Status string

const (
	StatusIdle        Status = "idle"
	StatusCapturing   Status = "capturing"
	StatusCaptured    Status = "captured"
	StatusClassifying Status = "classifying"
	StatusDisplayed   Status = "displayed"
	StatusFailed      Status = "failed"
)

// WaitingHeadline is shown until the first classification lands
const WaitingHeadline = "Waiting for image to be scanned..."

// State is everything the single screen renders
type State struct {
	// DisplayImage references the last successful capture, empty before the first one
	DisplayImage string `json:"displayImage,omitempty"`
	// UploadPayload is the data URI sent for classification, empty before the first capture
	UploadPayload string `json:"-"`
	HeaderText      string `json:"headerText"`
	ExplanationText string `json:"explanationText"`
	// JainFriendly is set together with HeaderText
	JainFriendly bool `json:"jainFriendly"`
	// Notice is a pending alert the user has to dismiss
	Notice string `json:"notice,omitempty"`
	Status Status `json:"status"`
}

// HasPayload reports whether a capture is ready to be checked
func (s State) HasPayload() bool {
	return s.UploadPayload != ""
}

func initialState() State {
	return State{
		HeaderText: WaitingHeadline,
		Status:     StatusIdle,
	}
}
