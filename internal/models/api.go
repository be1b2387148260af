package models

// CaptureRequest asks for the working tree in Dir to be captured
type CaptureRequest struct {
	Dir                      string        `json:"dir" required:"true" minLength:"1" description:"Working directory to capture"`
	Operation                Operation     `json:"operation" required:"true" enum:"pull,adjust"`
	Description              string        `json:"description" required:"true" minLength:"1" description:"Annotation of the created tag"`
	URL                      RepositoryURL `json:"url" required:"true"`
	TagName                  string        `json:"tag_name,omitempty" pattern:"^[a-zA-Z0-9_.][a-zA-Z0-9_.-]*$" description:"Replaces the content-derived tag name; must not end in .git"`
	Orphan                   bool          `json:"orphan,omitempty"`
	NoChangeOK               bool          `json:"no_change_ok,omitempty"`
	ForceContinueOnNoChanges bool          `json:"force_continue_on_no_changes,omitempty"`
	RealCommitTime           bool          `json:"real_commit_time,omitempty"`
	Flatten                  bool          `json:"flatten,omitempty" description:"Turn submodules into ordinary files first"`
	CallbackID               string        `json:"callback_id,omitempty" description:"Live log channel, see /ws/{callback_id}"`
	_                        struct{}      `additionalProperties:"false"`
}

// CaptureResponse is returned by a capture. Captured is false when nothing
// new was recorded.
type CaptureResponse struct {
	Captured bool            `json:"captured" required:"true"`
	Result   *SnapshotResult `json:"result,omitempty"`
}

// FlattenRequest asks for the submodules of Dir to be flattened
type FlattenRequest struct {
	Dir        string   `json:"dir" required:"true" minLength:"1"`
	CallbackID string   `json:"callback_id,omitempty"`
	_          struct{} `additionalProperties:"false"`
}

// FlattenResponse describes a finished flatten
type FlattenResponse struct {
	State      string           `json:"state" required:"true"`
	Commit     string           `json:"commit,omitempty"`
	Submodules []SubmoduleEntry `json:"submodules,omitempty"`
}

// TranslateRequest asks for the internal mirror URL of ExternalURL
type TranslateRequest struct {
	ExternalURL string   `json:"external_url" required:"true" minLength:"1"`
	_           struct{} `additionalProperties:"false"`
}

// ErrorResponse is the body of every failed request except validation failures
type ErrorResponse struct {
	ErrorType    string `json:"error_type" required:"true"`
	ErrorMessage string `json:"error_message" required:"true"`
	ExitCode     int    `json:"exit_code,omitempty"`
}

// ValidationError is one rejected request field
type ValidationError struct {
	ErrorMessage string   `json:"error_message" required:"true"`
	Path         []string `json:"path" required:"true"`
	ErrorType    string   `json:"error_type" required:"true"`
}
