package midjourney

// SubmitCode classifies a submission response.
type SubmitCode int

const (
	Error SubmitCode = iota
	Submitted
	AlreadyExists
	Queued
)

// Numeric codes returned by the proxy's submit endpoint.
const (
	codeSuccess       = 1
	codeAlreadyExists = 21
	codeQueued        = 22
)

func submitCode(code int) SubmitCode {
	switch code {
	case codeSuccess:
		return Submitted
	case codeAlreadyExists:
		return AlreadyExists
	case codeQueued:
		return Queued
	default:
		return Error
	}
}

func (c SubmitCode) String() string {
	switch c {
	case Submitted:
		return "SUBMITTED"
	case AlreadyExists:
		return "ALREADY_EXISTS"
	case Queued:
		return "QUEUED"
	default:
		return "ERROR"
	}
}

// Accepted reports whether the server took the task and issued a pollable id.
func (c SubmitCode) Accepted() bool {
	return c == Submitted || c == AlreadyExists || c == Queued
}

// StatusState classifies a status poll. The zero value is Unknown.
type StatusState int

const (
	Unknown StatusState = iota
	InProgress
	Succeeded
	Failed
)

func (s StatusState) String() string {
	switch s {
	case InProgress:
		return "IN_PROGRESS"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Status is the decoded result of polling one task. ArtifactURL is set only
// when State is Succeeded, Reason only when State is Failed.
type Status struct {
	State       StatusState
	ArtifactURL string
	Reason      string
}

func (s Status) Terminal() bool {
	return s.State == Succeeded || s.State == Failed
}
