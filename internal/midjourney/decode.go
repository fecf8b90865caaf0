package midjourney

import "encoding/json"

// Server state strings.
const (
	stateSuccess    = "SUCCESS"
	stateInProgress = "IN_PROGRESS"
	stateSubmitted  = "SUBMITTED"
	stateFailure    = "FAILURE"
)

type record map[string]json.RawMessage

func (r record) field(key string) string {
	var s string
	if raw, ok := r[key]; ok {
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
	}
	return s
}

// decodeRecord never fails: anything it cannot make sense of is Unknown.
func decodeRecord(data []byte) (string, Status) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec == nil {
		return "", Status{}
	}

	id := rec.field("id")
	switch rec.field("status") {
	case stateSuccess:
		if u := rec.field("imageUrl"); u != "" {
			return id, Status{State: Succeeded, ArtifactURL: u}
		}
	case stateInProgress, stateSubmitted:
		return id, Status{State: InProgress}
	case stateFailure:
		return id, Status{State: Failed, Reason: rec.field("failureReason")}
	}
	return id, Status{}
}
