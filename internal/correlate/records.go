package correlate

import "encoding/json"

// ErrorRecord is one gateway error event: a session that hit a qualifying
// failure. No hostname is carried on this side.
type ErrorRecord struct {
	SessionID     string `json:"sessionID"`
	FailureReason string `json:"failureReason"`
}

// SessionRecord is one network session event: a session together with the
// SNI hostname that was in use.
type SessionRecord struct {
	SessionID string `json:"sessionID"`
	Hostname  string `json:"hostname"`
}

// ParseErrorRecords unmarshals decoded batch lines into error records,
// dropping lines that do not fit the shape.
func ParseErrorRecords(raws []json.RawMessage) []ErrorRecord {
	records := make([]ErrorRecord, 0, len(raws))
	for _, raw := range raws {
		var rec ErrorRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// ParseSessionRecords unmarshals decoded batch lines into session
// records, dropping lines that do not fit the shape.
func ParseSessionRecords(raws []json.RawMessage) []SessionRecord {
	records := make([]SessionRecord, 0, len(raws))
	for _, raw := range raws {
		var rec SessionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records
}
