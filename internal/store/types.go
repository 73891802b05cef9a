package store

import "encoding/json"

// Message lifecycle statuses. A message appended locally starts optimistic
// and becomes confirmed once the durable insert succeeds. Enrichment
// (translations attached) is orthogonal to confirmation.
const (
	StatusOptimistic = "optimistic"
	StatusConfirmed  = "confirmed"
)

// Message is one chat entry. MsgID is the opaque identifier used for
// deduplication; CreatedAt (unix millis) orders the stream.
type Message struct {
	ID               int64
	MsgID            string
	Content          string
	OriginalLanguage string
	Translations     map[string]string
	UserName         string
	Status           string
	CreatedAt        int64
}

// Document is the shared pad. There is a single row with DocumentID.
type Document struct {
	ID           int64
	Content      string
	Translations map[string]string
	UpdatedAt    int64
}

// DocumentID is the fixed id of the singleton document row.
const DocumentID int64 = 1

func marshalTranslations(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalTranslations(s string) map[string]string {
	m := make(map[string]string)
	if s == "" {
		return m
	}
	_ = json.Unmarshal([]byte(s), &m)
	return m
}
