package models

// QAPair is one answered interview question.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// SessionState is the complete state of one interview. Transitions take it by
// value and return the updated copy.
type SessionState struct {
	QAPairs         []QAPair `json:"qa_pairs"`
	CurrentQuestion string   `json:"current_question"`
	CurrentAnswer   string   `json:"current_answer"`
	Finished        bool     `json:"finished"`
}
