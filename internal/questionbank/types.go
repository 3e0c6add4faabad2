package questionbank

// Question is one multiple-choice question as it appears in mcq.json.
type Question struct {
	Text    string   `json:"question" yaml:"question"`
	Options []string `json:"options" yaml:"options"`
	Answer  string   `json:"answer" yaml:"answer"`
}

// IsCorrect reports whether option is the correct answer. Matching is exact:
// no case folding, no trimming.
func (q Question) IsCorrect(option string) bool {
	return option == q.Answer
}

// AnswerListed reports whether Answer equals one of the options. A question
// where it does not can never be answered correctly.
func (q Question) AnswerListed() bool {
	for _, opt := range q.Options {
		if opt == q.Answer {
			return true
		}
	}
	return false
}
