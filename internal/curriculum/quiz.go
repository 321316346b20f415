package curriculum

import "fmt"

// PassPercentage is the score at which a quiz attempt counts as passed.
const PassPercentage = 80

// QuizResult is the graded outcome of one attempt.
type QuizResult struct {
	Correct    int  `json:"correct"`
	Total      int  `json:"total"`
	Percentage int  `json:"percentage"`
	Passed     bool `json:"passed"`
}

// Score grades answers (one selected option index per question, in order).
// The result is informational: finishing a topic is not gated on Passed.
func Score(questions []QuizQuestion, answers []int) (QuizResult, error) {
	if len(answers) != len(questions) {
		return QuizResult{}, fmt.Errorf("got %d answers for %d questions", len(answers), len(questions))
	}

	res := QuizResult{Total: len(questions)}
	for i, q := range questions {
		if answers[i] == q.CorrectAnswerIndex {
			res.Correct++
		}
	}
	if res.Total > 0 {
		// Rounded half up, matching the percentage shown to students.
		res.Percentage = (res.Correct*200 + res.Total) / (2 * res.Total)
	}
	res.Passed = res.Percentage >= PassPercentage
	return res, nil
}
