package domain

import "math"

const scoreBase = 50

// Score validates a submission against a question and computes the
// time-weighted point award. Pure: no session or network context needed.
//
// Correctness: SingleChoice and TrueFalse require exactly the one correct
// option id; MultipleChoice requires the submitted set to equal the correct
// set exactly, no partial credit. Option ids that do not belong to the
// question fail with ErrOptionNotFound.
//
// Points: 0 when wrong, otherwise 50 base plus up to 50 time bonus decaying
// linearly over the time limit. TimeToAnswer is clamped to [0, limit]; a zero
// or negative limit yields no bonus.
func Score(question Question, selected []string, timeToAnswer float64) (bool, int, error) {
	if len(selected) == 0 {
		return false, 0, ErrOptionNotFound
	}
	known := make(map[string]bool, len(question.Options))
	correct := make(map[string]bool, len(question.Options))
	for _, opt := range question.Options {
		known[opt.ID] = true
		if opt.Correct {
			correct[opt.ID] = true
		}
	}
	for _, id := range selected {
		if !known[id] {
			return false, 0, ErrOptionNotFound
		}
	}

	var isCorrect bool
	switch question.Type {
	case SingleChoice, TrueFalse:
		isCorrect = len(selected) == 1 && correct[selected[0]]
	case MultipleChoice:
		isCorrect = len(selected) == len(correct)
		if isCorrect {
			seen := make(map[string]bool, len(selected))
			for _, id := range selected {
				if !correct[id] || seen[id] {
					isCorrect = false
					break
				}
				seen[id] = true
			}
		}
	default:
		return false, 0, ErrQuestionNotFound
	}

	if !isCorrect {
		return false, 0, nil
	}
	return true, scoreBase + timeBonus(timeToAnswer, question.TimeLimit), nil
}

// timeBonus decays linearly from 50 at an instant answer to 0 at the deadline.
func timeBonus(timeToAnswer float64, timeLimit int) int {
	if timeLimit <= 0 {
		return 0
	}
	limit := float64(timeLimit)
	if timeToAnswer < 0 {
		timeToAnswer = 0
	}
	if timeToAnswer > limit {
		timeToAnswer = limit
	}
	return int(math.Round((limit - timeToAnswer) / limit * 50))
}
