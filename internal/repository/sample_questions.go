package repository

import "compclient/internal/model"

// SampleQuestions is the question set used by the seed command and the
// in-memory backend
func SampleQuestions() []model.Question {
	return []model.Question{
		{
			ID:      "q01",
			Type:    model.QuestionTypeMCQ,
			Text:    "What is the time complexity of binary search on a sorted array?",
			Options: []string{"O(1)", "O(log n)", "O(n)", "O(n log n)"},
			Points:  5,
			Correct: "O(log n)",
		},
		{
			ID:       "q02",
			Type:     model.QuestionTypeCode,
			Text:     "Write a function that returns the reverse of a string.",
			Points:   10,
			Language: "javascript",
		},
		{
			ID:      "q03",
			Type:    model.QuestionTypeMCQ,
			Text:    "Which data structure gives FIFO ordering?",
			Options: []string{"Stack", "Queue", "Heap", "Trie"},
			Points:  5,
			Correct: "Queue",
		},
		{
			ID:       "q04",
			Type:     model.QuestionTypeCode,
			Text:     "Write a function that reports whether a number is prime.",
			Points:   15,
			Language: "python",
		},
		{
			ID:      "q05",
			Type:    model.QuestionTypeMCQ,
			Text:    "Which HTTP status code means the client sent too many requests?",
			Options: []string{"403", "409", "429", "503"},
			Points:  5,
			Correct: "429",
		},
	}
}
