// Package prompt renders the instruction sent to the completion API.
package prompt

import "github.com/valyala/fasttemplate"

// CodeSolution asks for a complete, runnable answer with a short explanation.
// {question} is replaced verbatim with the user's text.
const CodeSolution = `You are a coding assistant. The user needs help writing code.
Here is the question: {question}
Please provide a clean, complete code solution with necessary imports and a short explanation.`

var codeSolution = fasttemplate.New(CodeSolution, "{", "}")

// Format substitutes question into the CodeSolution template.
// The question is not validated or escaped.
func Format(question string) string {
	return codeSolution.ExecuteString(map[string]interface{}{
		"question": question,
	})
}
