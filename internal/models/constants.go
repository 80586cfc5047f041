package models

const (
	ContextSeparator = "\n---\n"

	// InterviewQuestionPrompt is sent to the generator on every
	// "generate question" action.
	InterviewQuestionPrompt = "Generate an interview question based on the resume and job description."

	TranscriptFilename = "interview_summary.txt"
)

const (
	// SystemPrompt frames every retrieval-augmented call.
	SystemPrompt = "Use only the following context to answer the question or generate what is asked. If the context is not enough, say so instead of making something up."

	// ContextPromptTemplate takes the retrieved context and the user prompt.
	ContextPromptTemplate = `<context>
%s
</context>

%s
`
)
