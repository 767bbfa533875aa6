package nlu

// DefaultModelName is the default Gemini model used for fallback extraction.
const DefaultModelName = "gemini-2.5-flash"

// Backends accepted by GeminiConfig.
const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// maxRawInError bounds how much of a model reply is echoed in errors.
const maxRawInError = 500
