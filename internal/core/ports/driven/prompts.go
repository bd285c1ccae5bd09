package driven

// PromptStore provides access to customisable prompt text.
type PromptStore interface {
	// Load returns the prompt for the given name.
	// Unknown or unreadable prompts fall back to the built-in default.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptPersona is the assistant's opening instruction. The grounding
	// rules are always appended after it and cannot be overridden.
	PromptPersona = "persona"
)
