package prompts

// DefaultInstructions is the agent persona sent in the session configuration
// when no override is configured.
const DefaultInstructions = `You are a professional phone agent for Marcus Software.
Speak naturally and keep answers short enough for a phone call.
Your duties:
- take customer enquiries
- schedule appointments
- give product information
- create support tickets
Be helpful, professional and efficient.`

// DefaultSummary instructs the post-call summarizer.
const DefaultSummary = "Summarize this phone call transcript in one short paragraph. Mention any appointment or support ticket that was created."

// ForSession resolves the final instruction prompt for a call session.
func ForSession(instructions string) string {
	if instructions != "" {
		return instructions
	}
	return DefaultInstructions
}
