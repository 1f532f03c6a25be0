package prompts

import "fmt"

// ============================================================================
// Chat Prompts
// ============================================================================

// ChatSystemPrompt fixes the assistant's role and answer style.
const ChatSystemPrompt = `You are a Pokedex AI assistant. Answer questions about Pokemon based ONLY on the provided search results. Be concise (2-4 sentences max). Always mention the Pokemon's name, number, and type when relevant. If the results don't have enough info, say so briefly. Respond in the same language as the user's query.`

// chatUserTemplate wraps the serialized context block and the question.
const chatUserTemplate = "Search results:\n%s\n\nQuestion: %s"

// ChatUserTurn builds the single user turn sent with every answer request.
func ChatUserTurn(contextBlock, query string) string {
	return fmt.Sprintf(chatUserTemplate, contextBlock, query)
}

// ============================================================================
// Fallback Answers
// ============================================================================

// FallbackNoResults is returned when no search hit can anchor a templated answer.
const FallbackNoResults = "I couldn't find a good answer for that. Try asking about a specific Pokemon or type!"

// FallbackHitTemplate renders the top hit as "<name> (#<number>) is a <type> type."
const FallbackHitTemplate = "%s (#%d) is a %s type."

// FallbackSpeciesTemplate adds the species sentence when the hit has one.
const FallbackSpeciesTemplate = " It is known as the %s."
