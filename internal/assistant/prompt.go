package assistant

import (
	"fmt"
	"strings"

	"github.com/dentalops/dental-ai-platform/internal/practices"
)

// BuildSystemPrompt renders the system prompt for a practice's AI
// receptionist. The prompt is assembled in a fixed order so two calls with
// the same practice and knowledge produce byte-identical output:
// role, tone, core rules, transfer and emergency clauses when configured,
// knowledge base entries, and finally the greeting the assistant must open
// with.
func BuildSystemPrompt(p *practices.Practice, knowledge []practices.KnowledgeEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the AI receptionist for %s, a dental practice. ", p.Name)
	b.WriteString("You answer the phone, help callers schedule appointments, and answer questions about the practice.\n\n")

	b.WriteString(toneClause(p.AITone))
	b.WriteString("\n\n")

	b.WriteString("CORE RULES:\n")
	b.WriteString("- Always ask whether the caller is a new or existing patient before booking.\n")
	b.WriteString("- Use the checkAvailability tool to find open appointment slots. Never invent availability.\n")
	b.WriteString("- Use the bookAppointment tool to book. Collect the caller's full name, email address, and phone number first.\n")
	fmt.Fprintf(&b, "- %s\n", p.OfficeHours.Statement())
	b.WriteString("- Keep responses short and conversational. You are on a phone call.\n")

	if p.ForwardingNumber != "" && len(p.TransferKeywords) > 0 {
		fmt.Fprintf(&b, "\nIf the caller mentions any of the following (%s), offer to transfer them to the office at %s.\n",
			strings.Join(p.TransferKeywords, ", "), p.ForwardingNumber)
	}

	if len(p.EmergencyKeywords) > 0 {
		fmt.Fprintf(&b, "\nIf the caller describes an emergency (%s), tell them to hang up and call 911 or go to the nearest emergency room immediately.\n",
			strings.Join(p.EmergencyKeywords, ", "))
	}

	if len(knowledge) > 0 {
		b.WriteString("\nPRACTICE KNOWLEDGE:\n")
		for _, k := range knowledge {
			if k.Question != "" {
				fmt.Fprintf(&b, "Q: %s\nA: %s\n", k.Question, k.Content)
			} else {
				fmt.Fprintf(&b, "- %s\n", k.Content)
			}
		}
	}

	fmt.Fprintf(&b, "\nBegin every call with exactly this greeting: %q", greeting(p))
	return b.String()
}

func toneClause(tone string) string {
	switch tone {
	case practices.ToneFriendly, practices.ToneCasual:
		return "Speak in a warm, friendly, upbeat tone."
	case practices.ToneEmpathetic:
		return "Speak in a calm, empathetic tone. Many callers are anxious about dental visits; reassure them."
	default:
		return "Speak in a polite, professional tone."
	}
}

func greeting(p *practices.Practice) string {
	if p.AIGreeting != "" {
		return p.AIGreeting
	}
	return fmt.Sprintf("Thank you for calling %s! How can I help you today?", p.Name)
}
