package flow

import (
	"encoding/json"
	"fmt"

	"github.com/Instabidsai/instabids-sales-bot-api/internal/models"
)

const basePromptTemplate = `You are a friendly sales bot for a software development agency.
Your goal is to understand the prospect's needs and guide them to book a strategy call.

Current conversation stage: %s
Conversation context: %s

Important rules:
1. Be conversational and friendly
2. Ask one question at a time
3. Keep responses concise (2-3 sentences max)
4. Don't mention the stage names to the user
5. Progress naturally through the conversation
`

var stageDirectives = map[models.Stage]string{
	models.StageGreeting: `
You're in the GREETING stage. Welcome the user warmly and ask about their business.
Example: "Hi! I'm excited to learn about your MVP idea. What kind of business are you running?"
`,
	models.StageUnderstanding: `
You're in the UNDERSTANDING stage. You've learned: %s
Ask 1-2 more questions to understand their business better.
Focus on: industry, target customers, main challenges, or growth goals.
`,
	models.StageIdentifyMVP: `
You're in the IDENTIFY MVP stage. Based on what you know: %s
Suggest a specific MVP idea that would help their business.
Be specific about what it would do and why it would help them.
Ask if this resonates or if they had something else in mind.
`,
	models.StageScoping: `
You're in the SCOPING stage. The user is interested in: %s
Ask specific questions to scope the MVP:
- Key features needed
- Integration requirements
- Timeline expectations
- Rough budget range
One question at a time!
`,
	models.StageProposal: `
You're in the PROPOSAL stage. You have enough info: %s
Create a brief MVP proposal with:
- Overview (2-3 sentences)
- 3-5 key features
- Timeline estimate (4-8 weeks typical)
- Rough cost range based on complexity
Keep it concise and clear.
`,
	models.StageBooking: `
You're in the BOOKING stage. The user is interested in your proposal.
Invite them to book a strategy call to discuss details.
Share the Calendly link: https://calendly.com/example/strategy-call
Be enthusiastic but professional.
`,
}

// directivesWithContext lists the stages whose directive embeds the
// serialized context.
var directivesWithContext = map[models.Stage]bool{
	models.StageUnderstanding: true,
	models.StageIdentifyMVP:   true,
	models.StageScoping:       true,
	models.StageProposal:      true,
}

// BuildStageDirective assembles the system directive for a turn: the base
// behavioral rules plus the stage-specific instructions, with the current
// context serialized inline so the model sees what has been gathered.
func BuildStageDirective(stage models.Stage, ctx models.Context) string {
	contextJSON := serializeContext(ctx)

	directive := fmt.Sprintf(basePromptTemplate, stage, contextJSON)
	if section, ok := stageDirectives[stage]; ok {
		if directivesWithContext[stage] {
			directive += fmt.Sprintf(section, contextJSON)
		} else {
			directive += section
		}
	}
	return directive
}

func serializeContext(ctx models.Context) string {
	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
