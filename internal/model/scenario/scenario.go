package scenario

// Scenario describes one practice situation: who the AI plays and what
// the conversation is about.
type Scenario struct {
	ID              string `json:"id"`
	Category        string `json:"category"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Role            string `json:"role"`
	Difficulty      string `json:"difficulty"`
	Context         string `json:"context"`
	Opening         string `json:"opening"`
	EvaluationFocus string `json:"evaluation_focus"`
}

// Seed provides the prebuilt scenario catalog.
func Seed() []Scenario {
	return []Scenario{
		{
			ID:              "interview-tell-about",
			Category:        "Interview",
			Title:           "Tell Me About Yourself",
			Description:     "Practice the classic interview opener",
			Role:            "Friendly Recruiter",
			Difficulty:      "Easy",
			Context:         "You're interviewing for a product manager role at a tech startup.",
			Opening:         "Thanks for coming in! So, tell me about yourself.",
			EvaluationFocus: "Clarity, structure, relevance",
		},
		{
			ID:              "interview-failure",
			Category:        "Interview",
			Title:           "Explain a Failure",
			Description:     "Discuss a past failure and what you learned",
			Role:            "Senior Hiring Manager",
			Difficulty:      "Medium",
			Context:         "The interviewer is exploring your self-awareness.",
			Opening:         "Everyone has failures. Tell me about one.",
			EvaluationFocus: "Honesty, growth mindset",
		},
		{
			ID:              "interview-salary",
			Category:        "Interview",
			Title:           "Salary Negotiation",
			Description:     "Negotiate your compensation",
			Role:            "HR Director",
			Difficulty:      "Hard",
			Context:         "You have an offer and need to negotiate.",
			Opening:         "We are thrilled to offer 5,000 base.",
			EvaluationFocus: "Confidence, value articulation",
		},
		{
			ID:              "client-angry",
			Category:        "Client Management",
			Title:           "Handle Angry Client",
			Description:     "De-escalate an upset customer",
			Role:            "Furious CMO",
			Difficulty:      "Medium",
			Context:         "Campaign is 5 days late, client is furious.",
			Opening:         "Five days late! What do you have to say?",
			EvaluationFocus: "Empathy, accountability",
		},
		{
			ID:              "client-bad-news",
			Category:        "Client Management",
			Title:           "Deliver Bad News",
			Description:     "Explain a project delay",
			Role:            "Disappointed Client",
			Difficulty:      "Medium",
			Context:         "Project delayed by 2 weeks.",
			Opening:         "I got your email about the delay.",
			EvaluationFocus: "Clarity, honesty",
		},
		{
			ID:              "client-upsell",
			Category:        "Client Management",
			Title:           "Upsell a Happy Client",
			Description:     "Pitch an expanded engagement",
			Role:            "Budget-Conscious Director",
			Difficulty:      "Hard",
			Context:         "The client is happy but watching costs closely.",
			Opening:         "We like the work so far. What did you want to discuss?",
			EvaluationFocus: "Persuasiveness, value framing",
		},
		{
			ID:              "pitch-investor",
			Category:        "Pitch",
			Title:           "Investor Pitch",
			Description:     "Pitch your startup to a skeptical investor",
			Role:            "Skeptical VC Partner",
			Difficulty:      "Hard",
			Context:         "You have 5 minutes to convince a VC your startup matters.",
			Opening:         "I've seen a hundred decks this month. Why you?",
			EvaluationFocus: "Persuasiveness, structure",
		},
		{
			ID:              "debate-position",
			Category:        "Debate",
			Title:           "Defend a Position",
			Description:     "Argue for a position under pushback",
			Role:            "Contrarian Debater",
			Difficulty:      "Medium",
			Context:         "Your counterpart disagrees with everything on principle.",
			Opening:         "State your position. I'll take the other side.",
			EvaluationFocus: "Logic, composure",
		},
		{
			ID:              "drill-explain",
			Category:        "Quick Drills",
			Title:           "Explain Simply",
			Description:     "Explain a complex topic in plain terms",
			Role:            "Curious Novice",
			Difficulty:      "Easy",
			Context:         "Explain blockchain simply.",
			Opening:         "What is blockchain?",
			EvaluationFocus: "Simplicity",
		},
		{
			ID:              "drill-reframe",
			Category:        "Quick Drills",
			Title:           "Reframe Negatively",
			Description:     "Turn negative to positive",
			Role:            "Critical Peer",
			Difficulty:      "Easy",
			Context:         "You got fired.",
			Opening:         "You got fired?",
			EvaluationFocus: "Positivity",
		},
	}
}
