package gemini

// schema is the subset of the Gemini structured-output schema language
// needed to pin the interpretation shape.
type schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*schema `json:"properties,omitempty"`
	Items       *schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
}

// interpretationSchema mirrors parking.Interpretation. The schema is sent
// with every request so the model is constrained to the contract; the
// response is still validated independently on the way back in.
func interpretationSchema() *schema {
	result := &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"direction": {
				Type: "STRING",
				Enum: []string{"left", "right", "general"},
			},
			"status": {
				Type: "STRING",
				Enum: []string{"ALLOWED", "FORBIDDEN", "RESTRICTED", "UNKNOWN"},
			},
			"canParkNow":  {Type: "BOOLEAN"},
			"summary":     {Type: "STRING", Description: "One short sentence, plain language."},
			"explanation": {Type: "STRING", Description: "Why, referencing the detected rules."},
			"rules": {
				Type:  "ARRAY",
				Items: &schema{Type: "STRING"},
			},
			"permitRequired": {Type: "BOOLEAN"},
			"permitApplied": {
				Type:        "STRING",
				Description: "Which of the user's permits made parking possible, if any.",
				Nullable:    true,
			},
			"nextStatusChange": {
				Type:        "STRING",
				Description: "HH:MM when the verdict flips, if derivable.",
				Nullable:    true,
			},
			"remainingMinutes": {
				Type:        "INTEGER",
				Description: "Minutes the user may still park, if limited.",
				Nullable:    true,
			},
		},
		Required: []string{"direction", "status", "canParkNow", "summary", "explanation", "rules", "permitRequired"},
	}

	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"results": {
				Type:  "ARRAY",
				Items: result,
			},
			"diagnostic": {
				Type:     "OBJECT",
				Nullable: true,
				Properties: map[string]*schema{
					"code": {
						Type: "STRING",
						Enum: []string{"BLURRY", "NO_SIGN", "MULTIPLE_SIGNS", "AMBIGUOUS", "SUCCESS"},
					},
					"message":    {Type: "STRING"},
					"suggestion": {Type: "STRING", Nullable: true},
				},
				Required: []string{"code", "message"},
			},
		},
		Required: []string{"results"},
	}
}
