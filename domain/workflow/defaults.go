package workflow

// Ability names.
const (
	AbilityAcceptPayload        = "accept_payload"
	AbilityParseRequestText     = "parse_request_text"
	AbilityExtractEntities      = "extract_entities"
	AbilityNormalizeFields      = "normalize_fields"
	AbilityEnrichRecords        = "enrich_records"
	AbilityAddFlagsCalculations = "add_flags_calculations"
	AbilityClarifyQuestion      = "clarify_question"
	AbilityExtractAnswer        = "extract_answer"
	AbilityStoreAnswer          = "store_answer"
	AbilityKnowledgeBaseSearch  = "knowledge_base_search"
	AbilityStoreData            = "store_data"
	AbilitySolutionEvaluation   = "solution_evaluation"
	AbilityEscalationDecision   = "escalation_decision"
	AbilityUpdatePayload        = "update_payload"
	AbilityUpdateTicket         = "update_ticket"
	AbilityCloseTicket          = "close_ticket"
	AbilityResponseGeneration   = "response_generation"
	AbilityExecuteAPICalls      = "execute_api_calls"
	AbilityTriggerNotifications = "trigger_notifications"
	AbilityOutputPayload        = "output_payload"
)

func common(name, description string) Ability {
	return Ability{Name: name, Backend: BackendCommon, Description: description}
}

func atlas(name, description string) Ability {
	return Ability{Name: name, Backend: BackendAtlas, Description: description}
}

// DefaultStages returns the stage definitions of the support workflow.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name:        StageIntake,
			Mode:        ModePayloadOnly,
			Description: "Accept the incoming request payload",
			Abilities: []Ability{
				common(AbilityAcceptPayload, "Capture the incoming request"),
			},
		},
		{
			Name:        StageUnderstand,
			Mode:        ModeDeterministic,
			Description: "Parse the request and extract entities",
			Abilities: []Ability{
				common(AbilityParseRequestText, "Convert unstructured request text to structured data"),
				atlas(AbilityExtractEntities, "Identify product, account, dates and amounts"),
			},
		},
		{
			Name:        StagePrepare,
			Mode:        ModeDeterministic,
			Description: "Normalize and enrich the request",
			Abilities: []Ability{
				common(AbilityNormalizeFields, "Standardize dates, codes and identifiers"),
				atlas(AbilityEnrichRecords, "Add SLA and historical ticket info"),
				common(AbilityAddFlagsCalculations, "Compute priority and SLA risk"),
			},
		},
		{
			Name:        StageAsk,
			Mode:        ModeHuman,
			Description: "Request missing information from the customer",
			Abilities: []Ability{
				atlas(AbilityClarifyQuestion, "Request missing information"),
			},
		},
		{
			Name:        StageWait,
			Mode:        ModeDeterministic,
			Description: "Capture and store the customer's answer",
			Abilities: []Ability{
				atlas(AbilityExtractAnswer, "Wait for and capture the customer response"),
				common(AbilityStoreAnswer, "Update the payload with the response"),
			},
		},
		{
			Name:        StageRetrieve,
			Mode:        ModeDeterministic,
			Description: "Search the knowledge base",
			Abilities: []Ability{
				atlas(AbilityKnowledgeBaseSearch, "Look up KB articles and FAQ"),
				common(AbilityStoreData, "Attach retrieved info to the payload"),
			},
		},
		{
			Name:        StageDecide,
			Mode:        ModeNonDeterministic,
			Description: "Score solutions and decide on escalation",
			Abilities: []Ability{
				common(AbilitySolutionEvaluation, "Score candidate solutions 1-100"),
				atlas(AbilityEscalationDecision, "Escalate to a human when the best score is below 90"),
				common(AbilityUpdatePayload, "Record decision outcomes"),
			},
		},
		{
			Name:        StageUpdate,
			Mode:        ModeDeterministic,
			Description: "Update the ticket in the ticketing system",
			Abilities: []Ability{
				atlas(AbilityUpdateTicket, "Modify status, fields and priority"),
				atlas(AbilityCloseTicket, "Mark the issue resolved"),
			},
		},
		{
			Name:        StageCreate,
			Mode:        ModeDeterministic,
			Description: "Draft the customer reply",
			Abilities: []Ability{
				common(AbilityResponseGeneration, "Draft the customer reply"),
			},
		},
		{
			Name:        StageDo,
			Mode:        ModeDeterministic,
			Description: "Execute external actions",
			Abilities: []Ability{
				atlas(AbilityExecuteAPICalls, "Trigger CRM and order system actions"),
				atlas(AbilityTriggerNotifications, "Notify the customer"),
			},
		},
		{
			Name:        StageComplete,
			Mode:        ModePayloadOnly,
			Description: "Emit the final structured payload",
			Abilities: []Ability{
				common(AbilityOutputPayload, "Produce the final structured payload"),
			},
		},
	}
}
