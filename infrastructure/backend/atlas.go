package backend

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
)

// Article is a knowledge base entry returned by a search.
type Article struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	Relevance float64 `json:"relevance"`
}

// KnowledgeBase answers knowledge base searches.
type KnowledgeBase interface {
	Search(ctx context.Context, query string) ([]Article, error)
}

// StaticKnowledgeBase returns the same articles for every query.
type StaticKnowledgeBase []Article

// Search implements KnowledgeBase.
func (kb StaticKnowledgeBase) Search(context.Context, string) ([]Article, error) {
	out := make([]Article, len(kb))
	copy(out, kb)
	return out, nil
}

// DefaultKnowledgeBase is the built-in article set.
func DefaultKnowledgeBase() StaticKnowledgeBase {
	return StaticKnowledgeBase{
		{ID: "kb_001", Title: "How to track your order status", Category: "orders", Relevance: 0.92},
		{ID: "kb_002", Title: "Resolving payment issues", Category: "billing", Relevance: 0.78},
		{ID: "kb_003", Title: "Account access troubleshooting", Category: "account", Relevance: 0.65},
	}
}

// AnswerSource supplies the customer's reply to clarification questions.
// An empty answer means the customer did not respond.
type AnswerSource interface {
	Answer(ctx context.Context, ticketID string, questions []string) (string, error)
}

// AnswerFunc adapts a function to AnswerSource.
type AnswerFunc func(ctx context.Context, ticketID string, questions []string) (string, error)

// Answer implements AnswerSource.
func (f AnswerFunc) Answer(ctx context.Context, ticketID string, questions []string) (string, error) {
	return f(ctx, ticketID, questions)
}

// StaticAnswers answers every question set with the same text.
func StaticAnswers(answer string) AnswerSource {
	return AnswerFunc(func(context.Context, string, []string) (string, error) {
		return answer, nil
	})
}

// AtlasConfig holds the collaborators of the Atlas handlers.
type AtlasConfig struct {
	KnowledgeBase KnowledgeBase
	Answers       AnswerSource
}

// NewAtlas creates the client for abilities that reach external systems.
func NewAtlas(config AtlasConfig, opts ...Option) *Client {
	kb := config.KnowledgeBase
	if kb == nil {
		kb = DefaultKnowledgeBase()
	}

	c := NewClient(workflow.BackendAtlas, opts...)
	WithRetryable(
		workflow.AbilityExtractEntities,
		workflow.AbilityEnrichRecords,
		workflow.AbilityKnowledgeBaseSearch,
	)(c)
	c.Register(workflow.AbilityExtractEntities, extractEntities)
	c.Register(workflow.AbilityEnrichRecords, enrichRecords)
	c.Register(workflow.AbilityClarifyQuestion, clarifyQuestion)
	c.Register(workflow.AbilityExtractAnswer, extractAnswer(config.Answers))
	c.Register(workflow.AbilityKnowledgeBaseSearch, knowledgeBaseSearch(kb))
	c.Register(workflow.AbilityEscalationDecision, escalationDecision)
	c.Register(workflow.AbilityUpdateTicket, updateTicket)
	c.Register(workflow.AbilityCloseTicket, closeTicket)
	c.Register(workflow.AbilityExecuteAPICalls, executeAPICalls)
	c.Register(workflow.AbilityTriggerNotifications, triggerNotifications)
	c.Cacheable(workflow.AbilityKnowledgeBaseSearch, func(in ability.Context) string {
		return strings.Join(words(in.Str("query")), " ")
	})
	return c
}

func extractEntities(_ context.Context, in ability.Context) (ability.Result, error) {
	query := in.Str("query")
	entities := map[string]any{}

	var orders []string
	for _, m := range orderPattern.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			orders = append(orders, m[1])
		} else if m[2] != "" {
			orders = append(orders, m[2])
		}
	}
	if len(orders) > 0 {
		entities["order_numbers"] = unique(orders)
	}
	if amounts := amountPattern.FindAllString(query, -1); len(amounts) > 0 {
		entities["amounts"] = unique(amounts)
	}
	if dates := datePattern.FindAllString(query, -1); len(dates) > 0 {
		entities["dates"] = unique(dates)
	}
	if emails := emailPattern.FindAllString(query, -1); len(emails) > 0 {
		entities["emails"] = unique(emails)
	}

	var products []string
	for _, w := range words(query) {
		for _, p := range productWords {
			if w == p {
				products = append(products, p)
			}
		}
	}
	if len(products) > 0 {
		entities["products"] = unique(products)
	}
	entities["intent"] = classifyIntent(words(query))

	return ability.Result{"extracted_entities": entities}, nil
}

func enrichRecords(_ context.Context, in ability.Context) (ability.Result, error) {
	email := strings.ToLower(in.Str("email"))
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))

	tier := "standard"
	if strings.HasSuffix(email, ".com") && h.Sum32()%3 == 0 {
		tier = "premium"
	}

	slaHours := map[int]int{1: 48, 2: 24, 3: 8, 4: 4}[in.Int("priority_level", 2)]
	if slaHours == 0 {
		slaHours = 24
	}

	return ability.Result{
		"enriched_data": map[string]any{
			"customer_tier":    tier,
			"previous_tickets": int(h.Sum32() % 5),
			"sla_hours":        slaHours,
			"account_status":   "active",
		},
	}, nil
}

func clarifyQuestion(_ context.Context, in ability.Context) (ability.Result, error) {
	var questions []string
	entities := ability.AsMap(in["extracted_entities"])
	intent, _ := entities["intent"].(string)

	if intent == "order_status" {
		if _, ok := entities["order_numbers"]; !ok {
			questions = append(questions, "Could you share the order number for this request?")
		}
	}
	if intent == "billing" {
		if _, ok := entities["amounts"]; !ok {
			questions = append(questions, "What amount was charged, and on which date?")
		}
	}
	if len(words(in.Str("query"))) < 5 {
		questions = append(questions, "Could you describe the issue in a little more detail?")
	}

	return ability.Result{
		"clarification_questions": questions,
		"question_count":          len(questions),
	}, nil
}

func extractAnswer(source AnswerSource) ability.Handler {
	return func(ctx context.Context, in ability.Context) (ability.Result, error) {
		questions := in.Strings("clarification_questions")
		if source == nil || len(questions) == 0 {
			return ability.Result{"extracted_answer": "", "answered": false}, nil
		}
		answer, err := source.Answer(ctx, in.Str("ticket_id"), questions)
		if err != nil {
			return nil, fmt.Errorf("collect answer: %w", err)
		}
		answer = strings.TrimSpace(answer)
		return ability.Result{"extracted_answer": answer, "answered": answer != ""}, nil
	}
}

func knowledgeBaseSearch(kb KnowledgeBase) ability.Handler {
	return func(ctx context.Context, in ability.Context) (ability.Result, error) {
		query := in.Str("query")
		articles, err := kb.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("search knowledge base: %w", err)
		}
		results := make([]map[string]any, 0, len(articles))
		for _, a := range articles {
			results = append(results, map[string]any{
				"id":        a.ID,
				"title":     a.Title,
				"category":  a.Category,
				"relevance": a.Relevance,
			})
		}
		return ability.Result{"kb_results": results, "query": query}, nil
	}
}

// escalationDecision applies the fixed escalation policy to the best score
// among the solutions gathered so far.
func escalationDecision(_ context.Context, in ability.Context) (ability.Result, error) {
	best := 0.0
	for i, s := range in.Records("solutions") {
		score, _ := ability.AsFloat(s["score"])
		if i == 0 || score > best {
			best = score
		}
	}

	escalate := best < workflow.EscalationThreshold
	decision := map[string]any{
		"escalate":    escalate,
		"best_score":  best,
		"priority":    "medium",
		"reason":      "Sufficient solution found",
		"destination": "automated",
	}
	if best < workflow.HighPriorityThreshold {
		decision["priority"] = "high"
	}
	if escalate {
		decision["reason"] = fmt.Sprintf("Best solution score (%g) below threshold (%g)", best, workflow.EscalationThreshold)
		decision["destination"] = "specialist"
	}
	return ability.Result{"escalation_decision": decision}, nil
}

func updateTicket(_ context.Context, in ability.Context) (ability.Result, error) {
	status := "in_progress"
	if in.Bool("escalation_required") {
		status = "escalated"
	}
	return ability.Result{
		"ticket_id":     in.Str("ticket_id"),
		"ticket_status": status,
		"actions":       []string{"ticket_updated:" + status},
	}, nil
}

func closeTicket(_ context.Context, in ability.Context) (ability.Result, error) {
	if in.Bool("escalation_required") {
		return ability.Result{
			"closed":  false,
			"reason":  "awaiting specialist review",
			"actions": []string{},
		}, nil
	}
	return ability.Result{
		"closed":     true,
		"resolution": "automated",
		"actions":    []string{"ticket_closed"},
	}, nil
}

func executeAPICalls(_ context.Context, in ability.Context) (ability.Result, error) {
	calls := []map[string]any{
		{"system": "crm", "action": "update_customer_record", "status": "success"},
	}
	if in.Bool("escalation_required") {
		calls = append(calls, map[string]any{"system": "specialist_queue", "action": "notify_specialist_team", "status": "success"})
	}
	actions := make([]string, 0, len(calls))
	for _, c := range calls {
		actions = append(actions, fmt.Sprintf("%s:%s", c["system"], c["action"]))
	}
	return ability.Result{"api_calls": calls, "actions": actions}, nil
}

func triggerNotifications(_ context.Context, in ability.Context) (ability.Result, error) {
	notifications := []map[string]any{
		{"channel": "email", "recipient": in.Str("email"), "status": "sent"},
	}
	if in.Int("priority_level", 2) > 3 {
		notifications = append(notifications, map[string]any{"channel": "sms", "recipient": in.Str("customer_name"), "status": "sent"})
	}
	actions := make([]string, 0, len(notifications))
	for _, n := range notifications {
		actions = append(actions, fmt.Sprintf("notify:%s", n["channel"]))
	}
	return ability.Result{"notifications": notifications, "actions": actions}, nil
}
