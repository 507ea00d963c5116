package backend

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/felixgeelhaar/supportflow/domain/ability"
	"github.com/felixgeelhaar/supportflow/domain/state"
	"github.com/felixgeelhaar/supportflow/domain/workflow"
)

// NewCommon creates the client for general-purpose abilities.
func NewCommon(opts ...Option) *Client {
	c := NewClient(workflow.BackendCommon, opts...)
	c.Register(workflow.AbilityAcceptPayload, acceptPayload)
	c.Register(workflow.AbilityParseRequestText, parseRequestText)
	c.Register(workflow.AbilityNormalizeFields, normalizeFields)
	c.Register(workflow.AbilityAddFlagsCalculations, addFlagsCalculations)
	c.Register(workflow.AbilityStoreAnswer, storeAnswer)
	c.Register(workflow.AbilityStoreData, storeData)
	c.Register(workflow.AbilitySolutionEvaluation, solutionEvaluation)
	c.Register(workflow.AbilityUpdatePayload, updatePayload)
	c.Register(workflow.AbilityResponseGeneration, responseGeneration)
	c.Register(workflow.AbilityOutputPayload, outputPayload)
	return c
}

func acceptPayload(_ context.Context, in ability.Context) (ability.Result, error) {
	received := make([]string, 0, 5)
	for _, k := range []string{"customer_name", "email", "query", "priority", "ticket_id"} {
		if in.Str(k) != "" {
			received = append(received, k)
		}
	}
	return ability.Result{
		"accepted":        true,
		"ticket_id":       in.Str("ticket_id"),
		"received_fields": received,
	}, nil
}

func parseRequestText(_ context.Context, in ability.Context) (ability.Result, error) {
	query := in.Str("query")
	ws := words(query)
	return ability.Result{
		"parsed_request": map[string]any{
			"intent":     classifyIntent(ws),
			"urgent":     containsAny(ws, urgencyWords),
			"word_count": len(ws),
			"question":   strings.Contains(query, "?"),
		},
	}, nil
}

func normalizeFields(_ context.Context, in ability.Context) (ability.Result, error) {
	ticket := strings.TrimSpace(in.Str("ticket_id"))
	format := "CS-UNKNOWN"
	if ticket != "" {
		format = "CS-" + strings.ToUpper(ticket)
	}
	return ability.Result{
		"normalized_fields": map[string]any{
			"priority_level": state.Input{Priority: in.Str("priority")}.PriorityLevel(),
			"email":          strings.ToLower(strings.TrimSpace(in.Str("email"))),
			"customer_name":  strings.Join(strings.Fields(in.Str("customer_name")), " "),
			"ticket_format":  format,
		},
	}, nil
}

func addFlagsCalculations(_ context.Context, in ability.Context) (ability.Result, error) {
	level := in.Int("priority_level", 2)
	slaRisk := min(level*25, 100)
	complexity := min(len(in.Str("query"))/10, 100)

	risk := "low"
	switch {
	case slaRisk > 75:
		risk = "high"
	case slaRisk > 50:
		risk = "medium"
	}

	return ability.Result{
		"flags": map[string]any{
			"sla_risk":            slaRisk,
			"complexity":          complexity,
			"auto_escalate":       slaRisk > 75,
			"requires_specialist": complexity > 50,
			"risk_level":          risk,
		},
	}, nil
}

func storeAnswer(_ context.Context, in ability.Context) (ability.Result, error) {
	responses := in.Strings("human_responses")
	return ability.Result{
		"stored":         len(responses) > 0,
		"response_count": len(responses),
	}, nil
}

func storeData(_ context.Context, in ability.Context) (ability.Result, error) {
	return ability.Result{
		"stored_results": len(in.Records("kb_results")),
	}, nil
}

// solutionEvaluation scores each knowledge base result 1-100 from its
// relevance, boosted when the article title shares a keyword with the query.
func solutionEvaluation(_ context.Context, in ability.Context) (ability.Result, error) {
	query := in.Str("query")
	results := in.Records("kb_results")

	solutions := make([]map[string]any, 0, len(results))
	best := 0.0
	for i, kb := range results {
		relevance, _ := ability.AsFloat(kb["relevance"])
		title, _ := kb["title"].(string)

		score := math.Round(relevance * 80)
		if sharesKeyword(query, title) {
			score += 20
		}
		score = math.Max(1, math.Min(100, score))
		best = math.Max(best, score)

		solutions = append(solutions, map[string]any{
			"id":         fmt.Sprintf("sol_%d", i+1),
			"title":      title,
			"source":     kb["id"],
			"score":      score,
			"confidence": score / 100,
		})
	}

	return ability.Result{
		"solutions":  solutions,
		"best_score": best,
	}, nil
}

func updatePayload(_ context.Context, in ability.Context) (ability.Result, error) {
	branch := "continue"
	if in.Bool("escalation_required") {
		branch = "escalate"
	}
	return ability.Result{
		"decision_recorded": true,
		"branch":            branch,
		"best_score":        in["best_score"],
	}, nil
}

func responseGeneration(_ context.Context, in ability.Context) (ability.Result, error) {
	name := in.Str("customer_name")
	best, _ := ability.AsFloat(in["best_score"])
	solutions := in.Records("solutions")

	var response string
	switch {
	case !in.Bool("escalation_required") && best >= workflow.EscalationThreshold && len(solutions) > 0:
		title := topSolutionTitle(solutions)
		response = fmt.Sprintf("Dear %s, I've found a solution to your request: %s. "+
			"Please follow the steps in the linked article and let us know if anything is unclear.", name, title)
	case in.Bool("escalation_required"):
		response = fmt.Sprintf("Dear %s, thank you for your patience. Your request has been forwarded "+
			"to our specialist team, who will contact you shortly.", name)
	default:
		response = fmt.Sprintf("Dear %s, thank you for reaching out. Our team is currently reviewing "+
			"your request and will follow up soon.", name)
	}

	return ability.Result{"generated_response": response}, nil
}

func topSolutionTitle(solutions []map[string]any) string {
	var title string
	best := -1.0
	for _, s := range solutions {
		score, _ := ability.AsFloat(s["score"])
		if score > best {
			best = score
			title, _ = s["title"].(string)
		}
	}
	return title
}

func outputPayload(_ context.Context, in ability.Context) (ability.Result, error) {
	return ability.Result{
		"output_generated": true,
		"ticket_id":        in.Str("ticket_id"),
		"generated_at":     ability.Timestamp(time.Now()),
	}, nil
}
