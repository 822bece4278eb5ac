package chat

import "strings"

const (
	// Greeting answers hellos.
	Greeting = "Hello! I'm DocAI, your document assistant. How can I help you today?"
	// Thanks answers expressions of gratitude.
	Thanks   = "You're welcome! Let me know if you need anything else."
)

// Rule answers a question without consulting the document when any trigger
// occurs in it.
type Rule struct {
	Name     string
	Triggers []string
	Reply    string
}

// DefaultRules are evaluated in order; the first match wins.
var DefaultRules = []Rule{
	{Name: "greeting", Triggers: []string{"hi", "hello"}, Reply: Greeting},
	{Name: "thanks", Triggers: []string{"thank you", "thanks"}, Reply: Thanks},
}

// Responder short-circuits small talk before any adapter runs.
type Responder struct {
	rules []Rule
}

// NewResponder lowercases triggers once so Match only lowercases the input.
func NewResponder(rules []Rule) *Responder {
	rs := make([]Rule, len(rules))
	for i, r := range rules {
		triggers := make([]string, len(r.Triggers))
		for j, t := range r.Triggers {
			triggers[j] = strings.ToLower(t)
		}
		rs[i] = Rule{Name: r.Name, Triggers: triggers, Reply: r.Reply}
	}
	return &Responder{rules: rs}
}

// Match reports the canned reply for question. Matching is a case-insensitive
// substring test, so "this" also trips the "hi" trigger.
func (r *Responder) Match(question string) (Rule, bool) {
	q := strings.ToLower(question)
	for _, rule := range r.rules {
		for _, t := range rule.Triggers {
			if strings.Contains(q, t) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}
