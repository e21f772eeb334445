package assistant

import (
	"fmt"
	"strings"
	"unicode"

	"supportdesk/pkg/domain"
)

// RefusalText is the fixed reply to off-topic queries.
const RefusalText = "I can assist only with customer support–related queries."

const systemPromptTemplate = `You are a strict customer support chatbot.

You must ONLY handle:
- product issues
- billing issues
- account support
- troubleshooting
- refunds, returns, and order-related questions

Below is the FAQ knowledge base:
%s

User asked: %q

Your rules:
1. First check if the user's question MATCHES or is SIMILAR to any FAQ.
2. If it matches, reply ONLY with the FAQ answer.
3. If not in the FAQ, generate your own correct customer-support answer.
4. If the query is NOT related to customer support, reply exactly:
   "` + RefusalText + `"
`

func buildSystemPrompt(faqs []domain.FAQ, query string) string {
	parts := make([]string, 0, len(faqs))
	for _, f := range faqs {
		parts = append(parts, fmt.Sprintf("Q: %s\nA: %s", f.Question, f.Answer))
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(parts, "\n\n"), query)
}

// normalizeQuestion folds case and whitespace and drops trailing punctuation
// so that a query typed like a stored question matches it.
func normalizeQuestion(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

func matchFAQ(faqs []domain.FAQ, query string) (domain.FAQ, bool) {
	want := normalizeQuestion(query)
	if want == "" {
		return domain.FAQ{}, false
	}
	for _, f := range faqs {
		if normalizeQuestion(f.Question) == want {
			return f, true
		}
	}
	return domain.FAQ{}, false
}

// isRefusal reports whether a provider reply is the refusal, allowing for
// quoting and the hyphen variant of the dash.
func isRefusal(reply string) bool {
	reply = strings.Trim(strings.TrimSpace(reply), `"'`+"`")
	reply = strings.ReplaceAll(reply, "-", "–")
	return strings.EqualFold(reply, RefusalText)
}
