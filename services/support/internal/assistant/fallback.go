package assistant

import (
	"strings"
	"unicode"
)

// GenericFallback is returned when no keyword rule matches.
const GenericFallback = "Thank you for your message. Our support team will get back to you shortly. In the meantime, you can create a support ticket for detailed assistance."

type fallbackRule struct {
	topic    string
	keywords []string
	reply    string
}

// Rules are checked in order; specific topics come before greetings so that
// "hi, my battery died" is answered as a battery question.
var fallbackRules = []fallbackRule{
	{
		topic:    "battery",
		keywords: []string{"battery", "batteries", "charge", "charging", "charger", "drain", "draining"},
		reply:    "Battery problems are often fixed by updating your device software and checking for apps that drain power in the background. If the battery still drains quickly or will not charge, create a support ticket and we can schedule a battery inspection or replacement.",
	},
	{
		topic:    "screen",
		keywords: []string{"screen", "display", "flicker", "flickering", "cracked", "pixel", "pixels", "lines"},
		reply:    "For display issues, restart the device and check whether the problem appears on every screen. Cracked panels, flickering or lines usually need a hardware repair, so please create a support ticket and we will arrange a pickup.",
	},
	{
		topic:    "performance",
		keywords: []string{"slow", "lag", "lagging", "freeze", "freezing", "frozen", "crash", "crashes", "overheating", "performance"},
		reply:    "Performance issues can often be improved by restarting the device, freeing up storage and installing the latest updates. If the device keeps freezing or overheating, create a support ticket and our technicians will run a diagnostic.",
	},
	{
		topic:    "ticket",
		keywords: []string{"ticket", "tickets", "status", "track", "tracking", "pickup", "repair"},
		reply:    "You can follow your repair in the Track Tickets section, which shows the current stage of each ticket. To start a new repair, create a support ticket and choose a pickup date and time slot.",
	},
	{
		topic:    "warranty",
		keywords: []string{"warranty", "guarantee", "refund", "return", "returns"},
		reply:    "Warranty coverage depends on your product and service tier. Gold tier includes extended warranty coverage. Create a support ticket with your product details and we will confirm what is covered.",
	},
	{
		topic:    "greeting",
		keywords: []string{"hi", "hello", "hey", "greetings", "morning", "afternoon", "evening"},
		reply:    "Hello! I'm here to help with your products, repairs and orders. How can I assist you today?",
	},
}

// keywordFallback picks a canned reply by keyword. It never fails.
func keywordFallback(query string) (topic, reply string) {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		seen[w] = true
	}
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if seen[kw] {
				return rule.topic, rule.reply
			}
		}
	}
	return "generic", GenericFallback
}
