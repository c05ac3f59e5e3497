package service

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// alertTemplates are the alert phrasings; {count} is replaced by the number of new pairs.
var alertTemplates = []string{
	"🎯 ProfitSniffer Bullseye: {count} new target(s) acquired. Aim for profits!",
	"🚀 {count} token(s) are skyrocketing into your criteria!",
	"💎 {count} coin(s) are shining like diamonds and fit your filter!",
	"🔔 Alert! {count} token(s) have triggered your notification!",
	"📈 {count} cryptocurrencie(s) are now on an upward trend, matching your needs!",
	"🕵️ {count} coin(s) are now on your radar, detective!",
	"🔍 {count} token(s) meet your detailed search criteria!",
}

// WelcomeMessage is sent to a chat on first contact.
const WelcomeMessage = "Welcome to ProfitSniffer! 🚀\n\n" +
	"We're here to help you spot profitable crypto opportunities with ease. Here's what you can do:\n\n" +
	"🔎 Set Filters – Customize alerts to match your trading strategy.\n" +
	"📊 View Tokens – Check out tokens that meet your criteria.\n" +
	"📱 App – Access the full ProfitSniffer experience through our app!\n\n" +
	"Ready to get started? Set your filters and let us sniff out profit opportunities for you!"

// AlertMessage picks a phrasing uniformly at random and substitutes count.
func AlertMessage(count int) string {
	return RenderAlert(rand.IntN(len(alertTemplates)), count)
}

// RenderAlert renders phrasing i (modulo the number of phrasings).
func RenderAlert(i, count int) string {
	if i < 0 {
		i = -i
	}
	tpl := alertTemplates[i%len(alertTemplates)]
	return strings.ReplaceAll(tpl, "{count}", strconv.Itoa(count))
}

// AlertTemplateCount returns the number of phrasings.
func AlertTemplateCount() int { return len(alertTemplates) }
