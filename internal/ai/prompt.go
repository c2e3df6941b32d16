package ai

import (
	"fmt"

	"github.com/david/bill-finder/internal/models"
)

// SystemPrompt frames the model as a legislative research assistant.
const SystemPrompt = "You are a congressional research assistant who helps users find and understand recent US legislation."

// BuildSearchPrompt asks for 3-5 bills in the labelled format the free-text parser reads.
func BuildSearchPrompt(query string, s models.UserSettings) string {
	summary := "2-3 sentence summary of the bill's purpose and key provisions"
	if s.DetailLevel == models.DetailBrief {
		summary = "one sentence summary of the bill's purpose"
	}

	audience := ""
	switch s.AgeGroup {
	case models.AgeChild:
		audience = "\nWrite every summary in simple words a 10 year old can follow."
	case models.AgeTeen:
		audience = "\nWrite every summary at a high school reading level."
	}

	return fmt.Sprintf(`You are a congressional research assistant. Search for and provide information about recent US congressional bills related to: "%s"

Please provide 3-5 bills in the following format for each bill. IMPORTANT: List bills from MOST RECENT to OLDEST by date.

BILL: [Bill number, e.g., H.R. 1234 or S. 567]
TITLE: [Full official title]
SPONSOR: [Primary sponsor name and party]
STATUS: [Current status, e.g., Introduced, Passed House, etc.]
DATE: [Introduction or last action date in MM/DD/YYYY format]
SUMMARY: [%s]

---

Make sure to include real, recent bills if you know them, or clearly indicate if you're providing representative examples. Focus on bills from the 118th Congress (2023-2025) when possible. Sort by most recent date first.%s`, query, summary, audience)
}
