package rerank

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/bookrec/internal/domain/candidate"
)

const (
	// Stage is the completion stage label for reranking calls.
	Stage = "rerank"

	// TopK is how many candidates the model sees and is asked to return.
	TopK = 10

	systemRole = "You are a helpful assistant."

	promptHeader = `Re-rank these books based on the user's preference, only return the top 10.
output format should follow this example:
"1. Book ID: 5038, Title: The Pillars of Creation (Sword of Truth, #7), Authors: Terry Goodkind, Prediction: 0.8330672979354858 (Fantasy)
2. Book ID: 9567, Title: Half Asleep in Frog Pajamas, Authors: Tom Robbins, Prediction: 0.8262556195259094 (Romance)
3. Book ID: 5368, Title: Forever Amber, Authors: Kathleen Winsor, Prediction: 0.7773409485816956 (Romance)
Reasoning: Note that I prioritized books that are known for romance or have strong romantic elements, and disregarded
those that focus on other genres like fantasy or thrillers, unless they are known to blend romance into the narrative
substantially. If the user is strictly looking for pure romance novels, some books such as "Harry Potter and the
Prisoner of Azkaban" and non-romance focused thrillers have been left out of the top 10.
"
Filtered Recommendations with Details:
`

	candidateLinePrefix = "Book ID: "
	preferencePrefix    = "User Preference: "
)

// buildPrompt renders the ranking prompt. Candidates are embedded as given;
// callers sort and truncate beforehand.
func buildPrompt(candidates candidate.List, request string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, c := range candidates {
		b.WriteString(candidateLine(c))
		b.WriteByte('\n')
	}
	b.WriteString(preferencePrefix)
	b.WriteString(request)
	return b.String()
}

func candidateLine(c candidate.Candidate) string {
	return candidateLinePrefix + strconv.Itoa(c.ExternalID) +
		", Title: " + c.Title +
		", Authors: " + c.Authors +
		", Prediction: " + strconv.FormatFloat(c.Score, 'f', -1, 64)
}
