// Package ranking holds the structured view of a reranking reply.
package ranking

import (
	"regexp"
	"strconv"
	"strings"
)

// Item is one ranked book recovered from the model's reply.
type Item struct {
	Rank    int     `json:"rank"`
	BookID  int     `json:"book_id"`
	Title   string  `json:"title"`
	Authors string  `json:"authors"`
	Score   float64 `json:"score"`
	Genre   string  `json:"genre,omitempty"`
}

// Ranking is the reranking outcome. Text is the authoritative trimmed reply;
// Items and Reasoning are best-effort and may be empty even when Text is not.
type Ranking struct {
	Text      string `json:"text"`
	Items     []Item `json:"items"`
	Reasoning string `json:"reasoning,omitempty"`
}

var itemLine = regexp.MustCompile(
	`^(?:(\d+)[.)]\s*)?Book ID:\s*(\d+),\s*Title:\s*(.*?),\s*Authors:\s*(.*?),\s*Prediction:\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*(?:\(([^)]*)\))?`,
)

const reasoningPrefix = "Reasoning:"

// Parse builds a Ranking from raw reply text. It never fails:
// lines that do not look like ranked items are ignored.
func Parse(text string) Ranking {
	text = strings.TrimSpace(text)
	r := Ranking{Text: text, Items: []Item{}}

	var (
		reasoning   []string
		inReasoning bool
	)
	for _, raw := range strings.Split(text, "\n") {
		line := cleanLine(raw)

		if item, ok := parseItem(line); ok {
			inReasoning = false
			if item.Rank == 0 {
				item.Rank = len(r.Items) + 1
			}
			r.Items = append(r.Items, item)
			continue
		}

		if rest, ok := strings.CutPrefix(line, reasoningPrefix); ok && r.Reasoning == "" && reasoning == nil {
			inReasoning = true
			if rest = strings.TrimSpace(rest); rest != "" {
				reasoning = append(reasoning, rest)
			}
			continue
		}

		if inReasoning {
			if line == "" {
				inReasoning = len(reasoning) == 0
				continue
			}
			reasoning = append(reasoning, line)
		}
	}

	r.Reasoning = strings.Join(reasoning, " ")
	return r
}

// cleanLine drops markdown emphasis and quoting the model tends to add.
func cleanLine(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

func parseItem(line string) (Item, bool) {
	m := itemLine.FindStringSubmatch(line)
	if m == nil {
		return Item{}, false
	}

	bookID, err := strconv.Atoi(m[2])
	if err != nil {
		return Item{}, false
	}
	score, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return Item{}, false
	}

	item := Item{
		BookID:  bookID,
		Title:   strings.TrimSpace(m[3]),
		Authors: strings.TrimSpace(m[4]),
		Score:   score,
		Genre:   strings.TrimSpace(m[6]),
	}
	if m[1] != "" {
		item.Rank, _ = strconv.Atoi(m[1])
	}
	return item, true
}
