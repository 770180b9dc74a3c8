package retrieval

import "strings"

// Intent classifies what a query is asking for. It steers the type
// affinity bonus in contextual scoring.
type Intent string

const (
	IntentTellAbout Intent = "tell_about"
	IntentOpinion   Intent = "opinion"
	IntentRemind    Intent = "remind"
	IntentHowTo     Intent = "how_to"
	IntentGeneral   Intent = "general"
)

// intentPhrases is checked in order; the first table with a matching
// phrase wins. Opinion outranks remind outranks how_to outranks
// tell_about so that "what do you think about X" reads as opinion, not
// tell_about.
var intentPhrases = []struct {
	intent  Intent
	phrases []string
}{
	{IntentOpinion, []string{
		"what do you think",
		"how do you feel",
		"do you like",
		"your opinion",
		"your take",
		"favorite",
		"favourite",
	}},
	{IntentRemind, []string{
		"remind",
		"remember when",
		"what did i",
		"what did we",
		"what was i",
		"last time",
	}},
	{IntentHowTo, []string{
		"how do i",
		"how do you",
		"how to",
		"how can i",
		"what's the best way",
	}},
	{IntentTellAbout, []string{
		"tell me about",
		"who is",
		"who was",
		"what is",
		"what are",
		"describe",
		"explain",
	}},
}

// DetectIntent classifies a query by lowercase phrase matching. Queries
// matching no table are IntentGeneral.
func DetectIntent(query string) Intent {
	q := strings.ToLower(query)
	for _, entry := range intentPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(q, phrase) {
				return entry.intent
			}
		}
	}
	return IntentGeneral
}
