package memory

import (
	"encoding/json"
	"fmt"
)

// SuggestionKind discriminates curation suggestion payloads on the wire.
type SuggestionKind string

const (
	SuggestionBoostImportance SuggestionKind = "boost_importance"
	SuggestionAddTag          SuggestionKind = "add_tag"
	SuggestionFlagForTraining SuggestionKind = "flag_for_training"
)

// Suggestion is a curation hint emitted by scans. Each kind carries its own
// payload type; consumers switch on the concrete type.
type Suggestion interface {
	Kind() SuggestionKind
}

// BoostImportance suggests raising a fact's importance by Delta.
type BoostImportance struct {
	FactID string `json:"fact_id"`
	Delta  int    `json:"delta"`
}

func (BoostImportance) Kind() SuggestionKind { return SuggestionBoostImportance }

// AddTag suggests adding a keyword tag to a fact.
type AddTag struct {
	FactID string `json:"fact_id"`
	Tag    string `json:"tag"`
}

func (AddTag) Kind() SuggestionKind { return SuggestionAddTag }

// FlagForTraining suggests routing a fact to a human curation queue.
type FlagForTraining struct {
	FactID string `json:"fact_id"`
	Reason string `json:"reason"`
}

func (FlagForTraining) Kind() SuggestionKind { return SuggestionFlagForTraining }

// SuggestionEnvelope is the JSON form of a Suggestion: a kind discriminator
// plus the kind's payload.
type SuggestionEnvelope struct {
	SuggestionKind SuggestionKind  `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
}

// WrapSuggestion encodes a suggestion into its envelope.
func WrapSuggestion(s Suggestion) (SuggestionEnvelope, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return SuggestionEnvelope{}, fmt.Errorf("encoding suggestion payload: %w", err)
	}
	return SuggestionEnvelope{SuggestionKind: s.Kind(), Payload: payload}, nil
}

// Unwrap decodes the envelope back into its concrete suggestion type.
func (e SuggestionEnvelope) Unwrap() (Suggestion, error) {
	var (
		s   Suggestion
		err error
	)

	switch e.SuggestionKind {
	case SuggestionBoostImportance:
		var v BoostImportance
		err = json.Unmarshal(e.Payload, &v)
		s = v
	case SuggestionAddTag:
		var v AddTag
		err = json.Unmarshal(e.Payload, &v)
		s = v
	case SuggestionFlagForTraining:
		var v FlagForTraining
		err = json.Unmarshal(e.Payload, &v)
		s = v
	default:
		return nil, fmt.Errorf("unknown suggestion kind: %q", e.SuggestionKind)
	}

	if err != nil {
		return nil, fmt.Errorf("decoding %s payload: %w", e.SuggestionKind, err)
	}
	return s, nil
}

// WrapSuggestions encodes a slice of suggestions, preserving order.
func WrapSuggestions(suggestions []Suggestion) ([]SuggestionEnvelope, error) {
	out := make([]SuggestionEnvelope, 0, len(suggestions))
	for _, s := range suggestions {
		env, err := WrapSuggestion(s)
		if err != nil {
			return nil, err
		}
		out = append(out, env)
	}
	return out, nil
}
