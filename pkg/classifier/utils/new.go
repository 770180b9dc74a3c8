// Package classifierutils is the classifier utility package
package classifierutils

import (
	"fmt"

	"github.com/nickyai/memex/pkg/classifier"
	"github.com/nickyai/memex/pkg/classifier/ollama"
)

type NewClassifierOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
}

// NewClassifier constructs a conflict classifier for the configured
// provider. The "none" provider returns nil; callers treat a nil
// classifier as disabled.
func NewClassifier(o NewClassifierOpts) (classifier.ConflictClassifier, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.NewClassifier(ollama.Config{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", o.ProviderType)
	}
}
