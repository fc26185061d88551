package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// loadReferences reads a JSON array of types.Reference from path, the
// documented hand-off point between the (out-of-scope) PDF/BibTeX
// extraction layer and this engine.
func loadReferences(path string) ([]types.Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read references file %s: %w", path, err)
	}

	var refs []types.Reference
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("parse references file %s: %w", path, err)
	}

	for i := range refs {
		refs[i].Index = i
	}
	return refs, nil
}
