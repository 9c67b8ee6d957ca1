package source

import (
	"context"

	"github.com/mesh-intelligence/tabula/internal/jsonl"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

// JSONLFile fetches records from a JSONL file on every call. Malformed
// lines are skipped.
type JSONLFile string

// Fetch reads the file.
func (f JSONLFile) Fetch(ctx context.Context) ([]types.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return jsonl.Read(string(f))
}
