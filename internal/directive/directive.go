package directive

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
)

const (
	TriggerTypeFile = "file"
	TriggerTypeDir  = "dir"
	TriggerTypeAny  = "any"
)

// Trigger decides whether a repository listing authorizes a clone.
// Matching is root-level only: the listing is never traversed into
// subdirectories, so patterns must name entries at the repository root.
type Trigger struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

type Fetch struct {
	Trigger         Trigger `json:"trigger"`
	NotifyOnFailure bool    `json:"notify-on-failure"`
	NotifyOnSuccess bool    `json:"notify-on-success"`
}

// Prune filters cloned content. Git retrieves whole repositories, so
// unwanted content is removed locally after the clone. The default
// whitelist-everything rule is a no-op.
type Prune struct {
	Type string   `json:"type"` // "whitelist" or "blacklist"
	List []string `json:"list"`
}

// Directive is the per-assignment rule tree: a hard-coded default overlaid
// with whatever JSON is stored on the assignment row. The test and evaluate
// stages are placeholders for services outside this bot.
type Directive struct {
	Fetch    Fetch            `json:"fetch"`
	Prune    Prune            `json:"prune"`
	Test     map[string]any   `json:"test"`
	Evaluate []map[string]any `json:"evaluate"`
}

func Default() Directive {
	return Directive{
		Fetch: Fetch{
			Trigger: Trigger{
				Type:    TriggerTypeFile,
				Path:    "/",
				Pattern: "READY*",
			},
			NotifyOnFailure: true,
			NotifyOnSuccess: true,
		},
		Prune: Prune{
			Type: "whitelist",
			List: []string{"*"},
		},
	}
}

// Parse overlays assignment JSON over the default rule set. Keys absent from
// the JSON keep their default values. A nil or empty raw returns the default
// unchanged.
func Parse(raw []byte) (Directive, error) {
	d := Default()
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return Directive{}, fmt.Errorf("failed to parse assignment directives: %w", err)
	}
	return d, nil
}

// Match returns every listing entry the trigger selects: type "any" or an
// exact type match, plus a case-sensitive glob match on the entry path.
// Zero matches means no clone; more than one is an anomaly the caller must
// flag, not silently resolve.
func (t Trigger) Match(entries []models.RepoEntry) []models.RepoEntry {
	var matched []models.RepoEntry
	for _, entry := range entries {
		if t.Type != TriggerTypeAny && t.Type != entry.Type {
			continue
		}
		ok, err := path.Match(t.Pattern, entry.Path)
		if err != nil {
			// Malformed pattern matches nothing.
			continue
		}
		if ok {
			matched = append(matched, entry)
		}
	}
	return matched
}
