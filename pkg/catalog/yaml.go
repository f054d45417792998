package catalog

import (
	"strings"

	"github.com/user/hostcomply/pkg/benchmark"
	"github.com/user/hostcomply/pkg/compliance"
	"gopkg.in/yaml.v3"
)

type yamlEntry struct {
	ResourceID string            `yaml:"resourceId"`
	Benchmark  string            `yaml:"benchmark"`
	Rule       string            `yaml:"rule"`
	Audit      yaml.Node         `yaml:"audit"`
	Remediate  yaml.Node         `yaml:"remediate"`
	Parameters map[string]string `yaml:"parameters"`
	Payload    *string           `yaml:"payload"`
	InitAudit  bool              `yaml:"initAudit"`
}

// nextDocument collects lines up to the next "---" separator. Splitting
// before decoding keeps a syntax error confined to its own document.
func (r *Reader) nextDocument() (string, bool) {
	var sb strings.Builder
	for r.scanner.Scan() {
		line := r.scanner.Text()
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "---" || strings.HasPrefix(trimmed, "--- ") || trimmed == "..." {
			if strings.TrimSpace(sb.String()) != "" {
				return sb.String(), true
			}
			sb.Reset()
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	r.done = true
	return sb.String(), strings.TrimSpace(sb.String()) != ""
}

func (r *Reader) nextYAML() (*Resource, error) {
	for {
		doc, ok := r.nextDocument()
		if !ok {
			if err := r.scanner.Err(); err != nil {
				return nil, compliance.ParseError("failed to read catalog: %v", err)
			}
			return nil, nil
		}
		r.entry++

		var root yaml.Node
		if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
			return nil, compliance.ParseError("entry %d: %v", r.entry, err)
		}
		if len(root.Content) == 0 {
			// Comment-only document.
			continue
		}
		var entry yamlEntry
		if err := root.Decode(&entry); err != nil {
			return nil, compliance.ParseError("entry %d: %v", r.entry, err)
		}
		return entry.resource(r.entry)
	}
}

func (e *yamlEntry) resource(index int) (*Resource, error) {
	if e.ResourceID == "" {
		return nil, compliance.ParseError("entry %d: resourceId is missing", index)
	}
	if e.Benchmark == "" {
		return nil, compliance.ParseError("entry %d (%s): benchmark is missing", index, e.ResourceID)
	}
	info, err := benchmark.Parse(e.Benchmark)
	if err != nil {
		return nil, compliance.ParseError("entry %d (%s): failed to parse benchmark: %v", index, e.ResourceID, err)
	}
	if e.Rule == "" {
		return nil, compliance.ParseError("entry %d (%s): rule is missing", index, e.ResourceID)
	}
	if e.Audit.Kind == 0 {
		return nil, compliance.ParseError("entry %d (%s): audit is missing", index, e.ResourceID)
	}
	audit, err := decodeExpression(&e.Audit)
	if err != nil {
		return nil, compliance.ParseError("entry %d (%s): audit: %v", index, e.ResourceID, err)
	}

	res := &Resource{
		ID:         e.ResourceID,
		Benchmark:  info,
		Rule:       e.Rule,
		Audit:      audit,
		Parameters: e.Parameters,
		Payload:    e.Payload,
		InitAudit:  e.InitAudit,
	}
	if e.Remediate.Kind != 0 {
		remediate, err := decodeExpression(&e.Remediate)
		if err != nil {
			return nil, compliance.ParseError("entry %d (%s): remediate: %v", index, e.ResourceID, err)
		}
		res.Remediate = &remediate
	}
	if res.Parameters == nil {
		res.Parameters = map[string]string{}
	}
	return res, nil
}
