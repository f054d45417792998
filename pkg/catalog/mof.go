package catalog

import (
	"encoding/base64"
	"strings"

	"github.com/user/hostcomply/pkg/benchmark"
	"github.com/user/hostcomply/pkg/compliance"
	"gopkg.in/yaml.v3"
)

const mofInstanceMarker = "instance of OsConfigResource"

type mofEntry struct {
	resourceID *string
	info       *benchmark.Info
	procedure  *string
	rule       *string
	payload    *string
	initAudit  bool
}

// procedureObject is the JSON document carried by ProcedureObjectValue.
type procedureObject struct {
	Audit      yaml.Node         `yaml:"audit"`
	Remediate  yaml.Node         `yaml:"remediate"`
	Parameters map[string]string `yaml:"parameters"`
}

// mofValue returns the text between the first pair of double quotes.
func mofValue(line string) string {
	start := strings.IndexByte(line, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(line[start+1:], '"')
	if end < 0 {
		return ""
	}
	return line[start+1 : start+1+end]
}

func (r *Reader) nextMOF() (*Resource, error) {
	found := false
	for r.scanner.Scan() {
		if strings.Contains(r.scanner.Text(), mofInstanceMarker) {
			found = true
			break
		}
	}
	if !found {
		r.done = true
		if err := r.scanner.Err(); err != nil {
			return nil, compliance.ParseError("failed to read catalog: %v", err)
		}
		return nil, nil
	}
	r.entry++

	var e mofEntry
	var entryErr error
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.Contains(line, "};") {
			break
		}
		if entryErr != nil {
			// Drain the rest of the broken entry.
			continue
		}
		value := mofValue(line)
		switch {
		case strings.Contains(line, "ResourceID"):
			e.resourceID = &value
		case strings.Contains(line, "PayloadKey"):
			info, err := benchmark.Parse(value)
			if err != nil {
				entryErr = compliance.ParseError("entry %d: failed to parse PayloadKey: %v", r.entry, err)
				continue
			}
			e.info = &info
		case strings.Contains(line, "ProcedureObjectValue"):
			e.procedure = &value
		case strings.Contains(line, "InitObjectName"):
			if !strings.HasPrefix(value, "init") {
				entryErr = compliance.ParseError("entry %d: invalid init object name '%s'", r.entry, value)
				continue
			}
			e.initAudit = true
		case strings.Contains(line, "ReportedObjectName"):
			if !strings.HasPrefix(value, "audit") {
				entryErr = compliance.ParseError("entry %d: invalid reported object name '%s'", r.entry, value)
				continue
			}
			rule := strings.TrimPrefix(value, "audit")
			e.rule = &rule
		case strings.Contains(line, "DesiredObjectValue"):
			e.payload = &value
		}
	}
	if entryErr != nil {
		return nil, entryErr
	}
	return e.resource(r.entry)
}

func (e *mofEntry) resource(index int) (*Resource, error) {
	switch {
	case e.resourceID == nil:
		return nil, compliance.ParseError("entry %d: ResourceID is missing", index)
	case e.info == nil:
		return nil, compliance.ParseError("entry %d (%s): PayloadKey is missing", index, *e.resourceID)
	case e.rule == nil:
		return nil, compliance.ParseError("entry %d (%s): ReportedObjectName is missing", index, *e.resourceID)
	case e.procedure == nil:
		return nil, compliance.ParseError("entry %d (%s): ProcedureObjectValue is missing", index, *e.resourceID)
	}

	obj, err := decodeProcedureObject(*e.procedure)
	if err != nil {
		return nil, compliance.ParseError("entry %d (%s): %v", index, *e.resourceID, err)
	}
	audit, err := decodeExpression(&obj.Audit)
	if err != nil {
		return nil, compliance.ParseError("entry %d (%s): audit: %v", index, *e.resourceID, err)
	}

	res := &Resource{
		ID:         *e.resourceID,
		Benchmark:  *e.info,
		Rule:       *e.rule,
		Audit:      audit,
		Parameters: obj.Parameters,
		Payload:    e.payload,
		InitAudit:  e.initAudit,
	}
	if obj.Remediate.Kind != 0 {
		remediate, err := decodeExpression(&obj.Remediate)
		if err != nil {
			return nil, compliance.ParseError("entry %d (%s): remediate: %v", index, *e.resourceID, err)
		}
		res.Remediate = &remediate
	}
	if res.Parameters == nil {
		res.Parameters = map[string]string{}
	}
	return res, nil
}

// decodeProcedureObject accepts base64-encoded or plain JSON. JSON is read
// with the YAML decoder, which keeps argument scalars as written.
func decodeProcedureObject(value string) (*procedureObject, error) {
	text := value
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		text = string(decoded)
	}

	var obj procedureObject
	if err := yaml.Unmarshal([]byte(text), &obj); err != nil {
		return nil, compliance.ParseError("failed to parse procedure object: %v", err)
	}
	if obj.Audit.Kind == 0 {
		return nil, compliance.ParseError("missing 'audit' object")
	}
	if obj.Audit.Kind != yaml.MappingNode {
		return nil, compliance.ParseError("the 'audit' value is not an object")
	}
	if obj.Remediate.Kind != 0 && obj.Remediate.Kind != yaml.MappingNode {
		return nil, compliance.ParseError("the 'remediate' value is not an object")
	}
	return &obj, nil
}
