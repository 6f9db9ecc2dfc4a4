package sanitize

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"

	"logvault/internal/config"
)

// DropReason explains why the engine produced no output for a line.
type DropReason int

const (
	// DropNone means the line survived and was returned sanitized.
	DropNone DropReason = iota
	// DropMalformed means the line was not a well-formed structured record.
	DropMalformed
	// DropPolicy means a skip-if-contains field matched.
	DropPolicy
	// DropError means an unexpected failure occurred mid-transformation.
	DropError
)

// Engine applies the configured masking policy to single lines. Construction
// precomputes lookup sets; Sanitize itself is stateless and safe for
// concurrent use.
type Engine struct {
	fullMask       map[string]struct{}
	partial        map[string]config.PartialRule
	skipIfContains map[string]struct{}
	skipFields     map[string]struct{}
	levelField     string
	levelMap       map[string]string
	redaction      string
	maskChar       rune
	fold           cases.Caser
}

// New builds an engine from the masking section of the configuration.
func New(policy config.Masking) *Engine {
	fold := cases.Fold()
	maskChar := '*'
	if policy.MaskChar != "" {
		maskChar = []rune(policy.MaskChar)[0]
	}
	engine := &Engine{
		fullMask:       toSet(policy.FullMask),
		partial:        policy.Partial,
		skipIfContains: toSet(policy.SkipIfContains),
		skipFields:     toSet(policy.SkipFields),
		levelField:     policy.LevelField,
		redaction:      policy.RedactionToken,
		maskChar:       maskChar,
		fold:           fold,
	}
	if len(policy.LevelMap) > 0 {
		engine.levelMap = make(map[string]string, len(policy.LevelMap))
		for key, value := range policy.LevelMap {
			engine.levelMap[fold.String(key)] = value
		}
	}
	return engine
}

// Sanitize transforms one raw line into its sanitized form. The second return
// is DropNone when the line should be written; any other reason means the line
// produces no output.
func (e *Engine) Sanitize(line string) (out string, reason DropReason) {
	// A panic anywhere in the pass is treated like a parse failure.
	defer func() {
		if r := recover(); r != nil {
			out, reason = "", DropError
		}
	}()

	fields, err := parseRecord([]byte(line))
	if err != nil {
		return "", DropMalformed
	}

	for _, field := range fields {
		if _, ok := e.skipIfContains[field.Name]; ok {
			return "", DropPolicy
		}
	}

	kept := make([]Field, 0, len(fields))
	for _, field := range fields {
		if _, ok := e.skipFields[field.Name]; ok {
			continue
		}
		switch {
		case e.isFullMask(field.Name):
			field.Value = jsonString(e.redaction)
		case e.hasPartialRule(field.Name):
			field.Value = e.applyPartial(field)
		case field.Name == e.levelField:
			field.Value = e.normalizeLevel(field.Value)
		}
		kept = append(kept, field)
	}

	encoded, err := encodeRecord(kept)
	if err != nil {
		return "", DropError
	}
	return encoded, DropNone
}

func (e *Engine) isFullMask(name string) bool {
	_, ok := e.fullMask[name]
	return ok
}

func (e *Engine) hasPartialRule(name string) bool {
	_, ok := e.partial[name]
	return ok
}

// applyPartial masks the interior of the field value. Non-string values are
// rendered as their compact JSON text first; a masked value that actually lost
// characters is emitted as a string since the mask characters would not
// survive as any other type.
func (e *Engine) applyPartial(field Field) json.RawMessage {
	rule := e.partial[field.Name]
	value, isString := stringValue(field.Value)
	if !isString {
		value = string(bytes.TrimSpace(field.Value))
	}
	masked := maskInterior(value, rule, e.maskChar)
	if masked == value && !isString {
		// Too short to mask: keep the original value with its type intact.
		return field.Value
	}
	return jsonString(masked)
}

func (e *Engine) normalizeLevel(raw json.RawMessage) json.RawMessage {
	value, ok := stringValue(raw)
	if !ok {
		return raw
	}
	mapped, ok := e.levelMap[e.fold.String(value)]
	if !ok {
		return raw
	}
	return jsonString(mapped)
}

// maskInterior keeps the first visibleStart and last visibleEnd characters and
// replaces everything strictly between with the mask character, one per
// character removed. Values too short to mask meaningfully pass unchanged.
func maskInterior(value string, rule config.PartialRule, maskChar rune) string {
	runes := []rune(value)
	length := len(runes)

	start := rule.VisibleStart
	if start > length {
		start = length
	}
	end := rule.VisibleEnd
	if end > length-start {
		end = length - start
	}

	removed := length - start - end
	if removed <= 0 {
		return value
	}

	masked := make([]rune, 0, length)
	masked = append(masked, runes[:start]...)
	for i := 0; i < removed; i++ {
		masked = append(masked, maskChar)
	}
	masked = append(masked, runes[length-end:]...)
	return string(masked)
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		set[strings.TrimSpace(value)] = struct{}{}
	}
	return set
}
