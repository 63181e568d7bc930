package ai

// SchemaName identifies the structured output format sent to providers.
const SchemaName = "sales_call_review_v1"

// Fixed block titles the review must use verbatim.
var BlockTitles = []string{
	"1) Rapport and meeting framing",
	"2) Needs and pain discovery",
	"3) Solution presentation",
	"4) Objection handling",
	"5) Closing and next step",
}

// timecodePattern constrains start/end to literal HH:MM:SS strings.
const timecodePattern = "^[0-9]{2}:[0-9]{2}:[0-9]{2}$"

func obj(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func arr(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func arrN(items map[string]any, minItems, maxItems int) map[string]any {
	return map[string]any{
		"type":     "array",
		"items":    items,
		"minItems": minItems,
		"maxItems": maxItems,
	}
}

func str() map[string]any { return map[string]any{"type": "string"} }

func intRange(minimum, maximum int) map[string]any {
	return map[string]any{"type": "integer", "minimum": minimum, "maximum": maximum}
}

func intConst(v int) map[string]any {
	return map[string]any{"type": "integer", "const": v}
}

// ReviewSchema returns the JSON schema for the analysis document. The shape
// mirrors models.AnalysisDocument and pins the fixed parts of the contract:
// exactly four BANT criteria scored as integers 1..5 out of a constant 5,
// totals 4..20 out of 20, exactly five blocks, and HH:MM:SS timecodes.
func ReviewSchema() map[string]any {
	timecode := map[string]any{"type": "string", "pattern": timecodePattern}

	timeRange := obj(map[string]any{
		"start": timecode,
		"end":   timecode,
	}, "start", "end")

	evidenceItem := obj(map[string]any{
		"text": str(),
		"time_ranges": map[string]any{
			"type":     "array",
			"items":    timeRange,
			"minItems": 1,
		},
		"notes": str(),
	}, "text", "time_ranges", "notes")

	evidenceSection := obj(map[string]any{
		"label": str(),
		"items": arr(evidenceItem),
	}, "label", "items")

	recommendationItem := obj(map[string]any{
		"text":     str(),
		"priority": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
	}, "text", "priority")

	recommendationSection := obj(map[string]any{
		"label": str(),
		"items": arr(recommendationItem),
	}, "label", "items")

	bullet := obj(map[string]any{
		"type": map[string]any{"type": "string", "enum": []string{"positive", "risk"}},
		"text": str(),
	}, "type", "text")

	criterion := obj(map[string]any{
		"code":      map[string]any{"type": "string", "enum": []string{"B", "A", "N", "T"}},
		"label":     map[string]any{"type": "string", "enum": []string{"Budget", "Authority", "Need", "Timing"}},
		"score":     intRange(1, 5),
		"max_score": intConst(5),
		"bullets": map[string]any{
			"type":     "array",
			"items":    bullet,
			"minItems": 1,
		},
	}, "code", "label", "score", "max_score", "bullets")

	bant := obj(map[string]any{
		"label":       str(),
		"criteria":    arrN(criterion, 4, 4),
		"total_score": intRange(4, 20),
		"total_max":   intConst(20),
		"verdict":     str(),
	}, "label", "criteria", "total_score", "total_max", "verdict")

	block := obj(map[string]any{
		"block_number": intRange(1, 5),
		"title": map[string]any{
			"type": "string",
			"enum": BlockTitles,
		},
		"sections": obj(map[string]any{
			"client_insights":    evidenceSection,
			"sales_good_actions": evidenceSection,
			"sales_bad_actions":  evidenceSection,
			"recommendations":    recommendationSection,
		}, "client_insights", "sales_good_actions", "sales_bad_actions", "recommendations"),
	}, "block_number", "title", "sections")

	labeledText := obj(map[string]any{
		"label": str(),
		"text":  str(),
	}, "label", "text")

	meta := obj(map[string]any{
		"transcript_filename": str(),
		"sales_rep_name":      str(),
		"language":            str(),
		"call_id":             str(),
		"source":              str(),
	}, "transcript_filename", "sales_rep_name", "language", "call_id", "source")

	return obj(map[string]any{
		"meta":       meta,
		"headline":   labeledText,
		"summary":    labeledText,
		"bant":       bant,
		"blocks_1_5": arrN(block, 5, 5),
	}, "meta", "headline", "summary", "bant", "blocks_1_5")
}
