package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisDocument is the structured output of the analyze stage, decoded
// from the analysis artifact. Field names mirror the generation schema.
type AnalysisDocument struct {
	Meta     AnalysisMeta    `json:"meta"`
	Headline LabeledText     `json:"headline"`
	Summary  LabeledText     `json:"summary"`
	BANT     BANTSummary     `json:"bant"`
	Blocks   []AnalysisBlock `json:"blocks_1_5"`
}

type AnalysisMeta struct {
	TranscriptFilename string `json:"transcript_filename"`
	SalesRepName       string `json:"sales_rep_name"`
	Language           string `json:"language"`
	CallID             string `json:"call_id,omitempty"`
	Source             string `json:"source,omitempty"`
}

type LabeledText struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// BANTSummary is the Budget/Authority/Need/Timing scorecard. Totals are
// pointers so that absent values fail validation instead of reading as zero.
type BANTSummary struct {
	Label      string          `json:"label"`
	Criteria   []BANTCriterion `json:"criteria"`
	TotalScore *float64        `json:"total_score"`
	TotalMax   *float64        `json:"total_max"`
	Verdict    string          `json:"verdict"`
}

type BANTCriterion struct {
	Code     string       `json:"code"`
	Label    string       `json:"label"`
	Score    float64      `json:"score"`
	MaxScore float64      `json:"max_score"`
	Bullets  []BANTBullet `json:"bullets"`
}

type BANTBullet struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type AnalysisBlock struct {
	BlockNumber int           `json:"block_number"`
	Title       string        `json:"title"`
	Sections    BlockSections `json:"sections"`
}

type BlockSections struct {
	ClientInsights   EvidenceSection       `json:"client_insights"`
	SalesGoodActions EvidenceSection       `json:"sales_good_actions"`
	SalesBadActions  EvidenceSection       `json:"sales_bad_actions"`
	Recommendations  RecommendationSection `json:"recommendations"`
}

type EvidenceSection struct {
	Label string         `json:"label"`
	Items []EvidenceItem `json:"items"`
}

type EvidenceItem struct {
	Text       string      `json:"text"`
	TimeRanges []TimeRange `json:"time_ranges"`
	Notes      string      `json:"notes,omitempty"`
}

// TimeRange carries HH:MM:SS boundaries as literal strings; they round-trip
// through persistence without numeric coercion.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type RecommendationSection struct {
	Label string               `json:"label"`
	Items []RecommendationItem `json:"items"`
}

type RecommendationItem struct {
	Text     string `json:"text"`
	Priority string `json:"priority,omitempty"`
}

// Validate checks the fields persist_analysis requires before it opens a
// transaction. A missing field is a hard validation error.
func (d *AnalysisDocument) Validate() error {
	if strings.TrimSpace(d.Meta.TranscriptFilename) == "" {
		return errors.New("analysis meta.transcript_filename is required")
	}
	if strings.TrimSpace(d.Meta.SalesRepName) == "" {
		return errors.New("analysis meta.sales_rep_name is required")
	}
	if strings.TrimSpace(d.Meta.Language) == "" {
		return errors.New("analysis meta.language is required")
	}
	if strings.TrimSpace(d.Headline.Text) == "" {
		return errors.New("analysis headline.text is required")
	}
	if strings.TrimSpace(d.Summary.Text) == "" {
		return errors.New("analysis summary.text is required")
	}
	if d.BANT.TotalScore == nil || d.BANT.TotalMax == nil {
		return errors.New("analysis bant totals are required")
	}
	if strings.TrimSpace(d.BANT.Verdict) == "" {
		return errors.New("analysis bant.verdict is required")
	}
	return nil
}

// CallAnalysis is the persisted analysis header row.
type CallAnalysis struct {
	ID                  uuid.UUID `db:"id"                    json:"id"`
	OrgID               uuid.UUID `db:"org_id"                json:"org_id"`
	CallID              uuid.UUID `db:"call_id"               json:"call_id"`
	AnalysisStoragePath string    `db:"analysis_storage_path" json:"analysis_storage_path"`
	TranscriptFilename  string    `db:"transcript_filename"   json:"transcript_filename"`
	SalesRepName        string    `db:"sales_rep_name"        json:"sales_rep_name"`
	Language            string    `db:"language"              json:"language"`
	Source              *string   `db:"source"                json:"source,omitempty"`
	HeadlineText        string    `db:"headline_text"         json:"headline_text"`
	SummaryText         string    `db:"summary_text"          json:"summary_text"`
	BANTTotalScore      float64   `db:"bant_total_score"      json:"bant_total_score"`
	BANTTotalMax        float64   `db:"bant_total_max"        json:"bant_total_max"`
	BANTVerdict         string    `db:"bant_verdict"          json:"bant_verdict"`
	CreatedAt           time.Time `db:"created_at"            json:"created_at"`
}
