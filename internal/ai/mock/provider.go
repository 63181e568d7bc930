// Package mock provides a canned AI provider for tests and local runs.
package mock

import (
	"context"
	"encoding/json"

	"callpipe/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (models.GenerateResult, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResult, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return models.GenerateResult{}, nil
}

// NewProvider returns a MockProvider that emits a minimal valid
// analysis document.
func NewProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResult, error) {
			doc := minimalAnalysis()
			raw, err := json.Marshal(doc)
			if err != nil {
				return models.GenerateResult{}, err
			}
			return models.GenerateResult{Text: string(raw), JSON: raw}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns err.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.GenerateResult, error) {
			return models.GenerateResult{}, err
		},
	}
}

func minimalAnalysis() models.AnalysisDocument {
	score := func(v float64) *float64 { return &v }
	criterion := func(code, label string) models.BANTCriterion {
		return models.BANTCriterion{
			Code:     code,
			Label:    label,
			Score:    3,
			MaxScore: 5,
			Bullets: []models.BANTBullet{
				{Type: "positive", Text: "Mock observation for " + label},
			},
		}
	}
	section := func(label, text string) models.EvidenceSection {
		return models.EvidenceSection{
			Label: label,
			Items: []models.EvidenceItem{
				{Text: text, TimeRanges: []models.TimeRange{{Start: "00:00:10", End: "00:00:30"}}},
			},
		}
	}
	blockTitles := []string{
		"1) Rapport and meeting framing",
		"2) Needs and pain discovery",
		"3) Solution presentation",
		"4) Objection handling",
		"5) Closing and next step",
	}
	blocks := make([]models.AnalysisBlock, 0, len(blockTitles))
	for i, title := range blockTitles {
		blocks = append(blocks, models.AnalysisBlock{
			BlockNumber: i + 1,
			Title:       title,
			Sections: models.BlockSections{
				ClientInsights:   section("Client insights", "Mock client insight"),
				SalesGoodActions: section("What went well", "Mock good action"),
				SalesBadActions:  section("What to improve", "Mock bad action"),
				Recommendations: models.RecommendationSection{
					Label: "Recommendations",
					Items: []models.RecommendationItem{{Text: "Mock recommendation", Priority: "medium"}},
				},
			},
		})
	}
	return models.AnalysisDocument{
		Meta: models.AnalysisMeta{
			TranscriptFilename: "mock.json",
			SalesRepName:       "Mock Rep",
			Language:           "ru",
		},
		Headline: models.LabeledText{Label: "Headline", Text: "Mock call analysis"},
		Summary:  models.LabeledText{Label: "Summary", Text: "Mock summary of the call"},
		BANT: models.BANTSummary{
			Label: "BANT",
			Criteria: []models.BANTCriterion{
				criterion("B", "Budget"),
				criterion("A", "Authority"),
				criterion("N", "Need"),
				criterion("T", "Timing"),
			},
			TotalScore: score(12),
			TotalMax:   score(20),
			Verdict:    "Mock verdict: qualified with reservations",
		},
		Blocks: blocks,
	}
}

var _ models.AIProvider = (*MockProvider)(nil)
