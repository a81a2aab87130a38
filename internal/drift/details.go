package drift

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// ShiftDetails is the structured payload attached to a market_shift alert.
type ShiftDetails struct {
	Shift       float64  `mapstructure:"shift"`
	GainedTerms []string `mapstructure:"gained_terms"`
	LostTerms   []string `mapstructure:"lost_terms"`
	WindowDays  int      `mapstructure:"window_days"`
	SampleCount int      `mapstructure:"sample_count"`
}

// StaleDetails is the structured payload attached to a resume_stale alert.
type StaleDetails struct {
	Staleness   float64 `mapstructure:"staleness"`
	ContentHash string  `mapstructure:"content_hash"`
}

// RewriteDetails is the recommendation payload attached to a
// rewrite_triggered alert.
type RewriteDetails struct {
	GainedTerms    []string `mapstructure:"gained_terms"`
	LostTerms      []string `mapstructure:"lost_terms"`
	ResumeHash     string   `mapstructure:"resume_hash"`
	SuggestedFocus string   `mapstructure:"suggested_focus"`
}

func (d ShiftDetails) toMap() map[string]any {
	return map[string]any{
		"shift":        d.Shift,
		"gained_terms": d.GainedTerms,
		"lost_terms":   d.LostTerms,
		"window_days":  d.WindowDays,
		"sample_count": d.SampleCount,
	}
}

func (d StaleDetails) toMap() map[string]any {
	return map[string]any{
		"staleness":    d.Staleness,
		"content_hash": d.ContentHash,
	}
}

func (d RewriteDetails) toMap() map[string]any {
	return map[string]any{
		"gained_terms":    d.GainedTerms,
		"lost_terms":      d.LostTerms,
		"resume_hash":     d.ResumeHash,
		"suggested_focus": d.SuggestedFocus,
	}
}

// DecodeShiftDetails reads a market_shift payload back into its typed form.
func DecodeShiftDetails(payload map[string]any) (*ShiftDetails, error) {
	var details ShiftDetails
	if err := mapstructure.Decode(payload, &details); err != nil {
		return nil, fmt.Errorf("decoding market shift details: %w", err)
	}
	return &details, nil
}

// DecodeRewriteDetails reads a rewrite_triggered payload back into its
// typed form.
func DecodeRewriteDetails(payload map[string]any) (*RewriteDetails, error) {
	var details RewriteDetails
	if err := mapstructure.Decode(payload, &details); err != nil {
		return nil, fmt.Errorf("decoding rewrite details: %w", err)
	}
	return &details, nil
}
