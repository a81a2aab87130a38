package analytics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/model"
)

func TestTitleFamily(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Senior Data Engineer", "data engineer"},
		{"Lead Data Engineer (Remote)", "data engineer"},
		{"Staff Software Engineer", "software engineer"},
		{"Data Engineer", "data engineer"},
		{"Head of Platform", "platform"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := TitleFamily(tc.title); got != tc.want {
			t.Fatalf("TitleFamily(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func app(a archetype.Archetype, hash, title string, stage model.OutcomeStage, tags ...string) *model.Application {
	return &model.Application{
		ResumeVariantSent: a,
		ResumeContentHash: hash,
		Title:             title,
		OutcomeStage:      stage,
		TechTags:          tags,
	}
}

func TestAggregate(t *testing.T) {
	apps := []*model.Application{
		// builder variant: 2 positive out of 3
		app(archetype.Builder, "aaaaaaaaaaaaaaaa", "Senior Data Engineer", model.StageInterviewRequest, "python", "kafka"),
		app(archetype.Builder, "aaaaaaaaaaaaaaaa", "Data Engineer", model.StageOffer, "python"),
		app(archetype.Builder, "aaaaaaaaaaaaaaaa", "Lead Data Engineer", model.StageRejected, "python"),

		// fixer variant: 0 positive out of 3
		app(archetype.Fixer, "bbbbbbbbbbbbbbbb", "Data Engineer", model.StageGhost),
		app(archetype.Fixer, "bbbbbbbbbbbbbbbb", "Data Engineer", model.StageRejected),
		app(archetype.Fixer, "bbbbbbbbbbbbbbbb", "Data Engineer", model.StageRejected),

		// pending applications are ignored entirely
		app(archetype.Builder, "aaaaaaaaaaaaaaaa", "Data Engineer", model.StageApplied),
		app(archetype.Builder, "aaaaaaaaaaaaaaaa", "Data Engineer", model.StageAcknowledged),
	}

	report, err := Aggregate(DefaultConfig(), apps)
	require.NoError(t, err)

	require.Len(t, report.ByVariant, 2)
	require.Equal(t, "builder/aaaaaaaaaaaa", report.ByVariant[0].Key)
	require.Equal(t, 3, report.ByVariant[0].Total)
	require.Equal(t, 2, report.ByVariant[0].Positive)
	require.InDelta(t, 2.0/3.0, report.ByVariant[0].PositiveRate, 1e-9)
	require.Equal(t, "fixer/bbbbbbbbbbbb", report.ByVariant[1].Key)
	require.Zero(t, report.ByVariant[1].Positive)

	// python appears 3 times, kafka only once and falls under the floor
	require.Len(t, report.ByKeyword, 1)
	require.Equal(t, "python", report.ByKeyword[0].Key)
	require.Equal(t, 3, report.ByKeyword[0].Total)

	// seniority qualifiers collapse into one family
	require.Len(t, report.ByFamily, 1)
	family := report.ByFamily[0]
	require.Equal(t, "data engineer", family.Key)
	require.Equal(t, 6, family.Total)
	require.Equal(t, archetype.Builder, family.BestVariant)
}

func TestAggregateSparseDataIsEmpty(t *testing.T) {
	apps := []*model.Application{
		app(archetype.Builder, "aaaa", "Data Engineer", model.StageOffer),
	}

	report, err := Aggregate(DefaultConfig(), apps)
	require.NoError(t, err)
	require.Empty(t, report.ByVariant)
	require.Empty(t, report.ByKeyword)
	require.Empty(t, report.ByFamily)
}

func TestAggregateRejectsBadConfig(t *testing.T) {
	_, err := Aggregate(Config{MinSample: 0}, nil)
	require.Error(t, err)
}
