package metrics

import (
	"testing"

	"github.com/imagiroweb/jira-kpi-dashboard/internal/classify"
	"github.com/imagiroweb/jira-kpi-dashboard/internal/domain"
)

func classified(label string, points float64) domain.WorkItem {
	res := classify.New().Classify(label, "", "")
	return domain.WorkItem{
		Key:         "X-1",
		Type:        "Story",
		RawStatus:   label,
		Category:    res.Category,
		InQA:        res.InQA,
		StoryPoints: &points,
	}
}

func TestFourWayHistogramFromKeywordFallback(t *testing.T) {
	items := []domain.WorkItem{
		classified("Done", 3),
		classified("En cours", 5),
		classified("QA Testing", 2),
	}
	m := ComputeSprintMetrics(items)

	sc := m.StatusCounts
	if sc.Total != 3 || sc.Resolved != 1 || sc.InProgress != 1 || sc.QA != 1 || sc.ToDo != 0 {
		t.Fatalf("Unexpected status counts: %+v", sc)
	}
}

func TestDoneWinsOverQAKeyword(t *testing.T) {
	items := []domain.WorkItem{classified("Done - QA validated", 8)}
	m := ComputeSprintMetrics(items)
	if m.StatusCounts.Resolved != 1 || m.StatusCounts.QA != 0 {
		t.Fatalf("Expected Done bucket to win over QA keyword, got %+v", m.StatusCounts)
	}
}

func TestUnknownCountsInTotalOnly(t *testing.T) {
	items := []domain.WorkItem{
		classified("Done", 3),
		classified("Mystery State", 5),
	}
	m := ComputeSprintMetrics(items)

	if m.StatusCounts.Total != 2 {
		t.Errorf("Expected total 2, got %d", m.StatusCounts.Total)
	}
	named := m.StoryPointsByState.ToDo + m.StoryPointsByState.InProgress +
		m.StoryPointsByState.QA + m.StoryPointsByState.Resolved
	if named > m.StoryPointsByState.Total {
		t.Errorf("Named buckets %f exceed total %f", named, m.StoryPointsByState.Total)
	}
	if named != 3 || m.StoryPointsByState.Total != 8 {
		t.Errorf("Expected 3 named of 8 total points, got %f of %f", named, m.StoryPointsByState.Total)
	}
}

func TestCompletionRate(t *testing.T) {
	if m := ComputeSprintMetrics(nil); m.CompletionRate != 0 {
		t.Errorf("Expected 0 rate for empty sprint, got %f", m.CompletionRate)
	}
	items := []domain.WorkItem{
		classified("Done", 1),
		classified("Done", 1),
		classified("To Do", 1),
		classified("To Do", 1),
	}
	if m := ComputeSprintMetrics(items); m.CompletionRate != 0.5 {
		t.Errorf("Expected 0.5 rate, got %f", m.CompletionRate)
	}
}

func TestTypeBreakdown(t *testing.T) {
	bugPoints := 2.0
	items := []domain.WorkItem{
		classified("Done", 3),
		classified("To Do", 5),
		{Key: "X-9", Type: "Bug", Category: domain.CategoryDone, StoryPoints: &bugPoints},
	}
	m := ComputeSprintMetrics(items)

	if len(m.ByType) != 2 {
		t.Fatalf("Expected 2 types, got %d", len(m.ByType))
	}
	if m.ByType[0].ItemType != "Story" || m.ByType[0].Count != 2 || m.ByType[0].DoneCount != 1 {
		t.Errorf("Unexpected story breakdown: %+v", m.ByType[0])
	}
	if m.ByType[1].ItemType != "Bug" || m.ByType[1].StoryPoints != 2 || m.ByType[1].DoneCount != 1 {
		t.Errorf("Unexpected bug breakdown: %+v", m.ByType[1])
	}
}

func TestComputeVelocity(t *testing.T) {
	v := ComputeVelocity(20, 15)
	if v.CompletionRate != 75 {
		t.Errorf("Expected 75%%, got %d", v.CompletionRate)
	}
	if v.Variance != -5 || v.VariancePercent != -25 {
		t.Errorf("Unexpected variance: %+v", v)
	}
}

func TestComputeVelocityZeroCommitted(t *testing.T) {
	v := ComputeVelocity(0, 12)
	if v.CompletionRate != 0 || v.VariancePercent != 0 {
		t.Fatalf("Expected guarded zero rates, got %+v", v)
	}
}

func TestAverageVelocity(t *testing.T) {
	if got := AverageVelocity(nil); got != 0 {
		t.Errorf("Expected 0 for empty input, got %f", got)
	}
	vs := []VelocityMetrics{
		{CompletedPoints: 10},
		{CompletedPoints: 13},
		{CompletedPoints: 11},
	}
	if got := AverageVelocity(vs); got != 11.3 {
		t.Errorf("Expected 11.3, got %f", got)
	}
}

func TestVelocityTrendNeedsThreeSamples(t *testing.T) {
	v := func(p float64) VelocityMetrics { return VelocityMetrics{CompletedPoints: p} }
	if got := VelocityTrend(nil); got != TrendStable {
		t.Errorf("Expected stable for empty, got %s", got)
	}
	if got := VelocityTrend([]VelocityMetrics{v(10)}); got != TrendStable {
		t.Errorf("Expected stable for one sample, got %s", got)
	}
	if got := VelocityTrend([]VelocityMetrics{v(10), v(30)}); got != TrendStable {
		t.Errorf("Expected stable for two samples, got %s", got)
	}
}

func TestVelocityTrendThresholds(t *testing.T) {
	v := func(p float64) VelocityMetrics { return VelocityMetrics{CompletedPoints: p} }
	cases := []struct {
		name   string
		points []float64
		want   TrendDirection
	}{
		{"rising past +10%", []float64{10, 12, 12}, TrendIncreasing},
		{"falling past -10%", []float64{10, 9, 8}, TrendDecreasing},
		{"within band", []float64{10, 14, 10.5}, TrendStable},
		{"exactly +10% stays stable", []float64{10, 11, 11}, TrendStable},
		{"only last three considered", []float64{100, 10, 12, 12}, TrendIncreasing},
		{"zero baseline rising", []float64{0, 5, 8}, TrendIncreasing},
		{"zero baseline flat", []float64{0, 5, 0}, TrendStable},
	}
	for _, tc := range cases {
		var vs []VelocityMetrics
		for _, p := range tc.points {
			vs = append(vs, v(p))
		}
		if got := VelocityTrend(vs); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
