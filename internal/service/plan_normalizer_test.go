package service

import (
	"strings"
	"testing"
)

func TestNormalizePlanProducesExactDayCount(t *testing.T) {
	n := NewPlanNormalizer()
	req := PlanRequest{Type: "learning", Title: "Guitar", TotalDays: 5, DailyMinutes: 60}

	// 只给出第 2、4 天，其余天位应由回退计划补齐
	raws := []RawPlanDay{
		{DayNumber: 2, Title: "Open chords", EstimatedMinutes: 45},
		{DayNumber: 4, Title: "Strumming patterns"},
	}

	specs := n.NormalizePlan(req, raws)
	if len(specs) != 5 {
		t.Fatalf("expected 5 specs, got %d", len(specs))
	}

	for i, spec := range specs {
		if spec.DayNumber != i+1 {
			t.Fatalf("expected day %d at position %d, got %d", i+1, i, spec.DayNumber)
		}
		if len(spec.ActionItems) < 3 {
			t.Fatalf("day %d: expected at least 3 action items, got %d", spec.DayNumber, len(spec.ActionItems))
		}
		if len(spec.Deliverables) < 2 {
			t.Fatalf("day %d: expected at least 2 deliverables, got %d", spec.DayNumber, len(spec.Deliverables))
		}
		if spec.Phase == "" {
			t.Fatalf("day %d: expected phase to be assigned", spec.DayNumber)
		}
	}

	if specs[1].Title != "Open chords" {
		t.Fatalf("expected day 2 title from raw plan, got %q", specs[1].Title)
	}
	if specs[1].EstimatedMinutes != 45 {
		t.Fatalf("expected day 2 minutes 45, got %d", specs[1].EstimatedMinutes)
	}
	// 缺失天位来自回退计划
	if !strings.Contains(specs[0].Title, "Session") {
		t.Fatalf("expected fallback title for day 1, got %q", specs[0].Title)
	}
}

func TestNormalizePlanTruncatesExcessDays(t *testing.T) {
	n := NewPlanNormalizer()
	req := PlanRequest{Type: "learning", Title: "Sketching", TotalDays: 2, DailyMinutes: 30}

	raws := []RawPlanDay{
		{DayNumber: 1, Title: "Lines and shapes"},
		{DayNumber: 2, Title: "Shading"},
		{DayNumber: 3, Title: "Perspective"},
		{DayNumber: 9, Title: "Out of range"},
	}

	specs := n.NormalizePlan(req, raws)
	if len(specs) != 2 {
		t.Fatalf("expected 2 specs, got %d", len(specs))
	}
	if specs[0].Title != "Lines and shapes" || specs[1].Title != "Shading" {
		t.Fatalf("unexpected titles: %q / %q", specs[0].Title, specs[1].Title)
	}
}

func TestNormalizeDayFieldFallbacks(t *testing.T) {
	n := NewPlanNormalizer()
	req := PlanRequest{Type: "learning", Title: "Spanish", TotalDays: 1, DailyMinutes: 60}

	raws := []RawPlanDay{{
		DayNumber:   1,
		Topic:       "Present tense conjugation",
		Description: "Conjugate regular -ar verbs in writing.",
		WhatToLearn: []string{"Conjugation table for 10 verbs", "20 written example sentences"},
	}}

	specs := n.NormalizePlan(req, raws)
	spec := specs[0]

	// title 缺失时取 topic，purpose 缺失时取 description
	if spec.Title != "Present tense conjugation" {
		t.Fatalf("expected topic as title, got %q", spec.Title)
	}
	if spec.Purpose != "Conjugate regular -ar verbs in writing." {
		t.Fatalf("expected description as purpose, got %q", spec.Purpose)
	}
	if spec.Deliverables[0] != "Conjugation table for 10 verbs" {
		t.Fatalf("expected whatToLearn as deliverables, got %q", spec.Deliverables[0])
	}
	if spec.SkillProgression == "" {
		t.Fatal("expected default skill progression")
	}
}

func TestNormalizeDayResetsActionItemState(t *testing.T) {
	n := NewPlanNormalizer()
	req := PlanRequest{Type: "habit", Title: "Running", TotalDays: 1, DailyMinutes: 40}

	raws := []RawPlanDay{{
		DayNumber: 1,
		Title:     "Interval basics",
		ActionItems: []RawActionItem{
			{Text: "Warm up and stretch", Completed: true},
			{Text: "Run 4x400m intervals (20 min)"},
		},
	}}

	spec := n.NormalizePlan(req, raws)[0]
	for _, item := range spec.ActionItems {
		if item.Completed {
			t.Fatalf("expected action item %q to start unchecked", item.Text)
		}
		if !timeTagPattern.MatchString(item.Text) {
			t.Fatalf("expected time tag on %q", item.Text)
		}
	}
	// 已有标注保持不变，缺失的按每日预算四分之一补齐
	if spec.ActionItems[1].Text != "Run 4x400m intervals (20 min)" {
		t.Fatalf("expected existing time tag preserved, got %q", spec.ActionItems[1].Text)
	}
	if !strings.HasSuffix(spec.ActionItems[0].Text, "(10 min)") {
		t.Fatalf("expected (10 min) tag, got %q", spec.ActionItems[0].Text)
	}
}

func TestCleanTextStripsHTMLAndBannedPhrases(t *testing.T) {
	n := NewPlanNormalizer()

	cases := []struct {
		in   string
		want string
	}{
		{"<p>Practice barre chords</p>", "Practice barre chords"},
		{"Practice barre chords. Great job!", "Practice barre chords."},
		{"Build skills in color mixing", "in color mixing"},
		{"You've got this! Write 3 paragraphs", "Write 3 paragraphs"},
		{"<script>alert(1)</script>Review flashcards", "Review flashcards"},
	}

	for _, tc := range cases {
		if got := n.cleanText(tc.in); got != tc.want {
			t.Fatalf("cleanText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCalculatePhases(t *testing.T) {
	cases := []struct {
		totalDays int
		count     int
	}{
		{1, 1},
		{3, 1},
		{5, 2},
		{7, 2},
		{10, 3},
		{14, 3},
		{15, 4},
		{30, 4},
	}

	for _, tc := range cases {
		phases := CalculatePhases(tc.totalDays)
		if len(phases) != tc.count {
			t.Fatalf("totalDays=%d: expected %d phases, got %d", tc.totalDays, tc.count, len(phases))
		}

		// 阶段必须连续且完整覆盖 1..totalDays
		if phases[0].StartDay != 1 {
			t.Fatalf("totalDays=%d: first phase starts at %d", tc.totalDays, phases[0].StartDay)
		}
		for i := 1; i < len(phases); i++ {
			if phases[i].StartDay != phases[i-1].EndDay+1 {
				t.Fatalf("totalDays=%d: gap between phase %d and %d", tc.totalDays, i-1, i)
			}
		}
		if phases[len(phases)-1].EndDay != tc.totalDays {
			t.Fatalf("totalDays=%d: last phase ends at %d", tc.totalDays, phases[len(phases)-1].EndDay)
		}
	}
}

func TestFallbackPlanShape(t *testing.T) {
	req := PlanRequest{Type: "learning", Title: "Photography", TotalDays: 5, DailyMinutes: 60}
	days := FallbackPlan(req)

	if len(days) != 5 {
		t.Fatalf("expected 5 fallback days, got %d", len(days))
	}
	for i, day := range days {
		if day.DayNumber != i+1 {
			t.Fatalf("expected day %d, got %d", i+1, day.DayNumber)
		}
		if !strings.Contains(day.Title, "Photography") {
			t.Fatalf("expected goal title in %q", day.Title)
		}
		if len(day.ActionItems) != 3 {
			t.Fatalf("day %d: expected 3 action items, got %d", day.DayNumber, len(day.ActionItems))
		}
		if len(day.Deliverables) != 3 {
			t.Fatalf("day %d: expected 3 deliverables, got %d", day.DayNumber, len(day.Deliverables))
		}
		if day.EstimatedMinutes != 60 {
			t.Fatalf("day %d: expected 60 minutes, got %d", day.DayNumber, day.EstimatedMinutes)
		}
	}
}

func TestFilterResources(t *testing.T) {
	raws := []RawResource{
		{Type: "video", Title: "Intro", URL: "https://example.com/watch"},
		{Title: "No scheme", URL: "example.com/page"},
		{Title: "Empty URL"},
		{Title: "FTP", URL: "ftp://example.com/file"},
		{Title: "Docs", URL: "http://example.com/docs"},
	}

	resources := filterResources(raws)
	if len(resources) != 2 {
		t.Fatalf("expected 2 valid resources, got %d", len(resources))
	}
	if resources[0].Type != "video" {
		t.Fatalf("expected type preserved, got %q", resources[0].Type)
	}
	// 缺省类型回落为 docs
	if resources[1].Type != "docs" {
		t.Fatalf("expected default type docs, got %q", resources[1].Type)
	}
}
