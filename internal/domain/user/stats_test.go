package user_test

import (
	"testing"
	"time"

	"userhub/internal/domain/user"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestComputeStatsAges(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name       string
		ages       []int
		wantAvg    float64
		wantMin    int
		wantMax    int
		wantMedian float64
	}{
		{
			name:       "even count median averages middle pair",
			ages:       []int{20, 30, 40, 50},
			wantAvg:    35.0,
			wantMin:    20,
			wantMax:    50,
			wantMedian: 35.0,
		},
		{
			name:       "odd count median is middle value",
			ages:       []int{18, 25, 99},
			wantAvg:    47.3,
			wantMin:    18,
			wantMax:    99,
			wantMedian: 25.0,
		},
		{
			name:       "single age",
			ages:       []int{33},
			wantAvg:    33.0,
			wantMin:    33,
			wantMax:    33,
			wantMedian: 33.0,
		},
		{
			name:       "median rounds to one decimal",
			ages:       []int{20, 25},
			wantAvg:    22.5,
			wantMin:    20,
			wantMax:    25,
			wantMedian: 22.5,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := make([]user.User, 0, len(tc.ages))

			for _, a := range tc.ages {
				users = append(users, user.User{Username: "u", Age: intPtr(a), CreatedAt: now})
			}

			stats := user.ComputeStats(users, now)

			if stats.AgeStats == nil {
				t.Fatal("expected ageStats, got nil")
			}

			got := stats.AgeStats

			if got.Average != tc.wantAvg {
				t.Errorf("average = %v, want %v", got.Average, tc.wantAvg)
			}
			if got.Min != tc.wantMin {
				t.Errorf("min = %d, want %d", got.Min, tc.wantMin)
			}
			if got.Max != tc.wantMax {
				t.Errorf("max = %d, want %d", got.Max, tc.wantMax)
			}
			if got.Median != tc.wantMedian {
				t.Errorf("median = %v, want %v", got.Median, tc.wantMedian)
			}
		})
	}
}

func TestComputeStatsNoAges(t *testing.T) {
	now := time.Now().UTC()

	users := []user.User{
		{Username: "a", CreatedAt: now},
		{Username: "b", CreatedAt: now},
	}

	stats := user.ComputeStats(users, now)

	if stats.AgeStats != nil {
		t.Fatalf("expected nil ageStats, got %+v", stats.AgeStats)
	}
}

func TestComputeStatsGenderBreakdown(t *testing.T) {
	now := time.Now().UTC()

	users := []user.User{
		{Username: "a", Gender: strPtr("male"), CreatedAt: now},
		{Username: "b", Gender: strPtr("Male"), CreatedAt: now},
		{Username: "c", Gender: strPtr("female"), CreatedAt: now},
		{Username: "d", CreatedAt: now},
		{Username: "e", Gender: strPtr(""), CreatedAt: now},
	}

	stats := user.ComputeStats(users, now)

	if got := stats.GenderBreakdown["male"]; got != 2 {
		t.Errorf("male = %d, want 2", got)
	}
	if got := stats.GenderBreakdown["female"]; got != 1 {
		t.Errorf("female = %d, want 1", got)
	}
	if got := stats.GenderBreakdown["blank"]; got != 2 {
		t.Errorf("blank = %d, want 2", got)
	}
}

func TestComputeStatsAdminsAndSignups(t *testing.T) {
	now := time.Now().UTC()

	users := []user.User{
		{Username: "admin", IsAdmin: true, CreatedAt: now.Add(-time.Hour)},
		{Username: "old", CreatedAt: now.Add(-8 * 24 * time.Hour)},
		{Username: "fresh", CreatedAt: now.Add(-6 * 24 * time.Hour)},
	}

	stats := user.ComputeStats(users, now)

	if stats.TotalUsers != 3 {
		t.Errorf("totalUsers = %d, want 3", stats.TotalUsers)
	}
	if stats.AdminCount != 1 {
		t.Errorf("adminCount = %d, want 1", stats.AdminCount)
	}
	// 1/3 rounds to 33
	if stats.AdminPercent != 33 {
		t.Errorf("adminPercent = %d, want 33", stats.AdminPercent)
	}
	// "admin" and "fresh" are inside the 7 day window
	if stats.RecentSignups != 2 {
		t.Errorf("recentSignups = %d, want 2", stats.RecentSignups)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := user.ComputeStats(nil, time.Now().UTC())

	if stats.TotalUsers != 0 || stats.AdminPercent != 0 {
		t.Errorf("unexpected stats for empty set: %+v", stats)
	}
	if stats.AgeStats != nil {
		t.Error("expected nil ageStats for empty set")
	}
}
