package user

import (
	"math"
	"sort"
	"strings"
	"time"
)

const recentSignupWindow = 7 * 24 * time.Hour

type AgeStats struct {
	Average float64 `json:"average"`
	Min     int     `json:"min"`
	Max     int     `json:"max"`
	Median  float64 `json:"median"`
}

type Stats struct {
	TotalUsers      int            `json:"totalUsers"`
	AdminCount      int            `json:"adminCount"`
	AdminPercent    int            `json:"adminPercent"`
	RecentSignups   int            `json:"recentSignups"`
	GenderBreakdown map[string]int `json:"genderBreakdown"`
	AgeStats        *AgeStats      `json:"ageStats"`
}

// ComputeStats aggregates the whole user set. Gender values are lower-cased;
// missing or empty genders land in a separate "blank" bucket. AgeStats is nil
// when no user has an age set.
func ComputeStats(users []User, now time.Time) Stats {
	s := Stats{
		TotalUsers:      len(users),
		GenderBreakdown: make(map[string]int),
	}

	ages := make([]int, 0, len(users))

	for _, u := range users {
		if u.IsAdmin {
			s.AdminCount++
		}

		if now.Sub(u.CreatedAt) < recentSignupWindow {
			s.RecentSignups++
		}

		g := "blank"
		if u.Gender != nil && strings.TrimSpace(*u.Gender) != "" {
			g = strings.ToLower(*u.Gender)
		}
		s.GenderBreakdown[g]++

		if u.Age != nil {
			ages = append(ages, *u.Age)
		}
	}

	if s.TotalUsers > 0 {
		s.AdminPercent = int(math.Round(float64(s.AdminCount) / float64(s.TotalUsers) * 100))
	}

	s.AgeStats = computeAgeStats(ages)

	return s
}

func computeAgeStats(ages []int) *AgeStats {
	if len(ages) == 0 {
		return nil
	}

	sort.Ints(ages)

	sum := 0
	for _, a := range ages {
		sum += a
	}

	n := len(ages)

	var median float64

	if n%2 == 1 {
		median = float64(ages[n/2])
	} else {
		median = float64(ages[n/2-1]+ages[n/2]) / 2
	}

	return &AgeStats{
		Average: round1(float64(sum) / float64(n)),
		Min:     ages[0],
		Max:     ages[n-1],
		Median:  round1(median),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
