package report

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	model "github.com/articulotor/backend/internal/model/session"
)

// ErrNoAnalyses reports a feedback request for a session that never
// recorded a scored turn.
var ErrNoAnalyses = errors.New("no analysis data available")

const fallbackClosingMessage = "Great effort! Keep practicing to improve your communication skills."

// ClosingWriter produces the closing narrative of a feedback report.
// Implementations may fail; the report falls back to a generic message.
type ClosingWriter interface {
	ClosingMessage(ctx context.Context, subScores map[string]int, fillerWords, strengths, improvements []string) (string, error)
}

// Service computes cross-session statistics and per-session feedback.
// Pure aggregation over snapshots; it never mutates session state.
type Service struct {
	writer ClosingWriter
}

// NewService returns a report service. writer may be nil, in which case
// every closing message is the generic fallback.
func NewService(writer ClosingWriter) *Service {
	return &Service{writer: writer}
}

// SubScores carries the four per-dimension scores.
type SubScores struct {
	Clarity        int `json:"clarity"`
	Structure      int `json:"structure"`
	Persuasiveness int `json:"persuasiveness"`
	Vocabulary     int `json:"vocabulary"`
}

// Feedback is the aggregate report for one ended session.
type Feedback struct {
	OverallScore   int       `json:"overall_score"`
	SubScores      SubScores `json:"sub_scores"`
	FillerWords    []string  `json:"filler_words"`
	Strengths      []string  `json:"strengths"`
	Improvements   []string  `json:"improvements"`
	TurnCount      int       `json:"turn_count"`
	ClosingMessage string    `json:"closing_message"`
}

// Feedback aggregates a session's turn analyses: arithmetic mean per
// dimension, overall mean of the four, order-preserving deduplication
// of strengths and improvement areas.
func (s *Service) Feedback(ctx context.Context, sess *model.Session) (Feedback, error) {
	analyses := sess.Analyses
	if len(analyses) == 0 {
		return Feedback{}, ErrNoAnalyses
	}

	var clarity, structure, persuasiveness, vocabulary float64
	var fillerWords, strengths, improvements []string
	for _, a := range analyses {
		clarity += float64(a.ClarityScore)
		structure += float64(a.StructureScore)
		persuasiveness += float64(a.PersuasivenessScore)
		vocabulary += float64(a.VocabularyScore)
		fillerWords = append(fillerWords, a.FillerWords...)
		strengths = append(strengths, a.Strengths...)
		improvements = append(improvements, a.AreasToImprove...)
	}

	total := float64(len(analyses))
	clarity /= total
	structure /= total
	persuasiveness /= total
	vocabulary /= total
	overall := (clarity + structure + persuasiveness + vocabulary) / 4

	feedback := Feedback{
		OverallScore: int(math.Round(overall)),
		SubScores: SubScores{
			Clarity:        int(math.Round(clarity)),
			Structure:      int(math.Round(structure)),
			Persuasiveness: int(math.Round(persuasiveness)),
			Vocabulary:     int(math.Round(vocabulary)),
		},
		FillerWords:  emptyIfNil(fillerWords),
		Strengths:    dedupePreservingOrder(strengths),
		Improvements: dedupePreservingOrder(improvements),
		TurnCount:    len(analyses),
	}

	feedback.ClosingMessage = s.closingMessage(ctx, feedback)
	return feedback, nil
}

// closingMessage delegates the narrative to the writer; an upstream
// failure degrades to the fixed encouragement string, never an error.
func (s *Service) closingMessage(ctx context.Context, feedback Feedback) string {
	if s.writer == nil {
		return fallbackClosingMessage
	}

	subScores := map[string]int{
		"clarity":        feedback.SubScores.Clarity,
		"structure":      feedback.SubScores.Structure,
		"persuasiveness": feedback.SubScores.Persuasiveness,
		"vocabulary":     feedback.SubScores.Vocabulary,
	}
	message, err := s.writer.ClosingMessage(ctx, subScores, feedback.FillerWords, feedback.Strengths, feedback.Improvements)
	if err != nil {
		log.Printf("[report] failed to generate closing message: %v", err)
		return fallbackClosingMessage
	}
	return message
}

func dedupePreservingOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	unique := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// RecentSession is the dashboard's per-session summary line.
type RecentSession struct {
	ID              string     `json:"id"`
	ScenarioID      string     `json:"scenario_id"`
	Mode            model.Mode `json:"mode"`
	Score           int        `json:"score"`
	Turns           int        `json:"turns"`
	DurationMinutes float64    `json:"duration_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Dashboard is the aggregate view across all ended sessions.
type Dashboard struct {
	CurrentStreak    int             `json:"current_streak"`
	AvgScore         int             `json:"avg_score"`
	TotalSessions    int             `json:"total_sessions"`
	TotalHoursSpoken float64         `json:"total_hours_spoken"`
	FillerWordTrend  int             `json:"filler_word_trend"`
	SkillProgression SubScores       `json:"skill_progression"`
	CrutchWords      map[string]int  `json:"crutch_words"`
	RecentSessions   []RecentSession `json:"recent_sessions"`
}

const (
	recentSessionLimit      = 10
	estimatedMinutesPerTurn = 2
)

// Dashboard computes cross-session statistics. sessions are expected
// newest-first, as ListAll returns them; only ended sessions count.
// now anchors the streak calculation.
func (s *Service) Dashboard(sessions []*model.Session, now time.Time) Dashboard {
	var ended []*model.Session
	for _, sess := range sessions {
		if sess.Status == model.StatusEnded {
			ended = append(ended, sess)
		}
	}

	dashboard := Dashboard{
		CrutchWords:    map[string]int{},
		RecentSessions: []RecentSession{},
	}
	if len(ended) == 0 {
		return dashboard
	}

	var (
		totalScore   float64
		totalTurns   int
		latestTotal  SubScores
		fillerCounts []int
	)

	for _, sess := range ended {
		if len(sess.Analyses) == 0 {
			continue
		}

		var sessionScore float64
		sessionFillers := 0
		for _, a := range sess.Analyses {
			sessionScore += float64(a.ClarityScore+a.StructureScore+a.PersuasivenessScore+a.VocabularyScore) / 4
			for _, word := range a.FillerWords {
				dashboard.CrutchWords[strings.ToLower(word)]++
			}
			sessionFillers += len(a.FillerWords)
		}
		sessionScore /= float64(len(sess.Analyses))
		totalScore += sessionScore
		totalTurns += len(sess.Analyses)
		fillerCounts = append(fillerCounts, sessionFillers)

		// Skill progression tracks where the user currently stands, so
		// it reads each session's latest turn, not the session average.
		latest := sess.Analyses[len(sess.Analyses)-1]
		latestTotal.Clarity += latest.ClarityScore
		latestTotal.Structure += latest.StructureScore
		latestTotal.Persuasiveness += latest.PersuasivenessScore
		latestTotal.Vocabulary += latest.VocabularyScore

		if len(dashboard.RecentSessions) < recentSessionLimit {
			dashboard.RecentSessions = append(dashboard.RecentSessions, RecentSession{
				ID:              sess.ID,
				ScenarioID:      sess.ScenarioID,
				Mode:            sess.Mode,
				Score:           int(math.Round(sessionScore)),
				Turns:           len(sess.Analyses),
				DurationMinutes: durationMinutes(sess),
				CreatedAt:       sess.CreatedAt,
			})
		}
	}

	numSessions := float64(len(ended))
	dashboard.TotalSessions = len(ended)
	dashboard.AvgScore = int(math.Round(totalScore / numSessions))
	dashboard.SkillProgression = SubScores{
		Clarity:        int(math.Round(float64(latestTotal.Clarity) / numSessions)),
		Structure:      int(math.Round(float64(latestTotal.Structure) / numSessions)),
		Persuasiveness: int(math.Round(float64(latestTotal.Persuasiveness) / numSessions)),
		Vocabulary:     int(math.Round(float64(latestTotal.Vocabulary) / numSessions)),
	}
	dashboard.TotalHoursSpoken = math.Round(float64(totalTurns*estimatedMinutesPerTurn)/60*10) / 10
	dashboard.CurrentStreak = currentStreak(ended, now)

	// fillerCounts was collected newest-first; the trend is defined over
	// sessions ordered oldest to newest.
	reverseInts(fillerCounts)
	dashboard.FillerWordTrend = fillerWordTrend(fillerCounts)

	return dashboard
}

func durationMinutes(sess *model.Session) float64 {
	if sess.EndedAt == nil {
		return 0
	}
	minutes := sess.EndedAt.Sub(sess.CreatedAt).Minutes()
	return math.Round(minutes*10) / 10
}

// currentStreak counts consecutive calendar days, walking backward from
// now, that contain at least one ended session's creation date. Broken
// when the most recent session day is older than yesterday.
func currentStreak(ended []*model.Session, now time.Time) int {
	daySet := make(map[time.Time]struct{})
	for _, sess := range ended {
		daySet[dateOf(sess.CreatedAt)] = struct{}{}
	}
	if len(daySet) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	yesterday := dateOf(now).AddDate(0, 0, -1)
	if days[0].Before(yesterday) {
		return 0
	}

	streak := 1
	for i := 0; i < len(days)-1; i++ {
		if days[i].AddDate(0, 0, -1).Equal(days[i+1]) {
			streak++
		} else {
			break
		}
	}
	return streak
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// fillerWordTrend returns the percentage change of the newer half's mean
// filler count versus the older half's. counts must be ordered oldest
// to newest.
func fillerWordTrend(counts []int) int {
	if len(counts) < 2 {
		return 0
	}

	mid := len(counts) / 2
	olderMean := meanInts(counts[:mid])
	if olderMean == 0 {
		return 0
	}
	newerMean := meanInts(counts[mid:])

	return int(math.Round((newerMean - olderMean) / olderMean * 100))
}

func meanInts(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

func reverseInts(values []int) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}
