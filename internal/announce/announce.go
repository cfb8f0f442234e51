// Package announce renders round transitions as chat-friendly text.
package announce

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"rapid-trivia-service/internal/domain"
	"rapid-trivia-service/internal/matching"
)

const (
	// closeFeedbackFloor is the confidence above which a wrong answer earns a hint.
	closeFeedbackFloor = 0.6
	// DefaultEncouragementChance is how often a miss earns a cheer.
	DefaultEncouragementChance = 0.3
)

var (
	streakLines = map[int][]string{
		3:  {"Nice streak going! 🔥", "You're on fire! 🎯", "Three in a row! 💪"},
		5:  {"Wow! 5 correct answers in a row! Looks like you're enjoying the game @%s! ☕"},
		7:  {"INCREDIBLE! 7 streak! You're absolutely crushing it! 🏆", "Seven straight! Are you even human? 🤖"},
		10: {"LEGENDARY! 10 in a row! Hall of Fame material! 👑", "Perfect 10! Time to go pro! 🎓"},
	}

	encouragementLines = []string{
		"Don't give up! The next one might be easier! 💪",
		"Good try! Learning is part of the fun! 📚",
		"Close one! You're getting better! 🎯",
		"Keep going! Every expert was once a beginner! 🌟",
	}

	coffeeLines = []string{
		"Then buy me a coffee! ☕ (Just kidding... or am I? 😏)",
		"Coffee donations accepted! Just kidding, keep playing! ☕😄",
		"I run on coffee and good vibes! Keep the questions coming! ☕✨",
	}

	feedbackLines = []string{
		"Close! You got %s of it right. Keep trying! 💪",
		"Almost there! %s similarity to the correct answer. 🎯",
		"You're on the right track! %s match. Don't give up! 🌟",
	}

	podium    = []string{"🥇", "🥈", "🥉"}
	runnersUp = []string{"🥈", "🥉", "🏅"}
	titleCase = cases.Title(language.English)
)

// FormatterOption customizes a Formatter.
type FormatterOption func(*Formatter)

// WithEncouragementChance sets the probability in [0,1] that Encouragement fires.
func WithEncouragementChance(p float64) FormatterOption {
	return func(f *Formatter) { f.encouragementChance = math.Max(0, math.Min(1, p)) }
}

// Formatter builds announcement text. It is safe for concurrent use.
type Formatter struct {
	interlude           time.Duration
	encouragementChance float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewFormatter returns a formatter; rnd picks between equivalent phrasings.
func NewFormatter(interlude time.Duration, rnd *rand.Rand, opts ...FormatterOption) *Formatter {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	f := &Formatter{interlude: interlude, encouragementChance: DefaultEncouragementChance, rnd: rnd}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Formatter) pick(lines []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lines[f.rnd.Intn(len(lines))]
}

// QuestionPost announces a new round together with the current leaders.
func (f *Formatter) QuestionPost(round domain.RoundSnapshot, leaders []domain.PlayerAggregate) string {
	q := round.Question
	kind := "Open Answer"
	if q.Kind == domain.AnswerKindBoolean {
		kind = "True/False"
	}
	limit := int(math.Round(round.Deadline.Sub(round.StartTime).Seconds()))

	var b strings.Builder
	b.WriteString("🧠 **RAPID TRIVIA!** 🧠\n\n")
	if q.Category != "" {
		fmt.Fprintf(&b, "**Category:** %s\n", q.Category)
	}
	if q.Difficulty != "" {
		fmt.Fprintf(&b, "**Difficulty:** %s\n", titleCase.String(string(q.Difficulty)))
	}
	fmt.Fprintf(&b, "**Type:** %s\n\n", kind)
	fmt.Fprintf(&b, "**Question:** %s\n\n", q.Text)
	b.WriteString("⚡ **SPEED ROUND:** Type your answer!\n")
	fmt.Fprintf(&b, "⏱️ **Time limit:** %d seconds\n", limit)
	b.WriteString("💡 *Flexible matching - variations of the correct answer are accepted!*\n\n")
	b.WriteString("🏆 **Current Leaderboard:**\n")
	b.WriteString(f.Leaderboard(leaders))
	return b.String()
}

// Leaderboard lists players with their points and best streak.
func (f *Formatter) Leaderboard(leaders []domain.PlayerAggregate) string {
	if len(leaders) == 0 {
		return "*No players yet! Be the first!*"
	}
	lines := make([]string, 0, len(leaders))
	for i, p := range leaders {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(podium) {
			rank = podium[i]
		}
		lines = append(lines, fmt.Sprintf("%s %s: %d points (Max streak: %d)", rank, p.PlayerID, p.TotalScore, p.MaxStreak))
	}
	return strings.Join(lines, "\n")
}

// Celebration congratulates the winner of a resolved round.
func (f *Formatter) Celebration(summary domain.RoundSummary, winner *domain.PlayerAggregate) string {
	w := summary.Winner
	if w == nil {
		return f.TimeUp(summary)
	}

	var b strings.Builder
	b.WriteString("🎉 **CORRECT!** 🎉\n\n")
	fmt.Fprintf(&b, "**Winner:** %s\n", w.Submission.SubmitterID)
	fmt.Fprintf(&b, "**Your Answer:** %s\n", strings.TrimSpace(w.Submission.RawText))
	fmt.Fprintf(&b, "**Correct Answer:** %s\n", summary.Round.Question.ReferenceAnswer)
	fmt.Fprintf(&b, "**Match Type:** %s\n", summary.Explanation)
	fmt.Fprintf(&b, "**Points earned:** %d (⚡%.1fs)\n", w.Reward, w.ResponseTime.Seconds())
	if winner != nil {
		fmt.Fprintf(&b, "**Current streak:** %d 🔥\n", winner.CurrentStreak)
	}
	b.WriteString(f.TopMatches(summary.NearMisses))
	if winner != nil {
		if line, ok := f.StreakShoutout(w.Submission.SubmitterID, winner.CurrentStreak); ok {
			fmt.Fprintf(&b, "\n*%s*\n", line)
		}
	}
	fmt.Fprintf(&b, "\n---\n*⏱️ Next question in %d seconds!*", f.interludeSeconds())
	return b.String()
}

// TimeUp reveals the answer of a round nobody won.
func (f *Formatter) TimeUp(summary domain.RoundSummary) string {
	var b strings.Builder
	b.WriteString("⏰ **TIME'S UP!** ⏰\n\n")
	fmt.Fprintf(&b, "**Correct Answer:** %s\n\n", summary.Round.Question.ReferenceAnswer)
	b.WriteString("*No one got it this time! Don't worry, here comes the next one!*\n")
	b.WriteString(f.TopMatches(summary.NearMisses))
	fmt.Fprintf(&b, "\n---\n*Next question in %d seconds...*", f.interludeSeconds())
	return b.String()
}

// TopMatches lists the closest non-winning answers, or nothing when there are none.
func (f *Formatter) TopMatches(misses []domain.NearMiss) string {
	if len(misses) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n**🎯 Top Matching Answers:**\n")
	for i, m := range misses {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(runnersUp) {
			rank = runnersUp[i]
		}
		fmt.Fprintf(&b, "%s %s: \"%s\" - %s\n", rank, m.SubmitterID, strings.TrimSpace(m.RawText), matching.Explain(m.MatchType, m.Confidence))
	}
	return b.String()
}

// StreakShoutout celebrates streaks of 3, 5, 7 and 10, then every fifth win after 10.
func (f *Formatter) StreakShoutout(player string, streak int) (string, bool) {
	if lines, ok := streakLines[streak]; ok {
		line := f.pick(lines)
		if strings.Contains(line, "%s") {
			line = fmt.Sprintf(line, player)
		}
		return line, true
	}
	if streak > 10 && streak%5 == 0 {
		return fmt.Sprintf("🔥 %d STRAIGHT! %s is unstoppable! 🔥", streak, player), true
	}
	return "", false
}

// CloseFeedback hints that a wrong answer was nearly right.
func (f *Formatter) CloseFeedback(confidence float64) (string, bool) {
	if confidence <= closeFeedbackFloor {
		return "", false
	}
	return fmt.Sprintf(f.pick(feedbackLines), matching.Percent(confidence)), true
}

// Encouragement occasionally cheers up a player after a miss.
func (f *Formatter) Encouragement() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rnd.Float64() >= f.encouragementChance {
		return "", false
	}
	return encouragementLines[f.rnd.Intn(len(encouragementLines))], true
}

// ChatReply answers messages saying the player enjoys the game.
func (f *Formatter) ChatReply(text string) (string, bool) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "yes") {
		return "", false
	}
	for _, word := range []string{"enjoy", "fun", "like", "love"} {
		if strings.Contains(lower, word) {
			return f.pick(coffeeLines), true
		}
	}
	return "", false
}

func (f *Formatter) interludeSeconds() int {
	return int(math.Round(f.interlude.Seconds()))
}
