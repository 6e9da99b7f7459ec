package trainerpresenter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/Memo-KakaoTalk-bot/internal/league"
	"github.com/park285/Memo-KakaoTalk-bot/internal/msgcat"
	"github.com/park285/Memo-KakaoTalk-bot/internal/util"
	"github.com/park285/Memo-KakaoTalk-bot/pkg/memodto"
)

const (
	helpInstruction    = "🧠 Memo trainer commands"
	historyInstruction = "🧾 Recent rounds"
	profileInstruction = "🧠 Trainer profile"
	leagueInstruction  = "🏆 League standings"

	defaultPresetName = "classic"
	missPlaceholder   = "·"
)

// PrefixProvider exposes the Prefix that Kakao messages should use.
type PrefixProvider interface {
	Prefix() string
}

// Formatter renders trainer DTOs into Kakao-friendly text blocks. Wording
// comes from the message catalog; a missing key falls back to terse built-in
// text so a broken override file never blanks a reply.
type Formatter struct {
	prefixProvider PrefixProvider
	cat            *msgcat.Catalog
}

func NewFormatter(provider PrefixProvider, cat *msgcat.Catalog) *Formatter {
	return &Formatter{prefixProvider: provider, cat: cat}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

func (f *Formatter) text(key string, data map[string]any, fallback string) string {
	if f == nil || f.cat == nil {
		return fallback
	}
	out, err := f.cat.Render(key, data)
	if err != nil {
		return fallback
	}
	return out
}

func (f *Formatter) Start(state *memodto.SessionState, resumed bool) string {
	prefix := f.Prefix()
	if state == nil {
		return fmt.Sprintf("Could not open a training session. Send `%smemo start` to try again.", prefix)
	}

	if resumed {
		var sb strings.Builder
		sb.WriteString(f.text("trainer.round_in_progress", map[string]any{"Prefix": prefix},
			fmt.Sprintf("A round is already running. Finish it or send `%smemo exit` first.", prefix)))
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("• Level %d · preset %s", state.Level, formatPreset(state.Preset)))
		return sb.String()
	}

	var sb strings.Builder
	sb.WriteString(f.text("trainer.welcome", nil, "👋 Welcome to the 3×3 blind trainer."))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("• Preset: %s\n", formatPreset(state.Preset)))
	sb.WriteString(fmt.Sprintf("• Level: %d\n", state.Level))
	if plan := formatGroupPlan(state.Groups); plan != "" {
		sb.WriteString(fmt.Sprintf("• Strings: %s\n", plan))
	}
	if info := formatProfileSummary(state.Profile); info != "" {
		sb.WriteString(info)
	}
	sb.WriteString(fmt.Sprintf("\nDeal a round with `%smemo train`.", prefix))
	return sb.String()
}

// Memo renders the memorization display. When the memo card image is
// attached, the target letters travel in the image only; the text keeps just
// the level header and the confirm hint.
func (f *Formatter) Memo(state *memodto.SessionState) string {
	prefix := f.Prefix()
	if state == nil || len(state.Groups) == 0 {
		return fmt.Sprintf("No memo to show. Send `%smemo train` to deal a round.", prefix)
	}

	header := f.text("trainer.memo.header", map[string]any{"Level": state.Level},
		fmt.Sprintf("*Level %d*", state.Level))
	hint := f.text("trainer.memo.confirm_hint", map[string]any{"Prefix": prefix},
		fmt.Sprintf("Send `%smemo go` when memorized.", prefix))

	if len(state.MemoImage) > 0 {
		return header + "\n\n" + hint
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	for _, g := range state.Groups {
		sb.WriteString(f.text("trainer.memo.group_line", map[string]any{
			"Label":   g.Label,
			"Count":   g.Length,
			"Letters": strings.Join(g.Letters, " "),
		}, fmt.Sprintf("%s (%d): %s", g.Label, g.Length, strings.Join(g.Letters, " "))))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(hint)
	return util.ApplySeeMoreWithHeader(sb.String(), header, "", "")
}

func (f *Formatter) Math(task *memodto.MathTask) string {
	if task == nil {
		return "Could not draw a distraction task. Try again."
	}
	return f.text("trainer.math.prompt", map[string]any{"A": task.A, "B": task.B},
		fmt.Sprintf("🧮 %d + %d = ?", task.A, task.B))
}

// Input turns one state-machine outcome into one reply.
func (f *Formatter) Input(result *memodto.InputResult) string {
	if result == nil {
		return ""
	}

	switch result.Kind {
	case memodto.InputReprompt:
		return f.reprompt(result.Reprompt)
	case memodto.InputMathVerdict:
		verdict := f.text("trainer.math.correct", nil, "✅ Correct!")
		if !result.MathCorrect {
			verdict = f.text("trainer.math.incorrect", map[string]any{"Sum": result.MathExpected},
				fmt.Sprintf("❌ Incorrect (was %d)", result.MathExpected))
		}
		if prompt := f.recallPrompt(result.NextGroup); prompt != "" {
			return verdict + "\n\n" + prompt
		}
		return verdict
	case memodto.InputGroupFeedback:
		feedback := f.formatFeedback(result.Feedback)
		if prompt := f.recallPrompt(result.NextGroup); prompt != "" {
			return feedback + "\n\n" + prompt
		}
		return feedback
	case memodto.InputRoundSummary:
		return f.roundSummary(result)
	default:
		return ""
	}
}

func (f *Formatter) reprompt(rp *memodto.Reprompt) string {
	prefix := f.Prefix()
	if rp == nil {
		return f.NoSession()
	}
	switch rp.Reason {
	case memodto.RepromptInvalidNumber:
		return f.text("trainer.math.invalid", nil, "❌ Send a valid number.")
	case memodto.RepromptWrongLength:
		return f.text("trainer.recall.need", map[string]any{
			"Count": rp.Length,
			"Group": groupWord(rp.Label),
		}, fmt.Sprintf("Need %d letters for %s.", rp.Length, groupWord(rp.Label)))
	case memodto.RepromptConfirmPending:
		return f.text("trainer.confirm_pending", map[string]any{"Prefix": prefix},
			fmt.Sprintf("Memorize the strings above, then send `%smemo go`.", prefix))
	default:
		return f.NoSession()
	}
}

func (f *Formatter) recallPrompt(next *memodto.GroupPrompt) string {
	if next == nil {
		return ""
	}
	return f.text("trainer.recall.prompt", map[string]any{"Group": groupWord(next.Label)},
		fmt.Sprintf("Now send the %s string.", groupWord(next.Label)))
}

func (f *Formatter) roundSummary(result *memodto.InputResult) string {
	var sb strings.Builder
	if feedback := f.formatFeedback(result.Feedback); feedback != "" {
		sb.WriteString(feedback)
		sb.WriteString("\n\n")
	}
	accuracy, solves := 0, 0
	if result.Summary != nil {
		accuracy = result.Summary.Accuracy
		solves = result.Summary.Solves
	}
	sb.WriteString(f.text("trainer.summary.footer", map[string]any{
		"Accuracy": accuracy,
		"Solves":   solves,
	}, fmt.Sprintf("🎯 %d%% accuracy, 🎉 %d full solves.", accuracy, solves)))
	return sb.String()
}

// formatFeedback lines up the target and the guess letter by letter. Hits
// render lowercase in backticks, misses bold, with a dot standing in for a
// missing guess letter.
func (f *Formatter) formatFeedback(fb *memodto.GroupFeedback) string {
	if fb == nil {
		return ""
	}
	target := make([]string, 0, len(fb.Marks))
	guess := make([]string, 0, len(fb.Marks))
	for _, m := range fb.Marks {
		if m.Hit {
			target = append(target, "`"+strings.ToLower(m.Target)+"`")
			guess = append(guess, "`"+strings.ToLower(m.Guess)+"`")
			continue
		}
		target = append(target, "*"+m.Target+"*")
		miss := m.Guess
		if miss == "" {
			miss = missPlaceholder
		}
		guess = append(guess, "*"+strings.ToUpper(miss)+"*")
	}
	return f.text("trainer.recall.feedback", map[string]any{
		"Correct": strings.Join(target, " "),
		"Yours":   strings.Join(guess, " "),
		"Hits":    fb.Hits,
		"Total":   fb.Length,
	}, fmt.Sprintf("Score %d/%d", fb.Hits, fb.Length))
}

func (f *Formatter) Exit() string {
	return f.text("trainer.goodbye", nil, "👋 Goodbye! Come back anytime with 🧠.")
}

func (f *Formatter) Stats(solves int) string {
	return f.text("trainer.stats", map[string]any{"Solves": solves},
		fmt.Sprintf("📊 You have full-solved %d cubes.", solves))
}

func (f *Formatter) ResetDone() string {
	return f.text("trainer.reset_done", nil, "♻️ Stats cleared. Fresh start!")
}

func (f *Formatter) NoSession() string {
	prefix := f.Prefix()
	return f.text("trainer.no_session", map[string]any{"Prefix": prefix},
		fmt.Sprintf("No training session yet. Send `%smemo start` to begin.", prefix))
}

func (f *Formatter) NoActiveRound() string {
	prefix := f.Prefix()
	return f.text("trainer.no_round", map[string]any{"Prefix": prefix},
		fmt.Sprintf("No round in progress. Deal one with `%smemo train`.", prefix))
}

func (f *Formatter) NothingToConfirm() string {
	prefix := f.Prefix()
	return f.text("trainer.no_memo", map[string]any{"Prefix": prefix},
		fmt.Sprintf("Nothing to confirm yet. Deal a round with `%smemo train`.", prefix))
}

func (f *Formatter) RoundInProgress() string {
	prefix := f.Prefix()
	return f.text("trainer.round_in_progress", map[string]any{"Prefix": prefix},
		fmt.Sprintf("A round is already running. Finish it or send `%smemo exit` first.", prefix))
}

func (f *Formatter) UnknownPreset() string {
	return f.text("trainer.preset_unknown", nil, "❌ Unknown preset. Try classic, edges or corners.")
}

func (f *Formatter) PresetUsage() string {
	prefix := f.Prefix()
	return f.text("trainer.preset_usage", map[string]any{"Prefix": prefix},
		fmt.Sprintf("Usage: `%smemo preset <classic|edges|corners>`", prefix))
}

func (f *Formatter) PresetUpdated(profile *memodto.TrainerProfile) string {
	if profile == nil {
		return "Could not update the preferred preset. Try again in a moment."
	}
	return f.text("trainer.preset_updated", map[string]any{"Preset": formatPreset(profile.PreferredPreset)},
		fmt.Sprintf("✅ Preset set to %s.", formatPreset(profile.PreferredPreset)))
}

func (f *Formatter) Help() string {
	prefix := f.Prefix()
	body := f.text("trainer.help", map[string]any{"Prefix": prefix},
		fmt.Sprintf("Send `%smemo start` to begin, `%smemo train` to deal a round.", prefix, prefix))
	content := helpInstruction + "\n\n" + body
	return util.ApplySeeMoreWithHeader(content, helpInstruction, "", "")
}

func (f *Formatter) History(rounds []*memodto.TrainingRound) string {
	if len(rounds) == 0 {
		return fmt.Sprintf("No finished rounds yet. Deal one with `%smemo train`.", f.Prefix())
	}
	var sb strings.Builder
	sb.WriteString(historyInstruction)
	sb.WriteByte('\n')
	for _, round := range rounds {
		sb.WriteString(fmt.Sprintf("• #%d %s %s · %s L%d · %d/%d\n",
			round.ID,
			solveBadge(round.FullSolve),
			formatShortTime(round.EndedAt),
			formatPreset(round.Preset),
			round.Level,
			round.LettersCorrect,
			round.LettersTotal,
		))
		if durationText := formatRoundDuration(round.Duration); durationText != "" {
			sb.WriteString(fmt.Sprintf("  took %s\n", durationText))
		}
	}
	sb.WriteString(fmt.Sprintf("\nKeep climbing with `%smemo train`.", f.Prefix()))
	return util.ApplySeeMoreWithHeader(sb.String(), historyInstruction, "", fmt.Sprintf(" (%d)", len(rounds)))
}

func (f *Formatter) Profile(profile *memodto.TrainerProfile) string {
	prefix := f.Prefix()
	if profile == nil {
		return fmt.Sprintf("No training history yet. Play a round with `%smemo train` first.", prefix)
	}
	var sb strings.Builder
	sb.WriteString(profileInstruction)
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("• Letters: %d/%d (%d%%)\n", profile.CorrectLetters, profile.AttemptedLetters, profileAccuracy(profile)))
	sb.WriteString(fmt.Sprintf("• Rounds: %d (%d full solves)\n", profile.RoundsPlayed, profile.PuzzlesSolved))
	if profile.BestLevel > 0 {
		sb.WriteString(fmt.Sprintf("• Best level: %d", profile.BestLevel))
		if profile.BestStreak > 0 {
			sb.WriteString(fmt.Sprintf(" | best streak: %d", profile.BestStreak))
		}
		sb.WriteString("\n")
	}
	if profile.SolveStreak > 1 {
		sb.WriteString(fmt.Sprintf("• Solve streak: %d and counting\n", profile.SolveStreak))
	}
	if profile.PreferredPreset != "" {
		sb.WriteString(fmt.Sprintf("• Preferred preset: %s\n", formatPreset(profile.PreferredPreset)))
	}
	if !profile.LastPlayedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("• Last played: %s\n", formatShortTime(profile.LastPlayedAt)))
	}
	sb.WriteString(fmt.Sprintf("\nNew round: `%smemo train`, history: `%smemo history`", prefix, prefix))
	return util.ApplySeeMoreWithHeader(sb.String(), profileInstruction, "", "")
}

func (f *Formatter) LeagueCreated(res *league.CreateResult) string {
	if res == nil {
		return "League creation failed. Try again in a moment."
	}
	return f.text("league.created", map[string]any{"Code": res.Code, "Prefix": f.Prefix()},
		fmt.Sprintf("🏆 League %s created.", res.Code))
}

func (f *Formatter) LeagueJoined(res *league.JoinResult) string {
	if res == nil || res.Meta == nil {
		return "Could not join the league. Try again in a moment."
	}
	joined := f.text("league.joined", map[string]any{"Code": res.Meta.ID, "Prefix": f.Prefix()},
		fmt.Sprintf("🏆 Joined league %s.", res.Meta.ID))
	return joined + fmt.Sprintf("\n• %s · %d/%d members", res.Meta.Name, res.Members, res.Meta.MemberLimit)
}

func (f *Formatter) LeagueLeft(code string) string {
	return f.text("league.left", map[string]any{"Code": code},
		fmt.Sprintf("👋 You left league %s.", code))
}

func (f *Formatter) LeagueTable(meta *league.LeagueMeta, rows []league.TableRow) string {
	if meta == nil {
		return f.LeagueError(league.ErrLeagueGone, "")
	}
	var sb strings.Builder
	sb.WriteString(leagueInstruction)
	sb.WriteByte('\n')
	sb.WriteString(f.text("league.table_header", map[string]any{
		"Name":    meta.Name,
		"Code":    meta.ID,
		"Members": len(rows),
	}, fmt.Sprintf("🏆 %s (%s) · %d members", meta.Name, meta.ID, len(rows))))
	sb.WriteString("\n")
	for i, row := range rows {
		sb.WriteString(fmt.Sprintf("%d. %s · %d solves · %d%% · %d rounds\n",
			i+1, row.DisplayName, row.FullSolves, row.Accuracy, row.RoundsPlayed))
	}
	sb.WriteString(fmt.Sprintf("\nClimb the table with `%smemo train`.", f.Prefix()))
	return util.ApplySeeMoreWithHeader(sb.String(), leagueInstruction, "", "")
}

// LeagueError maps the league sentinels onto catalog texts. The code argument
// names the league the message is about, where one is known.
func (f *Formatter) LeagueError(err error, code string) string {
	prefix := f.Prefix()
	switch {
	case err == nil:
		return ""
	case errors.Is(err, league.ErrLeagueFull):
		return f.text("league.full", map[string]any{"Code": code},
			fmt.Sprintf("❌ League %s is full.", code))
	case errors.Is(err, league.ErrLeagueGone):
		return f.text("league.not_found", map[string]any{"Code": code},
			fmt.Sprintf("❌ No league with code %s.", code))
	case errors.Is(err, league.ErrAlreadyInLeague):
		return f.text("league.already_member", map[string]any{"Code": code},
			fmt.Sprintf("You are already in league %s.", code))
	case errors.Is(err, league.ErrNotInLeague):
		return f.text("league.not_member", map[string]any{"Prefix": prefix},
			fmt.Sprintf("You are not in a league yet. Join one with `%smemo league join <code>`.", prefix))
	case errors.Is(err, league.ErrInvalidArgs):
		return f.LeagueUsage()
	default:
		return "League error: " + err.Error()
	}
}

func (f *Formatter) LeagueUsage() string {
	prefix := f.Prefix()
	return f.text("league.usage", map[string]any{"Prefix": prefix},
		fmt.Sprintf("Usage: `%smemo league new <name> | join <code> | table | leave`", prefix))
}

func groupWord(label string) string {
	word := strings.ToLower(strings.TrimSpace(label))
	if word == "" {
		return "letters"
	}
	return word
}

func formatPreset(preset string) string {
	if strings.TrimSpace(preset) == "" {
		return defaultPresetName
	}
	return strings.ToLower(preset)
}

func formatGroupPlan(groups []memodto.GroupState) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("%s %d", groupWord(g.Label), g.Length))
	}
	return strings.Join(parts, " + ")
}

func formatProfileSummary(profile *memodto.TrainerProfile) string {
	if profile == nil || profile.RoundsPlayed == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("• Lifetime: %d rounds · %d full solves · %d%% letters\n",
		profile.RoundsPlayed, profile.PuzzlesSolved, profileAccuracy(profile)))
	if profile.BestLevel > 1 {
		sb.WriteString(fmt.Sprintf("• Best level: %d", profile.BestLevel))
		if profile.BestStreak > 1 {
			sb.WriteString(fmt.Sprintf(" | best streak: %d", profile.BestStreak))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func profileAccuracy(p *memodto.TrainerProfile) int {
	if p == nil || p.AttemptedLetters <= 0 {
		return 0
	}
	return p.CorrectLetters * 100 / p.AttemptedLetters
}

func solveBadge(fullSolve bool) string {
	if fullSolve {
		return "✅"
	}
	return "▫️"
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return util.FormatKST(t, "2006-01-02 15:04")
}

func formatRoundDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
