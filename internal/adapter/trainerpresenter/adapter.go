package trainerpresenter

import (
	"github.com/park285/Memo-KakaoTalk-bot/internal/domain"
	"github.com/park285/Memo-KakaoTalk-bot/internal/memory"
	svc "github.com/park285/Memo-KakaoTalk-bot/internal/service/trainer"
	"github.com/park285/Memo-KakaoTalk-bot/pkg/memodto"
)

func ToDTOState(s *svc.SessionState) *memodto.SessionState {
	if s == nil {
		return nil
	}
	return &memodto.SessionState{
		SessionUUID:      s.SessionUUID,
		Preset:           s.Preset,
		Phase:            s.Phase,
		Level:            s.Level,
		Groups:           toDTOGroups(s.Groups),
		RecallIndex:      s.RecallIndex,
		CorrectLetters:   s.CorrectLetters,
		AttemptedLetters: s.AttemptedLetters,
		PuzzlesSolved:    s.PuzzlesSolved,
		Accuracy:         s.Accuracy,
		MemoImage:        append([]byte(nil), s.MemoImage...),
		Profile:          ToDTOProfile(s.Profile),
	}
}

func ToDTOMath(m *svc.MathChallenge) *memodto.MathTask {
	if m == nil {
		return nil
	}
	return &memodto.MathTask{A: m.A, B: m.B}
}

func ToDTOInput(sum *svc.InputSummary) *memodto.InputResult {
	if sum == nil {
		return nil
	}
	out := &memodto.InputResult{
		Kind:         memodto.InputKind(sum.Outcome),
		MathCorrect:  sum.MathCorrect,
		MathExpected: sum.MathExpected,
		State:        ToDTOState(sum.State),
	}
	if fb := sum.Feedback; fb != nil {
		out.Feedback = &memodto.GroupFeedback{
			Label:  fb.Label,
			Marks:  toDTOMarks(fb.Marks),
			Hits:   fb.Hits,
			Length: fb.Length,
		}
	}
	if next := sum.NextGroup; next != nil {
		out.NextGroup = &memodto.GroupPrompt{Label: next.Label, Length: next.Length}
	}
	if rs := sum.Summary; rs != nil {
		out.Summary = &memodto.RoundSummary{
			Accuracy:  rs.Accuracy,
			Solves:    rs.Solves,
			FullSolve: rs.FullSolve,
			Level:     rs.Level,
			RoundID:   rs.RoundID,
		}
	}
	if rp := sum.Reprompt; rp != nil {
		out.Reprompt = &memodto.Reprompt{
			Reason: memodto.RepromptReason(rp.Reason),
			Label:  rp.Label,
			Length: rp.Length,
		}
	}
	return out
}

func toDTOGroups(list []svc.GroupView) []memodto.GroupState {
	out := make([]memodto.GroupState, 0, len(list))
	for _, g := range list {
		out = append(out, memodto.GroupState{
			Label:   g.Label,
			Length:  g.Length,
			Letters: append([]string(nil), g.Letters...),
		})
	}
	return out
}

func toDTOMarks(list []memory.LetterMark) []memodto.LetterMark {
	out := make([]memodto.LetterMark, 0, len(list))
	for _, m := range list {
		out = append(out, memodto.LetterMark{Target: m.Target, Guess: m.Guess, Hit: m.Hit})
	}
	return out
}

// profile
func ToDTOProfile(p *domain.TrainerProfile) *memodto.TrainerProfile {
	if p == nil {
		return nil
	}
	cp := *p
	return &memodto.TrainerProfile{
		PlayerHash:       cp.PlayerHash,
		RoomHash:         cp.RoomHash,
		PreferredPreset:  cp.PreferredPreset,
		CorrectLetters:   cp.CorrectLetters,
		AttemptedLetters: cp.AttemptedLetters,
		PuzzlesSolved:    cp.PuzzlesSolved,
		RoundsPlayed:     cp.RoundsPlayed,
		BestLevel:        cp.BestLevel,
		SolveStreak:      cp.SolveStreak,
		BestStreak:       cp.BestStreak,
		LastPreset:       cp.LastPreset,
		LastPlayedAt:     cp.LastPlayedAt,
		UpdatedAt:        cp.UpdatedAt,
		CreatedAt:        cp.CreatedAt,
	}
}

func ToDTORounds(list []*domain.TrainingRound) []*memodto.TrainingRound {
	out := make([]*memodto.TrainingRound, 0, len(list))
	for _, r := range list {
		if r == nil {
			continue
		}
		out = append(out, ToDTORound(r))
	}
	return out
}

func ToDTORound(r *domain.TrainingRound) *memodto.TrainingRound {
	if r == nil {
		return nil
	}
	rr := *r
	groups := make([]memodto.RoundGroup, 0, len(rr.Groups))
	for _, g := range rr.Groups {
		groups = append(groups, memodto.RoundGroup{
			Label:  g.Label,
			Target: g.Target,
			Guess:  g.Guess,
			Hits:   g.Hits,
		})
	}
	return &memodto.TrainingRound{
		ID:             rr.ID,
		SessionUUID:    rr.SessionUUID,
		PlayerHash:     rr.PlayerHash,
		RoomHash:       rr.RoomHash,
		Preset:         rr.Preset,
		Level:          rr.Level,
		Groups:         groups,
		LettersTotal:   rr.LettersTotal,
		LettersCorrect: rr.LettersCorrect,
		MathCorrect:    rr.MathCorrect,
		FullSolve:      rr.FullSolve,
		StartedAt:      rr.StartedAt,
		EndedAt:        rr.EndedAt,
		Duration:       rr.Duration,
	}
}
