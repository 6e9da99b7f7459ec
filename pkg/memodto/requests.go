package memodto

type RequestMeta struct {
	SessionID string
	Room      string
	Sender    string
}

type StartSessionRequest struct {
	Meta   RequestMeta
	Preset string
}

type StartSessionResponse struct {
	State   *SessionState
	Resumed bool
}

type BeginRoundRequest struct {
	Meta RequestMeta
}

type BeginRoundResponse struct {
	State *SessionState
}

type ConfirmRequest struct {
	Meta RequestMeta
}

type ConfirmResponse struct {
	Task  *MathTask
	State *SessionState
}

type InputRequest struct {
	Meta RequestMeta
	Text string
}

type InputResponse struct {
	Result *InputResult
}

type ExitRequest struct {
	Meta RequestMeta
}

type ExitResponse struct {
	State *SessionState
}

type StatsRequest struct {
	Meta RequestMeta
}

type StatsResponse struct {
	CorrectLetters   int
	AttemptedLetters int
	PuzzlesSolved    int
	Accuracy         int
}

type ResetRequest struct {
	Meta RequestMeta
}

type ResetResponse struct {
	State *SessionState
}

type HistoryRequest struct {
	Meta  RequestMeta
	Limit int
}

type HistoryResponse struct {
	Rounds []*TrainingRound
}

type ProfileRequest struct {
	Meta RequestMeta
}

type ProfileResponse struct {
	Profile *TrainerProfile
}

type UpdatePreferredPresetRequest struct {
	Meta   RequestMeta
	Preset string
}

type UpdatePreferredPresetResponse struct {
	Profile *TrainerProfile
}
