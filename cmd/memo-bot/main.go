package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	appcfg "github.com/park285/Memo-KakaoTalk-bot/internal/config"
	"github.com/park285/Memo-KakaoTalk-bot/internal/irisfast"
	"github.com/park285/Memo-KakaoTalk-bot/internal/league"
	"github.com/park285/Memo-KakaoTalk-bot/internal/obslog"
	svctrainer "github.com/park285/Memo-KakaoTalk-bot/internal/service/trainer"
	"github.com/park285/Memo-KakaoTalk-bot/internal/trainerbuilder"
	"github.com/park285/Memo-KakaoTalk-bot/internal/adapter/trainerpresenter"
	"github.com/park285/Memo-KakaoTalk-bot/pkg/memodto"
)

// Keyboard glyphs the legacy bot exposed as reply buttons. Kakao has no
// buttons, so the bare glyph in chat acts as the command.
const (
	glyphTrain = "🧠"
	glyphExit  = "🛑"
	glyphStats = "📊"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	headers := func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	// Inject WS handshake headers if required by the server
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})

	// Trainer deps (Redis cache, Postgres repo, leagues, message catalog)
	deps, err := trainerbuilder.New(cfg, obslog.L())
	if err != nil {
		log.Fatalf("trainer init error: %v", err)
	}

	egress := irisfast.NewEgress(cfg.EgressMode, cfg.DryRun, client, ws, obslog.L())
	presenter := trainerpresenter.NewPresenter(
		func(room, message string) error { return egress.SendText(context.Background(), room, message) },
		func(room, imageBase64 string) error { return egress.SendImage(context.Background(), room, imageBase64) },
	)
	formatter := trainerpresenter.NewFormatter(prefixProvider{prefix: cfg.BotPrefix}, deps.Catalog)

	// Command handler
	ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || msg.Msg == "" {
			return
		}
		// room filter: if AllowedRooms configured and msg.Room not in list → ignore
		if len(cfg.AllowedRooms) > 0 && !roomAllowed(cfg.AllowedRooms, msg.Room) {
			log.Printf("ignore message from room=%s (not allowed)", msg.Room)
			return
		}
		text := strings.TrimSpace(msg.Msg)
		// Legacy keyboard glyphs work without the prefix.
		switch text {
		case glyphTrain:
			go handleTrainerCommand(cfg, deps, presenter, formatter, msg, []string{"train"}, "train")
			return
		case glyphExit:
			go handleTrainerCommand(cfg, deps, presenter, formatter, msg, []string{"exit"}, "exit")
			return
		case glyphStats:
			go handleTrainerCommand(cfg, deps, presenter, formatter, msg, []string{"stats"}, "stats")
			return
		}
		// prefix check
		if !strings.HasPrefix(text, cfg.BotPrefix) {
			return
		}
		// Avoid blocking the WS loop
		go handleCommand(cfg, deps, presenter, formatter, msg)
	})

	// Connect WS
	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		log.Fatalf("ws connect error: %v", err)
	}
	cancel()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = ws.Close(context.Background())
	_ = deps.Close()
}

func handleCommand(cfg *appcfg.AppConfig, deps *trainerbuilder.Deps, presenter *trainerpresenter.Presenter, formatter *trainerpresenter.Formatter, msg *irisfast.Message) {
	// strip prefix
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Msg), cfg.BotPrefix))
	if raw == "" {
		_, _ = presenter.Text(msg.Room, helpText(cfg))
		return
	}
	// split cmd
	parts := strings.Fields(raw)
	cmd := strings.ToLower(parts[0])
	rest := strings.TrimSpace(raw[len(parts[0]):])

	switch cmd {
	case "help":
		_, _ = presenter.Text(msg.Room, helpText(cfg))
	case "memo":
		handleTrainerCommand(cfg, deps, presenter, formatter, msg, parts[1:], rest)
	default:
		_, _ = presenter.Text(msg.Room, "Unknown command. Try 'help'.")
	}
}

func helpText(cfg *appcfg.AppConfig) string {
	p := cfg.BotPrefix
	return strings.Join([]string{
		"🧠 Kakao Memo Trainer",
		"",
		"• " + p + "memo start [preset]",
		"  Open a training session (presets: classic, edges, corners)",
		"• " + p + "memo help",
		"  Full command list / keyboard: 🧠 deal, 🛑 exit, 📊 stats",
	}, "\n")
}

// Trainer command handler
func handleTrainerCommand(cfg *appcfg.AppConfig, deps *trainerbuilder.Deps, presenter *trainerpresenter.Presenter, formatter *trainerpresenter.Formatter, msg *irisfast.Message, args []string, rest string) {
	svc := deps.Service
	meta := svctrainer.SessionMeta{
		SessionID: sessionIDFor(msg),
		Room:      msg.Room,
		Sender:    senderName(msg),
	}
	if len(args) == 0 { // help
		reply(svc, presenter, msg, meta, formatter.Help(), false)
		return
	}
	sub := strings.ToLower(strings.TrimSpace(args[0]))
	ctx := context.Background()

	switch sub {
	case "start":
		preset := ""
		if len(args) >= 2 {
			preset = args[1]
		}
		state, err := svc.Start(ctx, meta, preset)
		resumed := false
		if errors.Is(err, svctrainer.ErrRoundInProgress) && state != nil {
			resumed = true
			err = nil
		}
		if errors.Is(err, svctrainer.ErrPresetUnknown) {
			reply(svc, presenter, msg, meta, formatter.UnknownPreset(), false)
			return
		}
		if err != nil {
			reply(svc, presenter, msg, meta, "Could not start training: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.Start(trainerpresenter.ToDTOState(state), resumed), true)
	case "train":
		state, err := svc.BeginRound(ctx, meta)
		if errors.Is(err, svctrainer.ErrRoundInProgress) {
			reply(svc, presenter, msg, meta, formatter.RoundInProgress(), false)
			return
		}
		if err != nil {
			reply(svc, presenter, msg, meta, "Could not deal a memo: "+err.Error(), false)
			return
		}
		dto := trainerpresenter.ToDTOState(state)
		ref, err := presenter.Memo(msg.Room, formatter.Memo(dto), dto)
		if err != nil {
			log.Printf("memo send failed room=%s: %v", msg.Room, err)
			return
		}
		recordRef(svc, meta, ref)
	case "go":
		task, err := svc.Confirm(ctx, meta)
		if errors.Is(err, svctrainer.ErrSessionNotFound) {
			reply(svc, presenter, msg, meta, formatter.NoSession(), false)
			return
		}
		if errors.Is(err, svctrainer.ErrNotShowingMemo) {
			reply(svc, presenter, msg, meta, formatter.NothingToConfirm(), false)
			return
		}
		if err != nil {
			reply(svc, presenter, msg, meta, "Could not start the math task: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.Math(trainerpresenter.ToDTOMath(task)), true)
	case "stats":
		stats, err := svc.Stats(ctx, meta)
		if err != nil {
			reply(svc, presenter, msg, meta, "Stats error: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.Stats(stats.PuzzlesSolved), false)
	case "exit":
		if _, err := svc.Exit(ctx, meta); err != nil {
			reply(svc, presenter, msg, meta, "Exit error: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.Exit(), true)
	case "reset":
		if _, err := svc.Reset(ctx, meta); err != nil {
			reply(svc, presenter, msg, meta, "Reset error: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.ResetDone(), true)
	case "history":
		limit := cfg.TrainerHistoryLimit
		if len(args) >= 2 {
			if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
				limit = n
			}
		}
		rounds, err := svc.History(ctx, meta, limit)
		if err != nil {
			reply(svc, presenter, msg, meta, "History error: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.History(trainerpresenter.ToDTORounds(rounds)), false)
	case "profile":
		profile, err := svc.Profile(ctx, meta)
		if err != nil && !errors.Is(err, svctrainer.ErrProfileNotFound) {
			reply(svc, presenter, msg, meta, "Profile error: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.Profile(trainerpresenter.ToDTOProfile(profile)), false)
	case "preset":
		if len(args) < 2 {
			reply(svc, presenter, msg, meta, formatter.PresetUsage(), false)
			return
		}
		profile, err := svc.SetPreferredPreset(ctx, meta, args[1])
		if errors.Is(err, svctrainer.ErrPresetUnknown) {
			reply(svc, presenter, msg, meta, formatter.UnknownPreset(), false)
			return
		}
		if err != nil {
			reply(svc, presenter, msg, meta, "Preset update failed: "+err.Error(), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.PresetUpdated(trainerpresenter.ToDTOProfile(profile)), false)
	case "league":
		handleLeagueCommand(deps, presenter, formatter, msg, meta, args[1:])
	case "help":
		reply(svc, presenter, msg, meta, formatter.Help(), false)
	default:
		// Treat as a round answer (math or recall string)
		summary, err := svc.Input(ctx, meta, rest)
		if errors.Is(err, svctrainer.ErrSessionNotFound) {
			reply(svc, presenter, msg, meta, formatter.NoSession(), false)
			return
		}
		if errors.Is(err, svctrainer.ErrNoActiveRound) {
			reply(svc, presenter, msg, meta, formatter.NoActiveRound(), false)
			return
		}
		if err != nil {
			reply(svc, presenter, msg, meta, "Input error: "+err.Error(), false)
			return
		}
		dto := trainerpresenter.ToDTOInput(summary)
		// Corrective re-prompts never supersede the pending prompt.
		reply(svc, presenter, msg, meta, formatter.Input(dto), dto.Kind != memodto.InputReprompt)
	}
}

// League command handler
func handleLeagueCommand(deps *trainerbuilder.Deps, presenter *trainerpresenter.Presenter, formatter *trainerpresenter.Formatter, msg *irisfast.Message, meta svctrainer.SessionMeta, args []string) {
	svc := deps.Service
	if deps.League == nil {
		reply(svc, presenter, msg, meta, "Leagues are not available right now.", false)
		return
	}
	if len(args) == 0 {
		reply(svc, presenter, msg, meta, formatter.LeagueUsage(), false)
		return
	}
	playerHash, _ := svctrainer.Identity(meta)
	sub := strings.ToLower(strings.TrimSpace(args[0]))
	ctx := context.Background()

	switch sub {
	case "new", "create":
		name := strings.TrimSpace(strings.Join(args[1:], " "))
		if name == "" {
			reply(svc, presenter, msg, meta, formatter.LeagueUsage(), false)
			return
		}
		res, err := deps.League.Create(ctx, playerHash, senderName(msg), name)
		if err != nil {
			reply(svc, presenter, msg, meta, formatter.LeagueError(err, ""), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.LeagueCreated(res), false)
	case "join":
		if len(args) < 2 {
			reply(svc, presenter, msg, meta, formatter.LeagueUsage(), false)
			return
		}
		code := args[1]
		res, err := deps.League.Join(ctx, code, playerHash, senderName(msg))
		if err != nil {
			reply(svc, presenter, msg, meta, formatter.LeagueError(err, code), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.LeagueJoined(res), false)
	case "table", "standings":
		code, err := deps.League.LeagueOfPlayer(ctx, playerHash)
		if err != nil {
			reply(svc, presenter, msg, meta, formatter.LeagueError(err, ""), false)
			return
		}
		if code == "" {
			reply(svc, presenter, msg, meta, formatter.LeagueError(league.ErrNotInLeague, ""), false)
			return
		}
		lg, rows, err := deps.League.Table(ctx, code)
		if err != nil {
			reply(svc, presenter, msg, meta, formatter.LeagueError(err, code), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.LeagueTable(lg, rows), false)
	case "leave":
		code, err := deps.League.Leave(ctx, playerHash)
		if err != nil {
			reply(svc, presenter, msg, meta, formatter.LeagueError(err, code), false)
			return
		}
		reply(svc, presenter, msg, meta, formatter.LeagueLeft(code), false)
	default:
		reply(svc, presenter, msg, meta, formatter.LeagueUsage(), false)
	}
}

// reply sends text and, for primary flow messages, records the ref so a
// later message can supersede stale prompts.
func reply(svc *svctrainer.Service, presenter *trainerpresenter.Presenter, msg *irisfast.Message, meta svctrainer.SessionMeta, text string, supersede bool) {
	ref, err := presenter.Text(msg.Room, text)
	if err != nil {
		log.Printf("send failed room=%s: %v", msg.Room, err)
		return
	}
	if supersede {
		recordRef(svc, meta, ref)
	}
}

func recordRef(svc *svctrainer.Service, meta svctrainer.SessionMeta, ref string) {
	if ref == "" {
		return
	}
	if err := svc.RecordOutbound(context.Background(), meta, ref); err != nil {
		log.Printf("record outbound ref: %v", err)
	}
}

func roomAllowed(allowed []string, room string) bool {
	for _, r := range allowed {
		if r == room {
			return true
		}
	}
	return false
}

func userIDFromMessage(msg *irisfast.Message) string {
	if msg.JSON != nil && msg.JSON.UserID != "" {
		return msg.JSON.UserID
	}
	if msg.Sender != nil {
		return strings.TrimSpace(*msg.Sender)
	}
	return ""
}

func sessionIDFor(msg *irisfast.Message) string {
	uid := userIDFromMessage(msg)
	if uid == "" {
		uid = senderName(msg)
	}
	return fmt.Sprintf("%s:%s", strings.TrimSpace(msg.Room), strings.TrimSpace(uid))
}

func senderName(msg *irisfast.Message) string {
	if msg.JSON != nil && strings.TrimSpace(msg.JSON.UserID) != "" {
		return strings.TrimSpace(msg.JSON.UserID)
	}
	if msg.Sender != nil {
		return strings.TrimSpace(*msg.Sender)
	}
	return "player"
}

type prefixProvider struct{ prefix string }

func (p prefixProvider) Prefix() string { return p.prefix }
