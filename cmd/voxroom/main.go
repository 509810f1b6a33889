// voxroom is the classroom translation client. In broadcast mode it
// streams the microphone through a live interpretation session, plays
// the translated speech, and persists finalized turns to the room. In
// listen mode it follows the room: live captions over the relay,
// finalized messages from the store, translated locally.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/voxroom/voxroom/pkg/audio"
	"github.com/voxroom/voxroom/pkg/broadcast"
	"github.com/voxroom/voxroom/pkg/config"
	"github.com/voxroom/voxroom/pkg/interp"
	"github.com/voxroom/voxroom/pkg/relay"
	"github.com/voxroom/voxroom/pkg/room"
	"github.com/voxroom/voxroom/pkg/timeline"
)

type options struct {
	role   string
	room   string
	name   string
	source string
	target string
	debug  bool
}

// caption is the relay text event carrying one live transcript
// fragment.
type caption struct {
	Kind    string `json:"kind"`
	Sender  string `json:"sender"`
	Text    string `json:"text"`
	IsInput bool   `json:"is_input"`
}

func main() {
	_ = godotenv.Load()

	var opt options
	flag.StringVar(&opt.role, "role", "listen", "Room role: broadcast or listen")
	flag.StringVar(&opt.room, "room", "", "Room ID (required)")
	flag.StringVar(&opt.name, "name", "anonymous", "Display name")
	flag.StringVar(&opt.source, "source", "English", "Spoken language (broadcast role)")
	flag.StringVar(&opt.target, "target", "Spanish", "Translation target language")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if opt.debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(opt, log); err != nil {
		log.Error("voxroom failed", "err", err)
		os.Exit(1)
	}
}

func run(opt options, log *slog.Logger) error {
	if strings.TrimSpace(opt.room) == "" {
		return fmt.Errorf("-room is required")
	}
	if opt.role != "broadcast" && opt.role != "listen" {
		return fmt.Errorf("-role must be broadcast or listen")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := interp.NewGeminiBackend(ctx, interp.GeminiConfig{
		APIKey:         cfg.GeminiAPIKey,
		LiveModel:      cfg.LiveModel,
		TranslateModel: cfg.TranslateModel,
		TTSModel:       cfg.TTSModel,
		Voice:          cfg.Voice,
	}, log)
	if err != nil {
		return err
	}

	speaker, err := audio.NewSpeaker(cfg.PlaybackSampleRate, 1, log)
	if err != nil {
		return err
	}
	defer speaker.Close()

	var store *room.Store
	if cfg.DatabaseURL != "" {
		if err := room.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return err
		}
		store, err = room.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		defer store.Close()
	} else {
		log.Warn("no database configured, room history and presence disabled")
	}

	participantID := uuid.NewString()
	sender := timeline.Sender{ID: participantID, Name: opt.name, Language: opt.source}

	var rc *relay.Client
	if cfg.RelayURL != "" {
		rc, err = relay.Dial(ctx, cfg.RelayURL, opt.room, participantID, opt.name)
		if err != nil {
			log.Warn("relay unavailable, continuing without live captions", "err", err)
		} else {
			defer rc.Close()
		}
	}

	ctlOpts := broadcast.Options{
		Backend:         backend,
		Sched:           audio.NewScheduler(speaker, speaker),
		Decoder:         audio.NewDecodeWorker(),
		RoomID:          opt.room,
		Sender:          sender,
		TargetLanguage:  opt.target,
		RefreshCooldown: cfg.RefreshCooldown,
		CaptureRate:     cfg.CaptureSampleRate,
		PlaybackRate:    cfg.PlaybackSampleRate,
		ContextItems:    cfg.ContextItems,
		ContextChars:    cfg.ContextChars,
		Logger:          log,
	}
	if store != nil {
		ctlOpts.Store = store
	}
	if opt.role == "broadcast" {
		ctlOpts.Capture = func(onFrame func(pcm []byte)) (func(), error) {
			mic, err := audio.StartCapture(cfg.CaptureSampleRate, func(pcm []byte) {
				onFrame(pcm)
				if rc != nil {
					if err := rc.SendFrame(pcm); err != nil {
						log.Debug("relay frame failed", "err", err)
					}
				}
			}, log)
			if err != nil {
				return nil, err
			}
			return mic.Stop, nil
		}
		if rc != nil {
			ctlOpts.OnFragment = func(text string, isInput bool) {
				ev := caption{Kind: "caption", Sender: opt.name, Text: text, IsInput: isInput}
				if err := rc.SendEvent(ev); err != nil {
					log.Debug("caption relay failed", "err", err)
				}
			}
		}
	}

	ctl := broadcast.NewController(ctlOpts)
	defer ctl.Close()

	if store != nil {
		if err := store.UpsertParticipant(ctx, room.Participant{
			ID:             participantID,
			RoomID:         opt.room,
			Name:           opt.name,
			Language:       opt.target,
			IsBroadcasting: false,
			JoinedAt:       time.Now(),
		}); err != nil {
			return err
		}
		defer func() {
			leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.RemoveParticipant(leaveCtx, participantID); err != nil {
				log.Warn("leave cleanup failed", "err", err)
			}
		}()

		if err := ctl.LoadHistory(ctx); err != nil {
			log.Warn("history load failed", "err", err)
		}
		msgs, err := store.SubscribeMessages(ctx, opt.room)
		if err != nil {
			return err
		}
		go func() {
			for m := range msgs {
				if m.SenderID == participantID {
					continue
				}
				ctl.HandleRemoteMessage(ctx, m)
				fmt.Printf("%s: %s\n", m.SenderName, latestTranslation(ctl, m.ID))
			}
		}()
	}

	if rc != nil && opt.role == "listen" {
		go followCaptions(rc)
	}

	if opt.role == "broadcast" {
		if err := ctl.StartBroadcast(ctx); err != nil {
			return err
		}
		log.Info("broadcasting", "room", opt.room, "source", opt.source, "target", opt.target)
	} else {
		log.Info("listening", "room", opt.room, "target", opt.target)
		// An empty line on stdin replays the latest translated message.
		go replayLoop(ctx, ctl, log)
	}

	<-ctx.Done()
	log.Info("shutting down")
	ctl.StopBroadcast()
	return nil
}

func latestTranslation(ctl *broadcast.Controller, id string) string {
	for _, e := range ctl.Timeline().Entries() {
		if e.ID == id {
			if e.TranslatedText != "" {
				return e.TranslatedText
			}
			return e.OriginalText
		}
	}
	return ""
}

// followCaptions prints live transcript fragments relayed by the
// broadcaster.
func followCaptions(rc *relay.Client) {
	for frame := range rc.Frames() {
		if frame.Text == nil {
			continue
		}
		var c caption
		if err := json.Unmarshal(frame.Text, &c); err != nil || c.Kind != "caption" {
			continue
		}
		if c.IsInput {
			fmt.Printf("[%s] %s\n", c.Sender, c.Text)
		}
	}
}

func replayLoop(ctx context.Context, ctl *broadcast.Controller, log *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			continue
		}
		entries := ctl.Timeline().Finalized()
		if len(entries) == 0 {
			continue
		}
		last := entries[len(entries)-1]
		text := last.TranslatedText
		if text == "" {
			text = last.OriginalText
		}
		if err := ctl.Replay(ctx, text); err != nil {
			log.Warn("replay failed", "err", err)
		}
	}
}
