package play

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/audiolibrelab/soundrecorder/internal/audio"
	"github.com/audiolibrelab/soundrecorder/internal/config"
)

// players in order of preference for the "auto" setting
var players = []string{"pw-play", "paplay", "aplay", "ffplay", "mpv", "vlc"}

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// Player plays WAV files through an external player process.
type Player struct {
	cfg config.AudioConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

func New(cfg config.AudioConfig) *Player {
	return &Player{cfg: cfg}
}

// Play blocks until the file has been played, Stop is called or ctx is
// done. Stopping is not an error.
func (p *Player) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: audio file not found: %s", audio.ErrIOFailure, path)
	}

	info, err := audio.ProbeWAV(path)
	if err != nil {
		return err
	}

	argv, err := p.command(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: playback already running", audio.ErrDeviceUnavailable)
	}
	playCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = false
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	slog.Info("Playing", "path", path, "player", argv[0], "duration", info.Duration, "format", info.Format.String())

	cmd := exec.CommandContext(playCtx, argv[0], argv[1:]...)
	output, runErr := cmd.CombinedOutput()

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped || ctx.Err() != nil {
		slog.Debug("Playback stopped", "path", path)
		return nil
	}
	if runErr != nil {
		slog.Debug("Player output", "output", string(output))
		return fmt.Errorf("%w: playback failed with %s: %v", audio.ErrIOFailure, argv[0], runErr)
	}

	slog.Debug("Playback completed", "path", path)
	return nil
}

// Stop halts the current playback, if any. It does not wait for the
// player to exit.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.stopped = true
		p.cancel()
	}
	return nil
}

// Playing reports whether a player process is active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// command builds the player argv for path.
func (p *Player) command(path string) ([]string, error) {
	player := p.cfg.Player
	if player == "command" {
		if len(p.cfg.PlayerCommand) == 0 {
			return nil, fmt.Errorf("%w: player_command is empty", audio.ErrDeviceUnavailable)
		}
		argv := make([]string, len(p.cfg.PlayerCommand))
		for i, arg := range p.cfg.PlayerCommand {
			argv[i] = strings.ReplaceAll(arg, "{file}", path)
		}
		if _, err := lookPath(argv[0]); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", audio.ErrDeviceUnavailable, argv[0], err)
		}
		return argv, nil
	}

	if player == "" || player == "auto" {
		found, err := findAudioPlayer()
		if err != nil {
			return nil, err
		}
		player = found
	} else if _, err := lookPath(player); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", audio.ErrDeviceUnavailable, player, err)
	}

	return playerArgs(player, path)
}

func playerArgs(player, path string) ([]string, error) {
	switch player {
	case "pw-play", "paplay":
		return []string{player, path}, nil
	case "aplay":
		return []string{"aplay", "-q", path}, nil
	case "ffplay":
		return []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", path}, nil
	case "mpv":
		return []string{"mpv", "--no-video", "--really-quiet", path}, nil
	case "vlc":
		return []string{"vlc", "--play-and-exit", "-I", "dummy", path}, nil
	default:
		return nil, fmt.Errorf("unsupported player: %s", player)
	}
}

func findAudioPlayer() (string, error) {
	for _, player := range players {
		if _, err := lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("%w: no audio player found (tried: %s)", audio.ErrDeviceUnavailable, strings.Join(players, ", "))
}
