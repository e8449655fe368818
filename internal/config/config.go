package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Audio holds the speech detection and playback tuning knobs. The defaults
// are calibrated for 20ms frames of 16kHz mono input and 48kHz opus output.
type Audio struct {
	InputRate    int // Hz of the analysis pipeline (16000)
	PlaybackRate int // Hz of the outbound track (48000)
	FrameSize    int // samples per analysis frame (320 = 20ms at 16kHz)

	EnergyThreshold         float64 // mean-abs amplitude below which a frame skips the classifier
	MinSpeechFrames         int     // voiced-frame score required before recording is considered
	MinSpeechDurationFrames int     // voiced-frame score required to open an utterance
	SilenceThresholdFrames  int     // consecutive-ish silent frames that end an utterance (35 = 700ms)
	MaxSpeechFrames         int     // hard cap on utterance length (250 = 5s)

	MinUtteranceMs int // utterances shorter than this are discarded as noise blips
	MaxBufferSec   int // inbound ring capacity; older samples are dropped beyond this
}

// Config holds application configuration.
type Config struct {
	HTTPAddress    string
	ICEServersJSON string
	AuthToken      string // shared connection token; empty disables the check

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	WhisperURL        string
	DeepgramAPIKey    string
	DeepgramModel     string
	ElevenLabsKey     string
	ElevenLabsVoiceID string
	TTSProvider       string // "deepgram" or "elevenlabs"

	Audio Audio
}

// DefaultAudio returns the tuning used for natural conversation pacing.
func DefaultAudio() Audio {
	return Audio{
		InputRate:               16000,
		PlaybackRate:            48000,
		FrameSize:               320,
		EnergyThreshold:         150,
		MinSpeechFrames:         3,
		MinSpeechDurationFrames: 3,
		SilenceThresholdFrames:  35,
		MaxSpeechFrames:         250,
		MinUtteranceMs:          300,
		MaxBufferSec:            10,
	}
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	cfg := Config{
		HTTPAddress:    envOr("HTTP_ADDRESS", ":8080"),
		ICEServersJSON: envOr("ICE_SERVERS_JSON", `[{"urls":["stun:stun.l.google.com:19302"]}]`),
		AuthToken:      os.Getenv("AUTH_TOKEN"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        envInt("REDIS_DB", 0),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: envOr("OPENAI_URL", "https://api.openai.com/v1"),
		OpenAIModel:   envOr("OPENAI_MODEL", "gpt-4o-mini"),

		WhisperURL:        envOr("WHISPER_URL", "http://localhost:8090"),
		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		DeepgramModel:     envOr("DEEPGRAM_MODEL", "aura-2-thalia-en"),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
		TTSProvider:       envOr("TTS_PROVIDER", "deepgram"),

		Audio: DefaultAudio(),
	}

	cfg.Audio.EnergyThreshold = envFloat("ENERGY_THRESHOLD", cfg.Audio.EnergyThreshold)
	cfg.Audio.MinSpeechFrames = envInt("MIN_SPEECH_FRAMES", cfg.Audio.MinSpeechFrames)
	cfg.Audio.MinSpeechDurationFrames = envInt("MIN_SPEECH_DURATION_FRAMES", cfg.Audio.MinSpeechDurationFrames)
	cfg.Audio.SilenceThresholdFrames = envInt("SILENCE_THRESHOLD_FRAMES", cfg.Audio.SilenceThresholdFrames)
	cfg.Audio.MaxSpeechFrames = envInt("MAX_SPEECH_FRAMES", cfg.Audio.MaxSpeechFrames)
	cfg.Audio.MinUtteranceMs = envInt("MIN_UTTERANCE_MS", cfg.Audio.MinUtteranceMs)

	if cfg.OpenAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - interviewer replies will not work")
	}
	if cfg.DeepgramAPIKey == "" && cfg.ElevenLabsKey == "" {
		log.Println("Warning: no TTS credentials set - speech synthesis will not work")
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
