package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Shoyeb45/ai-interview/internal/audio"
)

// WhisperClient transcribes PCM utterances against a whisper-server
// /inference endpoint. Concurrent requests are bounded so a burst of
// utterances cannot pile onto the inference box.
type WhisperClient struct {
	HTTPClient *http.Client
	BaseURL    string

	sem *semaphore.Weighted
	log *zap.Logger
}

func NewWhisperClient(baseURL string, maxConcurrent int64, log *zap.Logger) *WhisperClient {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WhisperClient{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		sem:        semaphore.NewWeighted(maxConcurrent),
		log:        log,
	}
}

type inferenceResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the utterance as a WAV file and returns the recognized
// text, trimmed. An empty string with nil error means no speech was heard.
func (c *WhisperClient) Transcribe(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(wavBytes(pcm, sampleRate)); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if err := mw.WriteField("temperature", "0.0"); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/inference", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var ir inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return "", err
	}
	text := strings.TrimSpace(ir.Text)
	c.log.Debug("utterance transcribed",
		zap.Duration("took", time.Since(start)),
		zap.Float64("audio_sec", float64(len(pcm))/float64(sampleRate)),
		zap.Int("chars", len(text)))
	return text, nil
}

// wavBytes wraps 16-bit mono PCM in a RIFF/WAVE header.
func wavBytes(pcm []int16, sampleRate int) []byte {
	data := audio.Int16ToBytes(pcm)
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(data)))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}
