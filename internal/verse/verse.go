// Package verse generates the decorative caller verses ("rao") and spoken
// announcements for drawn numbers via the Gemini API. Verse text is cosmetic:
// every failure mode maps to a deterministic fallback string so a draw can
// never block or fail on this package.
package verse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

const systemInstruction = "Bạn là người gọi số Lô Tô chuyên nghiệp. " +
	"Bạn biết những câu rao truyền thống và sáng tạo thêm những câu hài hước, hiện đại."

// SpeakSink receives the spoken announcement. audio is base64-less raw PCM
// when synthesis succeeded and nil when the receiver should fall back to its
// own text-to-speech.
type SpeakSink func(text string, audio []byte)

type Generator struct {
	APIKey      string
	VerseModel  string
	SpeechModel string
	BaseURL     string
	Timeout     time.Duration
	Client      *http.Client
}

func NewGenerator(apiKey, verseModel, speechModel string, timeout time.Duration) *Generator {
	return &Generator{
		APIKey:      apiKey,
		VerseModel:  verseModel,
		SpeechModel: speechModel,
		BaseURL:     defaultBaseURL,
		Timeout:     timeout,
		Client:      &http.Client{Timeout: timeout},
	}
}

// Fallback is the deterministic verse used whenever generation fails.
func Fallback(number int) string {
	return fmt.Sprintf("Mời quý vị đón xem con số %d!", number)
}

// EmptyFallback is used when the API answers successfully but with no text.
func EmptyFallback(number int) string {
	return fmt.Sprintf("Con số tiếp theo, số %d!", number)
}

// Verse returns a short caller verse leading up to number. It always returns
// some string; API errors, quota limits and malformed responses are logged
// and mapped to the fallback.
func (g *Generator) Verse(ctx context.Context, number int) string {
	if g.APIKey == "" {
		return Fallback(number)
	}

	prompt := fmt.Sprintf(
		"Số %d. Hãy tạo 1 câu thơ rao lô tô vui nhộn, vần điệu (lục bát hoặc 4 chữ) "+
			"dẫn dắt đến con số %d. Chỉ trả về nội dung câu thơ, không thêm gì khác.",
		number, number)

	req := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: systemInstruction}}},
		Contents:          []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig:  &generationConfig{Temperature: 0.8},
	}

	resp, err := g.generate(ctx, g.VerseModel, req)
	if err != nil {
		if isQuota(err) {
			log.Printf("[Verse] API quota exceeded, using fallback text\n")
		} else {
			log.Printf("[Verse] generate error: %v\n", err)
		}
		return Fallback(number)
	}

	text := strings.TrimSpace(resp.firstText())
	if text == "" {
		return EmptyFallback(number)
	}
	return text
}

// Speak synthesizes text and hands the result to sink. Fire-and-forget: it
// returns immediately and never surfaces an error; on synthesis failure the
// sink receives the text with nil audio so receivers use their native TTS.
func (g *Generator) Speak(text string, sink SpeakSink) {
	if sink == nil {
		return
	}
	go func() {
		audio := g.synthesize(text)
		sink(text, audio)
	}()
}

func (g *Generator) synthesize(text string) []byte {
	if g.APIKey == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.Timeout)
	defer cancel()

	req := generateRequest{
		Contents: []content{{Parts: []part{{
			Text: fmt.Sprintf("Hô to con số này, giọng rõ ràng, dứt khoát: %s", text),
		}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: "Kore"},
				},
			},
		},
	}

	resp, err := g.generate(ctx, g.SpeechModel, req)
	if err != nil {
		if isQuota(err) {
			log.Printf("[Speech] API quota exceeded, falling back to client TTS\n")
		} else {
			log.Printf("[Speech] synthesis error: %v\n", err)
		}
		return nil
	}

	b64 := resp.firstInlineData()
	if b64 == "" {
		log.Printf("[Speech] no audio data returned\n")
		return nil
	}
	audio, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		log.Printf("[Speech] decoding audio: %v\n", err)
		return nil
	}
	return audio
}

func (g *Generator) generate(ctx context.Context, model string, req generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.APIKey)

	httpResp, err := g.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", model, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 1024))
		return nil, &apiError{Status: httpResp.StatusCode, Body: string(data)}
	}

	var resp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Body)
}

func isQuota(err error) bool {
	apiErr, ok := err.(*apiError)
	return ok && apiErr.Status == http.StatusTooManyRequests
}

// Request/response shapes for the generateContent endpoint, trimmed to the
// fields this package uses.

type generateRequest struct {
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type generationConfig struct {
	Temperature        float64       `json:"temperature,omitempty"`
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r *generateResponse) firstText() string {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}

func (r *generateResponse) firstInlineData() string {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return p.InlineData.Data
			}
		}
	}
	return ""
}
