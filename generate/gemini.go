package generate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	charmlog "github.com/charmbracelet/log"
	"google.golang.org/genai"

	"go-acid/pattern"
)

const (
	DefaultModel     = "gemini-2.5-flash"
	DefaultAPIKeyEnv = "GEMINI_API_KEY"
	requestTimeout   = 20 * time.Second
)

const prompt = `You are an expert acid techno composer. Create a %d-step TB-303 style bassline for this description: "%s".
Return a JSON array of exactly %d objects.
Each object has: "active" (boolean), "noteIndex" (integer 0-11, 0 = C, 11 = B), "accent" (boolean), "slide" (boolean).
Keep it rhythmic and hypnotic.`

// Gemini asks a Gemini model for a pattern with a JSON response schema
type Gemini struct {
	client *genai.Client
	model  string
	logger *charmlog.Logger
}

// NewGemini returns a Source backed by Gemini, or nil when no API key is set
// in the environment variable apiKeyEnv. A nil Source makes Pattern fall back.
func NewGemini(ctx context.Context, model, apiKeyEnv string, logger *charmlog.Logger) (Source, error) {
	if apiKeyEnv == "" {
		apiKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(apiKeyEnv)
	if key == "" {
		return nil, nil
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("create gemini client", "Could not connect to Gemini"))
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

func stepSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"active":    {Type: genai.TypeBoolean},
				"noteIndex": {Type: genai.TypeInteger, Description: "0 to 11"},
				"accent":    {Type: genai.TypeBoolean},
				"slide":     {Type: genai.TypeBoolean},
			},
			Required: []string{"active", "noteIndex", "accent", "slide"},
		},
	}
}

// Generate implements Source
func (g *Gemini) Generate(ctx context.Context, text string) ([]RawStep, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(fmt.Sprintf(prompt, pattern.NumSteps, text, pattern.NumSteps)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   stepSchema(),
		})
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("gemini request"))
	}

	body := resp.Text()
	if g.logger != nil {
		g.logger.Debug("gemini response", "model", g.model, "took", time.Since(start), "bytes", len(body))
	}
	return Decode([]byte(body))
}
