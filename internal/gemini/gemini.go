// Package gemini wires the Google AI embedding and generation capabilities
// through Genkit.
package gemini

import (
	"context"
	"errors"
	"iter"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/hannadev/blogsearch/internal/log"
)

// Generator streams generated answer text for a prompt.
type Generator interface {
	Stream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Client holds the initialized Genkit instance plus the embedder and
// generation model the pipeline uses.
type Client struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	model    string
	logger   log.Logger
}

// Options selects the models. EmbeddingModel is the plain model id;
// GenerationModel is the full Genkit model name.
type Options struct {
	EmbeddingModel  string
	GenerationModel string
}

// New initializes Genkit with the Google AI plugin. The plugin reads
// GEMINI_API_KEY from the environment.
func New(ctx context.Context, opts Options, logger log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("genkit initialization failed")
	}

	return &Client{
		g:        g,
		embedder: googlegenai.GoogleAIEmbedder(g, opts.EmbeddingModel),
		model:    opts.GenerationModel,
		logger:   logger,
	}, nil
}

// Embedder returns the embedding capability.
func (c *Client) Embedder() ai.Embedder {
	return c.embedder
}

// errStreamStopped aborts generation when the consumer stops pulling,
// typically because the client disconnected.
var errStreamStopped = errors.New("stream consumer stopped")

// Stream generates an answer for prompt, yielding text chunks as the model
// produces them. A generation failure is yielded as the terminal error.
func (c *Client) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		_, err := genkit.Generate(ctx, c.g,
			ai.WithModelName(c.model),
			ai.WithPrompt(prompt),
			ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
				if !yield(chunk.Text(), nil) {
					return errStreamStopped
				}
				return nil
			}),
		)
		if err != nil && !errors.Is(err, errStreamStopped) {
			c.logger.Warn("generation stream failed", "error", err)
			yield("", err)
		}
	}
}
