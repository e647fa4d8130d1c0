package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/hannadev/blogsearch/internal/config"
	"github.com/hannadev/blogsearch/internal/stream"
)

const askTimeout = 2 * time.Minute

// runAsk sends a question to a running blogsearch server and renders the
// answer in the terminal.
func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	serverURL := fs.String("server", "http://"+config.DefaultAddr, "base URL of the blogsearch server")
	locale := fs.String("locale", "", "answer locale (ko or en)")
	plain := fs.Bool("plain", false, "print the raw answer without markdown styling")
	if err := fs.Parse(args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: blogsearch ask [-server URL] [-locale ko|en] question")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, askTimeout)
	defer cancelTimeout()

	body := fmt.Sprintf(`{"prompt": %q, "locale": %q}`, question, *locale)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(*serverURL, "/")+"/api/search", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("asking server: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	content, sources := stream.Parse(string(raw))
	if strings.HasSuffix(content, stream.ErrorMarker) {
		content = strings.TrimSuffix(content, stream.ErrorMarker)
		fmt.Fprintln(os.Stderr, "warning: the answer stream ended with an error; output may be truncated")
	}

	fmt.Println(renderAnswer(content, *plain))

	if len(sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, src := range sources {
			fmt.Printf("  [%d] %s (%s)\n", i+1, src.Title, src.Slug)
		}
	}
	return nil
}

// renderAnswer styles the markdown answer for the terminal, falling back
// to plain text when the renderer cannot be built.
func renderAnswer(content string, plain bool) string {
	content = strings.TrimSpace(content)
	if plain {
		return content
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSuffix(rendered, "\n")
}
