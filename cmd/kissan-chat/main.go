// kissan-chat is a terminal client for the farming assistant. It talks to the
// chat backend over the same correlated channel the server uses and answers
// offline when the backend is unreachable.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/ashureev/smartkissan/internal/chat"
	"github.com/ashureev/smartkissan/internal/domain"
)

var (
	backendURL = flag.String("url", "", "Chat backend WebSocket URL (defaults to CHAT_WS_URL)")
	language   = flag.String("lang", "en", "Reply language: en, hi or kn")
	expertise  = flag.String("expertise", "beginner", "Farmer expertise level sent to the backend")
	offline    = flag.Bool("offline", false, "Never contact the backend")
	verbose    = flag.Bool("v", false, "Log channel activity to stderr")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	lang := domain.Language(*language)
	if !lang.IsSupported() {
		fmt.Fprintf(os.Stderr, "Unsupported language %q, using English\n", *language)
		lang = domain.LangEnglish
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := *backendURL
	if url == "" {
		url = os.Getenv("CHAT_WS_URL")
	}

	var (
		channel   *chat.Channel
		transport chat.Transport
	)
	if url != "" && !*offline {
		channel = chat.NewChannel(chat.DefaultChannelConfig(url), logger)
		defer func() { _ = channel.Close() }()
		transport = channel
		channel.StartConnect()
	}

	client := chat.NewClient(transport, chat.DefaultResponder(), nil, chat.ClientConfig{
		SyntheticFallback: true,
		ExpertiseLevel:    *expertise,
	}, logger)

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Println(boldGreen("SmartKissan farming assistant"))
	if transport == nil {
		fmt.Println(dim("Backend: offline answers only"))
	} else {
		fmt.Printf("Backend: %s\n", boldCyan(url))
	}
	fmt.Println("Type your question and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Println()
	fmt.Printf("%s %s\n\n", boldCyan("Assistant:"), chat.Greeting)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print(boldGreen("You: "))

		var input string
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			input = strings.TrimSpace(line)
		}

		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			return
		}

		reply, err := client.Ask(ctx, chat.Request{Text: input, Language: lang})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Printf("%s %s\n", boldCyan("Assistant:"), reply.Text)
		fmt.Println(dim(fmt.Sprintf("[%s, %s]", reply.Category, reply.Source)))
		fmt.Println()
	}
}
