package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	chromem "github.com/philippgille/chromem-go"

	"casalinger_engine/internal/booking"
	"casalinger_engine/internal/cache"
	"casalinger_engine/internal/config"
	"casalinger_engine/internal/conversation"
	"casalinger_engine/internal/embedding"
	"casalinger_engine/internal/engine"
	"casalinger_engine/internal/llm"
	"casalinger_engine/internal/logger"
	"casalinger_engine/internal/memory"
	"casalinger_engine/internal/memory/vectorstore"
	"casalinger_engine/internal/query"
	"casalinger_engine/internal/rag"
	"casalinger_engine/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg.Log); err != nil {
		return err
	}

	ctx := context.Background()

	redisClient, err := storage.NewRedisClient(ctx, cfg.Env.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	embedder, err := embedding.NewOllama(ctx, cfg.Env.OllamaHost, cfg.Model.EmbedModel)
	if err != nil {
		return err
	}

	model, err := llm.New(ctx, cfg.Model, cfg.Env)
	if err != nil {
		return err
	}

	ragDB := chromem.NewDB()
	propertySource, err := rag.NewChromemSource(ragDB, "property_listings", embedder)
	if err != nil {
		return err
	}
	knowledgeSource, err := rag.NewChromemSource(ragDB, "knowledge_base", embedder)
	if err != nil {
		return err
	}

	memoryStore := vectorstore.New(embedder)

	executor, err := query.NewSQLiteExecutor(cfg.Env.DatabasePath)
	if err != nil {
		return err
	}
	defer executor.Close()

	eng := engine.New(engine.Options{
		Store:     conversation.NewRedisStore(redisClient, cfg.Engine.ConversationTTL()),
		Cache:     cache.NewTiered(cache.NewRedisKV(redisClient), embedder, cfg.Cache),
		Memories:  memory.NewManager(memoryStore, model, cfg.Memory),
		Retriever: rag.NewBuilder(propertySource, knowledgeSource, cfg.Retrieval),
		Generator: query.NewGenerator(model),
		Executor:  executor,
		Gateway:   booking.NewRedisGateway(redisClient),
		Model:     model,
		Embedder:  embedder,
		Config:    cfg,
	})

	logger.Info().Msg("engine ready")
	return repl(ctx, eng)
}

// repl reads messages from stdin and prints the assistant's replies.
// The user id is fixed for a local session.
func repl(ctx context.Context, eng *engine.Engine) error {
	userID := os.Getenv("CHAT_USER_ID")
	if userID == "" {
		userID = "local"
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Println("Moji is ready. Type a message, or 'exit' to quit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		answer, err := eng.HandleTurn(ctx, userID, line)
		if err != nil {
			logger.Error().Err(err).Msg("turn failed")
			fmt.Println("Something went wrong, please try again.")
			continue
		}
		fmt.Println(answer)
	}
}
