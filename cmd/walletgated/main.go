package main

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/courseledger/walletgate/adapters/events"
	"github.com/courseledger/walletgate/adapters/store"
	"github.com/courseledger/walletgate/adapters/tokenizer"
	"github.com/courseledger/walletgate/config"
	"github.com/courseledger/walletgate/ports"
	"github.com/courseledger/walletgate/service"
	"github.com/courseledger/walletgate/sigverify"
	transport "github.com/courseledger/walletgate/transport/http"
)

// defaultSwapProgram is the SPL Token Swap program.
const defaultSwapProgram = "SwaPpA9LAaLfeLi3a68M4DjnLqgtticKg6CnyNwgAC8"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// Generate a new ECDSA key pair (you would normally load this from
	// somewhere secure)
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		logger.Fatal("failed to generate signing key", zap.Error(err))
	}

	// Single-instance deployments run without Redis; nonces, invalidations
	// and events then stay in process.
	var (
		sessionStore ports.Store
		publisher    message.Publisher
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to parse Redis URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		sessionStore = store.NewRedisStore(redisClient)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Fatal("failed to create Redis publisher", zap.Error(err))
		}
	} else {
		logger.Warn("no Redis URL configured, using in-memory store and pubsub")
		sessionStore = store.NewMemoryStore()
		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	}

	swapProgramStr := cfg.SwapProgramID
	if swapProgramStr == "" {
		swapProgramStr = defaultSwapProgram
	}
	swapProgram, err := solana.PublicKeyFromBase58(swapProgramStr)
	if err != nil {
		logger.Fatal("invalid swap program ID", zap.Error(err))
	}

	registry := map[string]service.TokenMeta{}
	for mint, entry := range cfg.TokenRegistry {
		registry[mint] = service.TokenMeta{Symbol: entry.Symbol, Decimals: entry.Decimals}
	}

	verifier := sigverify.New(logger)
	jwtTokenizer := tokenizer.NewJWTTokenizer(signKey)
	eventPub := events.NewWatermillPublisher(publisher)

	authService := service.NewAuthService(verifier, jwtTokenizer, sessionStore, eventPub, logger)
	paymentService := service.NewPaymentService(rpc.New(cfg.SolanaRPCURL), swapProgram, registry, logger)

	router := transport.SetupRouter(authService, paymentService)

	logger.Info("starting server", zap.String("addr", cfg.ListenAddr))
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
