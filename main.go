package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"chatserver-backend/internal/database"
	"chatserver-backend/internal/handlers"
	"chatserver-backend/internal/hub"
	"chatserver-backend/internal/jwt"
	"chatserver-backend/internal/keyValue"
	"chatserver-backend/internal/models"
	"chatserver-backend/internal/persist"
	"chatserver-backend/internal/snowflake"
	"chatserver-backend/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"
)

func setupLogger() (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"app.log", "stdout"}
	config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

// readConfig loads config.json when present, the environment otherwise.
func readConfig() (*models.ConfigFile, error) {
	var cfg models.ConfigFile

	configFile, err := os.Open("config.json")
	if err != nil {
		if os.IsNotExist(err) {
			if err := envconfig.Process(context.Background(), &cfg); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
		return nil, err
	}
	defer configFile.Close()

	bytes, err := io.ReadAll(configFile)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setupRedis(cfg *models.ConfigFile) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddress,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

func main() {
	fmt.Println("Setting up logger...")
	sugar, err := setupLogger()
	if err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println("Reading config...")
	cfg, err := readConfig()
	if err != nil {
		sugar.Fatal(err)
	}

	fmt.Println("Connecting to database...")
	db, err := database.Setup(cfg)
	if err != nil {
		sugar.Fatal(err)
	}

	var redisClient *redis.Client
	if !cfg.SelfContained {
		fmt.Println("Connecting to redis...")
		redisClient, err = setupRedis(cfg)
		if err != nil {
			sugar.Fatal(err)
		}
	}

	if err := snowflake.Setup(cfg.SnowflakeWorkerID); err != nil {
		sugar.Fatal(err)
	}
	jwt.Setup(cfg.JwtSecret)
	keyValue.Setup(sugar, redisClient, cfg.SelfContained)

	st := store.New(sugar)
	fmt.Println("Loading users and channels...")
	if err := database.LoadAll(db, st, sugar); err != nil {
		sugar.Fatal(err)
	}
	sugar.Infof("Loaded %d users and %d channels", st.UserCount(), st.ChannelCount())

	queue := persist.NewQueue(db, cfg.AvatarDir, sugar)
	go queue.Run()

	dispatcher := handlers.Init(sugar, st, queue)
	go dispatcher.Run(context.Background())

	hub.Setup(sugar, redisClient, cfg.SelfContained, handlers.Receive)

	fmt.Printf("Server is running on %s:%s\n", cfg.Address, cfg.Port)
	if err := handlers.Serve(cfg); err != nil {
		sugar.Fatal(err)
	}
}
