package main

import (
	"context"
	"net/http"
	"time"

	"chessarena/arena"             //リアルタイム対局のWebSocket入口
	"chessarena/arena/actions"     //クライアントコマンドの振り分け
	"chessarena/arena/broadcast"   //イベント配信ハブ
	"chessarena/arena/game"        //ゲームセッションと時計の管理
	"chessarena/arena/matchmaking" //マッチングプールとコーディネーター
	"chessarena/arena/proposal"    //マッチ提案のRedisストア
	"chessarena/arena/storage"     //PostgreSQL永続化
	"chessarena/database"          //PostgreSQLとRedisの初期化
	"chessarena/handlers"          //HTTPリクエストの処理
	"chessarena/models"            //モデル定義
	"chessarena/utils"             //ロガーの初期化とCronジョブ(PostgreSQLの定期クリーンナップ)

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// .envがあれば環境変数として読み込む（無くてもよい）
	godotenv.Load()

	logger, err := utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	var config models.Config
	done := make(chan bool)

	go func() {
		cfg, err := database.LoadConfig("config.json")
		if err != nil {
			logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
		}
		gormDB, err := database.InitPostgreSQL(cfg, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		// チャネル受信が書き込みと読み出しを順序付ける
		config = cfg
		db = gormDB
		done <- true
	}()

	go func() {
		redisClient, err := database.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		rdb = redisClient
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	// テーブルのマイグレーション
	if err := db.AutoMigrate(&models.User{}, &models.GameRecord{}, &models.RatingRecord{}); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// クーロンスケジューラのセットアップと呼び出し
	go utils.CronCleaner(db, logger)

	// 対局サーバーの各コンポーネントを組み立てる
	hub := broadcast.NewHub(logger)
	store := storage.NewGormStore(db, logger)
	orchestrator := game.NewOrchestrator(store, hub, time.Second, logger)
	coordinator := matchmaking.NewCoordinator(
		matchmaking.NewPool(logger),
		proposal.NewStore(rdb, proposal.DefaultTTL, logger),
		store,
		hub,
		orchestrator,
		logger,
	)

	// バックグラウンドの掃除とレーティングウィンドウ拡大を起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coordinator.Run(ctx)

	deps := actions.Deps{
		Hub:          hub,
		Coordinator:  coordinator,
		Orchestrator: orchestrator,
		Logger:       logger,
	}

	router := gin.Default()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.AllowOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "SessionID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//各HTTPリクエストのルーティング
	router.POST("/auth/token", func(c *gin.Context) {
		handlers.TokenHandler(c, db, logger)
	})
	router.GET("/profile", func(c *gin.Context) {
		handlers.ProfileHandler(c, db, logger)
	})
	router.GET("/games/history", func(c *gin.Context) {
		handlers.HistoryHandler(c, db, logger)
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", func(c *gin.Context) {
		arena.HandleConnections(c.Request.Context(), c.Writer, c.Request, db, rdb, deps, upgrader)
	})

	if err := router.Run(":8080"); err != nil {
		logger.Fatal("サーバーの起動に失敗しました", zap.Error(err))
	}
}
