package main

import (
	"log"
	"net/http"

	"subgate-bot/bot"
	"subgate-bot/config"
	"subgate-bot/model"
	"subgate-bot/store"
	"subgate-bot/subscription"

	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatal(err)
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		log.Fatal(err)
	}

	ledger := store.New(db)

	b, err := bot.New(cfg, ledger)
	if err != nil {
		log.Fatal(err)
	}

	svc := subscription.New(ledger, b, cfg)
	b.Bind(svc)

	// Catch anything that lapsed while the process was down, then keep
	// sweeping on the configured interval.
	svc.Sweep()

	c := cron.New()
	c.AddFunc("@every "+cfg.SweepInterval.String(), svc.Sweep)
	c.Start()

	go func() {
		http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		if err := http.ListenAndServe(":8080", nil); err != nil {
			log.Printf("health endpoint: %v", err)
		}
	}()

	log.Println("Bot started...")
	b.Start()
}
