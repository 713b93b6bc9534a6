package main

import (
	"flag"
	"log"

	"github.com/carlos18bp/live-chat-feature/config"
	"github.com/carlos18bp/live-chat-feature/models"
	"github.com/carlos18bp/live-chat-feature/seed"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// 开发环境数据工具：
//
//	go run ./cmd/seed -n 20        生成 20 个伪造会话
//	go run ./cmd/seed -delete      清空全部聊天数据
func main() {
	numberOfChats := flag.Int("n", 10, "number of fake chats to create")
	deleteAll := flag.Bool("delete", false, "delete all chat data instead of seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrateAll(db); err != nil {
		log.Fatalf("Failed to auto-migrate database: %v", err)
	}

	if *deleteAll {
		if err := seed.DeleteAll(db); err != nil {
			log.Fatalf("Failed to delete chat data: %v", err)
		}
		log.Println("All chat data deleted")
		return
	}

	if err := seed.SeedChats(db, *numberOfChats); err != nil {
		log.Fatalf("Failed to seed chats: %v", err)
	}
	log.Printf("%d chats created", *numberOfChats)
}
