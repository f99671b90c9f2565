package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tasktracker/internal/server"
	db "tasktracker/repository/db"
	inmemory "tasktracker/repository/inmemory"
)

func main() {
	log.Println("Запуск сервиса задач...")

	cfg := server.ReadConfig()

	var userRepo server.UserRepository
	var taskRepo server.TaskRepository
	var closeStorage func()

	switch cfg.Storage {
	case "memory":
		log.Println("[WARN] Используется хранилище в памяти, данные не переживут перезапуск")
		inmem := inmemory.NewStorage()
		userRepo = inmem
		taskRepo = inmem
		closeStorage = func() {}
	default:
		if err := db.Migration(cfg.DBStr, cfg.MigratePath); err != nil {
			log.Fatalf("[ERROR] Ошибка применения миграций: %v", err)
		}
		log.Println("[SUCCESS] Миграции применены успешно")

		dbStorage, err := db.NewStorage(cfg.DBStr)
		if err != nil {
			log.Fatalf("[ERROR] Не удалось подключиться к базе данных: %v", err)
		}
		userRepo = dbStorage
		taskRepo = dbStorage
		closeStorage = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := dbStorage.Close(closeCtx); err != nil {
				log.Printf("[ERROR] Ошибка при закрытии соединения с БД: %v", err)
			}
		}
	}
	defer closeStorage()

	api := server.NewTaskAPI(userRepo, taskRepo, cfg)
	if api == nil {
		log.Fatal("[ERROR] Не удалось инициализировать API")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Сервис запущен на %s:%d", cfg.Addr, cfg.Port)
		if err := api.Start(); err != nil {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("[INFO] Получен сигнал %v, начинаем graceful shutdown...", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := api.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] Ошибка при graceful shutdown: %v", err)
		} else {
			log.Println("[SUCCESS] Graceful shutdown выполнен успешно")
		}

	case err := <-serverErr:
		log.Printf("[ERROR] Ошибка сервера: %v", err)
	}

	log.Println("Сервис завершен")
}
