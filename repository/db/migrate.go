package db

import (
	"log"

	"tasktracker/internal/domain/errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migration применяет все миграции из migratePath к базе dbDSN.
func Migration(dbDSN, migratePath string) error {
	if dbDSN == "" || migratePath == "" {
		return errors.ErrInvalidInput
	}

	m, err := migrate.New("file://"+migratePath, dbDSN)
	if err != nil {
		log.Println("[ERROR] Не удалось инициализировать миграции:", err)
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Println("[WARN] Ошибка закрытия источника миграций:", srcErr)
		}
		if dbErr != nil {
			log.Println("[WARN] Ошибка закрытия соединения миграций:", dbErr)
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Println("[ERROR] Не удалось применить миграции:", err)
		return err
	}

	return nil
}
