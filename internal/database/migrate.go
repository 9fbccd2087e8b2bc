// Package database はセッション保存用PostgreSQLへの接続とスキーマ管理を提供する。
package database

import (
	"embed"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationAction はmigrateサブコマンドで行う操作。
type MigrationAction string

const (
	// MigrateUp は未適用のマイグレーションをすべて適用する。
	MigrateUp MigrationAction = "up"
	// MigrateDown は直近のマイグレーションを1つ戻す。
	MigrateDown MigrationAction = "down"
	// MigrateVersion は適用状況を表示するだけで変更しない。
	MigrateVersion MigrationAction = "version"
)

// ParseMigrationAction はmigrateサブコマンドの引数を解析する。空の場合はMigrateUp。
func ParseMigrationAction(s string) (MigrationAction, error) {
	switch a := MigrationAction(s); a {
	case "":
		return MigrateUp, nil
	case MigrateUp, MigrateDown, MigrateVersion:
		return a, nil
	default:
		return "", fmt.Errorf("unknown migrate action %q (want up, down or version)", s)
	}
}

// MigrationStatus はadmin_sessionsスキーマの適用状況。
// Appliedがfalseの場合、マイグレーションは1つも適用されていない。
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Applied bool
}

// NewMigrator は埋め込みのSQLを読み込むmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return m, nil
}

// Migrate はactionを実行し、実行後の適用状況を返す。
// 変更対象がない場合はエラーにしない。
func Migrate(databaseURL string, action MigrationAction) (MigrationStatus, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer m.Close()

	switch action {
	case MigrateUp:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return MigrationStatus{}, fmt.Errorf("failed to run migrations: %w", err)
		}
	case MigrateDown:
		// 未適用の状態から戻そうとするとos.ErrNotExistになる
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) && !errors.Is(err, os.ErrNotExist) {
			return MigrationStatus{}, fmt.Errorf("failed to roll back migration: %w", err)
		}
	case MigrateVersion:
	default:
		return MigrationStatus{}, fmt.Errorf("unknown migrate action %q", action)
	}

	return currentStatus(m)
}

// RunMigrations はすべてのマイグレーションを適用する。
func RunMigrations(databaseURL string) error {
	_, err := Migrate(databaseURL, MigrateUp)
	return err
}

func currentStatus(m *migrate.Migrate) (MigrationStatus, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}
