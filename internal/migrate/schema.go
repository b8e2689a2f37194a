package migrate

import (
	"context"
	"database/sql"

	"mealody/internal/logger"
)

// FavoritesNoteID / FavoritesNoteName：固定的お気に入りノート
const (
	FavoritesNoteID   = 1
	FavoritesNoteName = "お気に入り"
)

// Statements：建表语句，按顺序执行
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS shops (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            genre_code TEXT NOT NULL DEFAULT '',
            small_image_url TEXT NOT NULL DEFAULT '',
            fav_level SMALLINT NOT NULL DEFAULT 0 CHECK (fav_level BETWEEN 0 AND 3)
        )`,
	`CREATE INDEX IF NOT EXISTS idx_shops_fav ON shops(fav_level) WHERE fav_level > 0`,
	`CREATE TABLE IF NOT EXISTS notes (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
	`CREATE TABLE IF NOT EXISTS note_shops (
            note_id INT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
            shop_id TEXT NOT NULL,
            position INT NOT NULL,
            PRIMARY KEY (note_id, shop_id)
        )`,
	`CREATE INDEX IF NOT EXISTS idx_note_shops_pos ON note_shops(note_id, position)`,
	`INSERT INTO notes(id, name) VALUES(1, 'お気に入り') ON CONFLICT (id) DO NOTHING`,
	// 显式插入 id=1 后推进序列，避免新建ノート与其冲突
	`SELECT setval(pg_get_serial_sequence('notes', 'id'), GREATEST((SELECT MAX(id) FROM notes), 1))`,
}

// 背景：首次运行自动创建店铺、ノート与关联表，并写入固定的お気に入りノート
// 约束：使用 IF NOT EXISTS / ON CONFLICT 保证可重复执行
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
