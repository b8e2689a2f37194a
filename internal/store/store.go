// 包 store: 提供与 PostgreSQL 的数据访问层，包含店铺收藏等级与ノート（店铺清单）读写
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"mealody/internal/logger"
	"mealody/internal/migrate"
	"mealody/internal/shop"
)

const (
	MinFavLevel = 0
	MaxFavLevel = 3
)

var (
	// ErrNoteNotDeletable：お気に入りノート不可删除
	ErrNoteNotDeletable = errors.New("favorites note cannot be deleted")
	ErrNoteNotFound     = errors.New("note not found")
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Open: 使用 DSN 打开数据库连接并配置连接池参数
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Entity: 本地保存的店铺摘要
type Entity struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	GenreCode     string `json:"genre_code"`
	SmallImageURL string `json:"small_image_url"`
	FavLevel      int    `json:"fav_level"`
}

// EntityFromShop: 由远端店铺记录生成本地摘要
func EntityFromShop(sh shop.Shop, level int) Entity {
	return Entity{
		ID:            sh.ID,
		Name:          sh.Name,
		GenreCode:     sh.Genre.Code,
		SmallImageURL: sh.SmallImageURL(),
		FavLevel:      ClampLevel(level),
	}
}

// Note: 店铺清单；ShopIDs 按 position 排序
type Note struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	ShopIDs    []string  `json:"shop_ids"`
}

func ClampLevel(level int) int { return min(max(level, MinFavLevel), MaxFavLevel) }

// IsNoteDeletable: 仅お気に入りノート不可删除
func IsNoteDeletable(id int) bool { return id != migrate.FavoritesNoteID }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx: fn 返回错误时回滚
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const upsertShop = `INSERT INTO shops(id, name, genre_code, small_image_url, fav_level) VALUES($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, genre_code=EXCLUDED.genre_code, small_image_url=EXCLUDED.small_image_url, fav_level=EXCLUDED.fav_level`

// SaveShop: 覆盖写入（含收藏等级）
func (s *Store) SaveShop(ctx context.Context, e Entity) error {
	_, err := s.db.ExecContext(ctx, upsertShop, e.ID, e.Name, e.GenreCode, e.SmallImageURL, ClampLevel(e.FavLevel))
	return err
}

func (s *Store) SaveShops(ctx context.Context, list []Entity) error {
	if len(list) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range list {
			if _, err := tx.ExecContext(ctx, upsertShop, e.ID, e.Name, e.GenreCode, e.SmallImageURL, ClampLevel(e.FavLevel)); err != nil {
				return fmt.Errorf("save shop %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

const shopCols = "id, name, genre_code, small_image_url, fav_level"

func scanEntities(rows *sql.Rows) ([]Entity, error) {
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.GenreCode, &e.SmallImageURL, &e.FavLevel); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ShopByID: 未保存时返回 (nil, nil)
func (s *Store) ShopByID(ctx context.Context, id string) (*Entity, error) {
	var e Entity
	err := s.db.QueryRowContext(ctx, "SELECT "+shopCols+" FROM shops WHERE id=$1", id).
		Scan(&e.ID, &e.Name, &e.GenreCode, &e.SmallImageURL, &e.FavLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ShopsByIDs: 返回顺序不保证与 ids 一致
func (s *Store) ShopsByIDs(ctx context.Context, ids []string) ([]Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+shopCols+" FROM shops WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// FavoriteShops: 收藏等级大于 0 的店铺，等级高者在前
func (s *Store) FavoriteShops(ctx context.Context) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+shopCols+" FROM shops WHERE fav_level > 0 ORDER BY fav_level DESC, id")
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}

// FavoriteLevel: 未保存的店铺为 0
func (s *Store) FavoriteLevel(ctx context.Context, shopID string) (int, error) {
	var lv int
	err := s.db.QueryRowContext(ctx, "SELECT fav_level FROM shops WHERE id=$1", shopID).Scan(&lv)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return lv, err
}

// 文档注释：更新收藏等级并同步お気に入りノート
// 约束：等级截断到 0..3；大于 0 时加入お気に入りノート，等于 0 时从中移除；店铺未保存时等级更新不生效但ノート仍同步。
func (s *Store) UpdateFavoriteLevel(ctx context.Context, shopID string, level int) (int, error) {
	lv := ClampLevel(level)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE shops SET fav_level=$1 WHERE id=$2", lv, shopID); err != nil {
			return err
		}
		if lv > 0 {
			return addShopToNote(ctx, tx, migrate.FavoritesNoteID, shopID)
		}
		return removeShopFromNote(ctx, tx, migrate.FavoritesNoteID, shopID)
	})
	if err != nil {
		return 0, err
	}
	logger.L().Debug("fav_level_update", "shop_id", shopID, "level", lv)
	return lv, nil
}

// InitializeFavoritesNote: お気に入りノート不存在时创建
func (s *Store) InitializeFavoritesNote(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO notes(id, name) VALUES($1, $2) ON CONFLICT (id) DO NOTHING",
		migrate.FavoritesNoteID, migrate.FavoritesNoteName)
	return err
}

func (s *Store) CreateNote(ctx context.Context, name string) (int, error) {
	var id int
	err := s.db.QueryRowContext(ctx, "INSERT INTO notes(name) VALUES($1) RETURNING id", name).Scan(&id)
	return id, err
}

func (s *Store) RenameNote(ctx context.Context, id int, name string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE notes SET name=$1, modified_at=now() WHERE id=$2", name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNoteNotFound, id)
	}
	return nil
}

// DeleteNote: 关联的店铺条目级联删除
func (s *Store) DeleteNote(ctx context.Context, id int) error {
	if !IsNoteDeletable(id) {
		return ErrNoteNotDeletable
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id=$1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrNoteNotFound, id)
	}
	return nil
}

// Notes: 最近修改的在前
func (s *Store) Notes(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, modified_at FROM notes ORDER BY modified_at DESC, id")
	if err != nil {
		return nil, err
	}
	var notes []Note
	idx := map[int]int{}
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Name, &n.ModifiedAt); err != nil {
			rows.Close()
			return nil, err
		}
		n.ShopIDs = []string{}
		idx[n.ID] = len(notes)
		notes = append(notes, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return notes, nil
	}
	rows, err = s.db.QueryContext(ctx, "SELECT note_id, shop_id FROM note_shops ORDER BY note_id, position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var noteID int
		var shopID string
		if err := rows.Scan(&noteID, &shopID); err != nil {
			return nil, err
		}
		if i, ok := idx[noteID]; ok {
			notes[i].ShopIDs = append(notes[i].ShopIDs, shopID)
		}
	}
	return notes, rows.Err()
}

// Note: 不存在时返回 (nil, nil)
func (s *Store) Note(ctx context.Context, id int) (*Note, error) {
	n := Note{ShopIDs: []string{}}
	err := s.db.QueryRowContext(ctx, "SELECT id, name, modified_at FROM notes WHERE id=$1", id).Scan(&n.ID, &n.Name, &n.ModifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT shop_id FROM note_shops WHERE note_id=$1 ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		n.ShopIDs = append(n.ShopIDs, sid)
	}
	return &n, rows.Err()
}

// AddShopToNote: 已存在则不变；新条目排在末尾（最大 position + 1），事务内先锁定ノート行
func (s *Store) AddShopToNote(ctx context.Context, noteID int, shopID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error { return addShopToNote(ctx, tx, noteID, shopID) })
}

// RemoveShopFromNote: 删除后把剩余条目的 position 重排为 0..n-1
func (s *Store) RemoveShopFromNote(ctx context.Context, noteID int, shopID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error { return removeShopFromNote(ctx, tx, noteID, shopID) })
}

// lockNote: 锁定ノート行，串行化同一ノート的条目增删；ノート不存在时返回 false
func lockNote(ctx context.Context, q querier, noteID int) (bool, error) {
	var id int
	err := q.QueryRowContext(ctx, "SELECT id FROM notes WHERE id=$1 FOR UPDATE", noteID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func addShopToNote(ctx context.Context, q querier, noteID int, shopID string) error {
	if ok, err := lockNote(ctx, q, noteID); !ok {
		return err
	}
	res, err := q.ExecContext(ctx, `INSERT INTO note_shops(note_id, shop_id, position)
SELECT n.id, $2, COALESCE((SELECT MAX(position) FROM note_shops WHERE note_id=$1), -1) + 1 FROM notes n WHERE n.id=$1
ON CONFLICT (note_id, shop_id) DO NOTHING`, noteID, shopID)
	if err != nil {
		return err
	}
	return touchNote(ctx, q, res, noteID)
}

func removeShopFromNote(ctx context.Context, q querier, noteID int, shopID string) error {
	if ok, err := lockNote(ctx, q, noteID); !ok {
		return err
	}
	res, err := q.ExecContext(ctx, "DELETE FROM note_shops WHERE note_id=$1 AND shop_id=$2", noteID, shopID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if _, err := q.ExecContext(ctx, `UPDATE note_shops ns SET position = r.rn - 1
FROM (SELECT shop_id, ROW_NUMBER() OVER (ORDER BY position) AS rn FROM note_shops WHERE note_id=$1) r
WHERE ns.note_id=$1 AND ns.shop_id=r.shop_id`, noteID); err != nil {
		return err
	}
	return touchNote(ctx, q, res, noteID)
}

// touchNote: 有行变更时刷新 modified_at
func touchNote(ctx context.Context, q querier, res sql.Result, noteID int) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	_, err := q.ExecContext(ctx, "UPDATE notes SET modified_at=now() WHERE id=$1", noteID)
	return err
}

// OrderedShopsForNote: 按ノート内顺序返回已保存的店铺
func (s *Store) OrderedShopsForNote(ctx context.Context, noteID int) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.id, s.name, s.genre_code, s.small_image_url, s.fav_level
FROM note_shops ns JOIN shops s ON s.id = ns.shop_id WHERE ns.note_id=$1 ORDER BY ns.position`, noteID)
	if err != nil {
		return nil, err
	}
	return scanEntities(rows)
}
