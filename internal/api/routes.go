// 包 api：集中注册 HTTP API 路由（会话检索、店铺、区域、地址解析、收藏与ノート）
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"mealody/internal/area"
	"mealody/internal/events"
	"mealody/internal/favorites"
	"mealody/internal/gourmet"
	"mealody/internal/locate"
	"mealody/internal/logger"
	"mealody/internal/query"
	"mealody/internal/resolver"
	"mealody/internal/session"
	"mealody/internal/shop"
	"mealody/internal/store"
)

// NoteStore：ノート与店铺摘要持久化，由 *store.Store 实现
type NoteStore interface {
	SaveShop(ctx context.Context, e store.Entity) error
	Notes(ctx context.Context) ([]store.Note, error)
	Note(ctx context.Context, id int) (*store.Note, error)
	CreateNote(ctx context.Context, name string) (int, error)
	RenameNote(ctx context.Context, id int, name string) error
	DeleteNote(ctx context.Context, id int) error
	AddShopToNote(ctx context.Context, noteID int, shopID string) error
	RemoveShopFromNote(ctx context.Context, noteID int, shopID string) error
	OrderedShopsForNote(ctx context.Context, noteID int) ([]store.Entity, error)
}

// Locator：客户端 IP 粗定位，由 *locate.GeoIP 实现
type Locator interface {
	Lookup(ip string) (locate.Location, bool)
}

// Deps：路由依赖；Notes / Favorites / Locator 为空时对应接口返回 503
type Deps struct {
	Client    *gourmet.Client
	Resolver  *resolver.Resolver
	Sessions  *Sessions
	Notes     NoteStore
	Favorites *favorites.Cache
	Locator   Locator
	Events    events.Publisher
}

type handler struct{ Deps }

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	h := &handler{d}
	mux := http.NewServeMux()
	handle := func(pattern, route string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, instrument(route, fn))
	}

	handle("POST /sessions", "session_create", h.createSession)
	handle("GET /sessions/{id}", "session_get", h.withSession(h.snapshot))
	handle("DELETE /sessions/{id}", "session_delete", h.deleteSession)
	handle("POST /sessions/{id}/search", "session_search", h.withSession(h.search))
	handle("POST /sessions/{id}/more", "session_more", h.withSession(h.more))
	handle("POST /sessions/{id}/reset", "session_reset", h.withSession(h.reset))
	handle("POST /sessions/{id}/select/{shopID}", "session_select", h.withSession(h.selectShop))
	handle("DELETE /sessions/{id}/selection", "session_clear_selection", h.withSession(h.clearSelection))

	handle("GET /shops", "shops", h.shops)
	handle("GET /shops/{id}", "shop", h.shop)
	handle("GET /shops/{id}/area", "shop_area", h.shopArea)
	handle("GET /areas", "areas", h.serviceAreas)
	handle("GET /areas/{code}", "area", h.area)
	handle("GET /areas/{code}/children", "area_children", h.childAreas)
	handle("POST /areas/cache/clear", "area_cache_clear", h.clearAreaCache)
	handle("GET /resolve", "resolve", h.resolve)
	handle("GET /history", "history", h.history)

	handle("GET /favorites", "favorites", h.favorites)
	handle("GET /favorites/{shopID}", "favorite_get", h.favorite)
	handle("PUT /favorites/{shopID}", "favorite_put", h.putFavorite)

	handle("GET /notes", "notes", h.notes)
	handle("POST /notes", "note_create", h.createNote)
	handle("GET /notes/{id}", "note_get", h.note)
	handle("PATCH /notes/{id}", "note_rename", h.renameNote)
	handle("DELETE /notes/{id}", "note_delete", h.deleteNote)
	handle("PUT /notes/{id}/shops/{shopID}", "note_add_shop", h.addNoteShop)
	handle("DELETE /notes/{id}/shops/{shopID}", "note_remove_shop", h.removeNoteShop)
	return mux
}

// ---- sessions ----

func (h *handler) createSession(w http.ResponseWriter, r *http.Request) {
	id, s := h.Sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "session": s.Snapshot()})
}

func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !h.Sessions.Remove(r.PathValue("id")) {
		writeError(w, errSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session.Session)

func (h *handler) withSession(fn sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s, ok := h.Sessions.Get(id)
		if !ok {
			writeError(w, fmt.Errorf("%w: %s", errSessionNotFound, id))
			return
		}
		fn(w, r, s)
	}
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request, s *session.Session) {
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// 文档注释：会话检索
// 约束：查询串即检索条件；near=ip 且未给坐标时用客户端 IP 的粗定位坐标。
func (h *handler) search(w http.ResponseWriter, r *http.Request, s *session.Session) {
	v := r.URL.Query()
	q, err := query.FromValues(v)
	if err != nil {
		writeError(w, err)
		return
	}
	if q.Lat == nil && v.Get("near") == "ip" {
		loc, err := h.locate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		q.Lat, q.Lng = &loc.Lat, &loc.Lng
	}
	if _, err := s.Search(r.Context(), q); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *handler) more(w http.ResponseWriter, r *http.Request, s *session.Session) {
	if _, err := s.SearchMore(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *handler) reset(w http.ResponseWriter, r *http.Request, s *session.Session) {
	s.Reset()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// selectShop：优先使用会话结果中的记录作为回退值
func (h *handler) selectShop(w http.ResponseWriter, r *http.Request, s *session.Session) {
	id := r.PathValue("shopID")
	base := shop.Shop{ID: id}
	for _, sh := range s.Results() {
		if sh.ID == id {
			base = sh
			break
		}
	}
	selected := s.SelectShopSync(r.Context(), base)
	if err := h.Events.Publish(r.Context(), events.Event{Type: events.TypeShopVisited, ShopID: selected.ID}); err != nil {
		logger.L().Debug("visit_event_error", "shop_id", selected.ID, "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop": selected, "fav_level": h.favLevel(selected.ID)})
}

func (h *handler) clearSelection(w http.ResponseWriter, r *http.Request, s *session.Session) {
	s.ClearSelection()
	writeJSON(w, http.StatusOK, s.Snapshot())
}

// ---- shops & areas ----

func (h *handler) shop(w http.ResponseWriter, r *http.Request) {
	qt := shop.ParseQueryType(r.URL.Query().Get("type"))
	sh, err := h.Client.ShopByID(r.Context(), r.PathValue("id"), qt, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if sh == nil {
		writeError(w, fmt.Errorf("%w: shop %s", gourmet.ErrNotFound, r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop": sh, "fav_level": h.favLevel(sh.ID)})
}

// shopArea：店铺所属小区域，缺少区域信息时经逆地理编码反查
func (h *handler) shopArea(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sh, err := h.Client.ShopByID(r.Context(), id, shop.Detail, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if sh == nil {
		writeError(w, fmt.Errorf("%w: shop %s", gourmet.ErrNotFound, id))
		return
	}
	a := h.Resolver.ShopArea(r.Context(), *sh)
	if a == nil {
		writeError(w, fmt.Errorf("%w: area of shop %s", gourmet.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shop_id": id, "area": newAreaView(*a)})
}

// shops：ids 为逗号分隔列表
func (h *handler) shops(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	var ids []string
	for _, id := range strings.Split(v.Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		writeError(w, fmt.Errorf("%w: ids required", errBadRequest))
		return
	}
	list, err := h.Client.ShopsByIDs(r.Context(), ids, shop.ParseQueryType(v.Get("type")), true)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shops": nonNil(list)})
}

func (h *handler) serviceAreas(w http.ResponseWriter, r *http.Request) {
	list, err := h.Client.LargeServiceAreas(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": areaViews(list)})
}

func (h *handler) area(w http.ResponseWriter, r *http.Request) {
	a, err := h.Client.Area(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAreaView(a))
}

func (h *handler) childAreas(w http.ResponseWriter, r *http.Request) {
	list, err := h.Client.ChildAreas(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": areaViews(list)})
}

func (h *handler) clearAreaCache(w http.ResponseWriter, r *http.Request) {
	h.Client.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// 文档注释：行政地址 → 小区域
// 约束：admin/locality/sub 全为空时改用客户端 IP 的粗定位地址；无匹配返回 404。
func (h *handler) resolve(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	addr := resolver.Address{AdminArea: v.Get("admin"), Locality: v.Get("locality"), SubLocality: v.Get("sub")}
	if addr.IsZero() {
		loc, err := h.locate(r)
		if err != nil {
			writeError(w, err)
			return
		}
		addr = loc.Address
	}
	a := h.Resolver.FindMatchingArea(r.Context(), addr)
	if a == nil {
		writeError(w, fmt.Errorf("%w: no area matches %s %s", gourmet.ErrNotFound, addr.AdminArea, addr.Locality))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "area": newAreaView(*a)})
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"shops": nonNil(h.Client.VisitedShops())})
}

func (h *handler) locate(r *http.Request) (locate.Location, error) {
	if h.Locator == nil {
		return locate.Location{}, fmt.Errorf("%w: geoip", errUnavailable)
	}
	ip := locate.ClientIP(r)
	loc, ok := h.Locator.Lookup(ip)
	if !ok {
		return locate.Location{}, fmt.Errorf("%w: cannot locate %s", gourmet.ErrNotFound, ip)
	}
	return loc, nil
}

// ---- favorites ----

func (h *handler) favLevel(shopID string) int {
	if h.Favorites == nil {
		return 0
	}
	return h.Favorites.Level(shopID)
}

func (h *handler) favorites(w http.ResponseWriter, r *http.Request) {
	if h.Favorites == nil {
		writeError(w, fmt.Errorf("%w: favorites", errUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"levels": h.Favorites.Snapshot()})
}

func (h *handler) favorite(w http.ResponseWriter, r *http.Request) {
	if h.Favorites == nil {
		writeError(w, fmt.Errorf("%w: favorites", errUnavailable))
		return
	}
	id := r.PathValue("shopID")
	writeJSON(w, http.StatusOK, map[string]any{"shop_id": id, "level": h.Favorites.Level(id)})
}

// 文档注释：设置收藏等级
// 约束：启用持久化时先保存店铺摘要（ノート列表依赖它），再更新等级；摘要保存失败只记录日志。
func (h *handler) putFavorite(w http.ResponseWriter, r *http.Request) {
	if h.Favorites == nil {
		writeError(w, fmt.Errorf("%w: favorites", errUnavailable))
		return
	}
	var body struct {
		Level *int `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Level == nil {
		writeError(w, fmt.Errorf("%w: body must be {\"level\": n}", errBadRequest))
		return
	}
	id := r.PathValue("shopID")
	lv := store.ClampLevel(*body.Level)
	if h.Notes != nil && lv > 0 {
		sh, err := h.Client.ShopByID(r.Context(), id, shop.Lite, true)
		switch {
		case err != nil:
			logger.L().Warn("favorite_shop_fetch_error", "shop_id", id, "err", err)
		case sh != nil:
			if err := h.Notes.SaveShop(r.Context(), store.EntityFromShop(*sh, lv)); err != nil {
				logger.L().Warn("favorite_shop_save_error", "shop_id", id, "err", err)
			}
		}
	}
	lv = h.Favorites.Update(r.Context(), id, lv)
	writeJSON(w, http.StatusOK, map[string]any{"shop_id": id, "level": lv})
}

// ---- notes ----

func (h *handler) noteStore(w http.ResponseWriter) bool {
	if h.Notes == nil {
		writeError(w, fmt.Errorf("%w: notes", errUnavailable))
		return false
	}
	return true
}

func noteID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: note id %q", errBadRequest, r.PathValue("id"))
	}
	return id, nil
}

func decodeName(r *http.Request) (string, error) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		return "", fmt.Errorf("%w: body must be {\"name\": \"...\"}", errBadRequest)
	}
	return strings.TrimSpace(body.Name), nil
}

func (h *handler) notes(w http.ResponseWriter, r *http.Request) {
	if !h.noteStore(w) {
		return
	}
	list, err := h.Notes.Notes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": nonNil(list)})
}

func (h *handler) createNote(w http.ResponseWriter, r *http.Request) {
	if !h.noteStore(w) {
		return
	}
	name, err := decodeName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := h.Notes.CreateNote(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "name": name})
}

// note：ノート信息与按顺序排列的店铺摘要
func (h *handler) note(w http.ResponseWriter, r *http.Request) {
	if !h.noteStore(w) {
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.Notes.Note(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if n == nil {
		writeError(w, fmt.Errorf("%w: %d", store.ErrNoteNotFound, id))
		return
	}
	list, err := h.Notes.OrderedShopsForNote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"note": n, "shops": nonNil(list), "deletable": store.IsNoteDeletable(id)})
}

func (h *handler) renameNote(w http.ResponseWriter, r *http.Request) {
	if !h.noteStore(w) {
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	name, err := decodeName(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Notes.RenameNote(r.Context(), id, name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) deleteNote(w http.ResponseWriter, r *http.Request) {
	if !h.noteStore(w) {
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Notes.DeleteNote(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) addNoteShop(w http.ResponseWriter, r *http.Request) {
	h.noteShop(w, r, NoteStore.AddShopToNote)
}

func (h *handler) removeNoteShop(w http.ResponseWriter, r *http.Request) {
	h.noteShop(w, r, NoteStore.RemoveShopFromNote)
}

func (h *handler) noteShop(w http.ResponseWriter, r *http.Request, op func(NoteStore, context.Context, int, string) error) {
	if !h.noteStore(w) {
		return
	}
	id, err := noteID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := op(h.Notes, r.Context(), id, r.PathValue("shopID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- views ----

// areaView：区域对外结构，附带完整名称与父级编码
type areaView struct {
	Kind       area.Kind `json:"kind"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	FullName   string    `json:"full_name"`
	ParentCode string    `json:"parent_code,omitempty"`
}

func newAreaView(a area.Area) areaView {
	return areaView{Kind: a.Kind, Code: a.Code, Name: a.Name, FullName: a.FullName(), ParentCode: a.ParentCode()}
}

func areaViews(list []area.Area) []areaView {
	out := make([]areaView, len(list))
	for i, a := range list {
		out[i] = newAreaView(a)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
