package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"
)

// Admin 管理与监控接口
type Admin struct {
	m *SessionManager
}

func NewAdmin(m *SessionManager) *Admin { return &Admin{m: m} }

// Register 挂载到 mux
func (a *Admin) Register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/rules", a.HandleRules)
	mux.HandleFunc("/admin/placed", a.HandlePlaced)
	mux.HandleFunc("/admin/stats", a.HandleStats)
}

// rulesBody 规则的 JSON 表示；POST 时只更新出现的字段
type rulesBody struct {
	GracePeriodMs      *int64   `json:"gracePeriodMs,omitempty"`
	DamageAmount       *float32 `json:"damageAmount,omitempty"`
	DamageCause        *string  `json:"damageCause,omitempty"`
	ExemptBlocks       []string `json:"exemptBlocks,omitempty"`
	ExtraExemptBlocks  []string `json:"extraExemptBlocks,omitempty"`
	ForgetBrokenBlocks *bool    `json:"forgetBrokenBlocks,omitempty"`
}

func (a *Admin) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := r.URL.Query().Get("server")
	if id == "" {
		id = DefaultServerID
	}
	if !ValidServerID(id) {
		http.Error(w, "invalid server id", http.StatusBadRequest)
		return nil, false
	}
	s, ok := a.m.Get(id)
	if !ok {
		http.Error(w, "unknown server", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// HandleRules 读取与热更新判定规则
// GET /admin/rules?server=default
// POST /admin/rules?server=default 以 JSON 载荷更新部分字段
func (a *Admin) HandleRules(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, rulesToBody(s.Rules()))
	case http.MethodPost:
		var body rulesBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rules := s.Rules()
		if body.GracePeriodMs != nil {
			if *body.GracePeriodMs <= 0 {
				http.Error(w, "gracePeriodMs must be > 0", http.StatusBadRequest)
				return
			}
			rules.GracePeriod = time.Duration(*body.GracePeriodMs) * time.Millisecond
		}
		if body.DamageAmount != nil {
			if *body.DamageAmount < 0 {
				http.Error(w, "damageAmount must be >= 0", http.StatusBadRequest)
				return
			}
			rules.DamageAmount = *body.DamageAmount
		}
		if body.DamageCause != nil && *body.DamageCause != "" {
			rules.DamageCause = *body.DamageCause
		}
		if body.ExtraExemptBlocks != nil {
			extra := make([]BlockType, 0, len(body.ExtraExemptBlocks))
			for _, b := range body.ExtraExemptBlocks {
				extra = append(extra, BlockType(b))
			}
			rules.Exempt = DefaultExemptions(extra...)
		}
		if body.ForgetBrokenBlocks != nil {
			rules.ForgetBroken = *body.ForgetBrokenBlocks
		}
		s.SetRules(rules)
		Log.Infof("rules updated: server=%s grace=%s damage=%.0f cause=%s exempt=%d forgetBroken=%v",
			s.ID, rules.GracePeriod, rules.DamageAmount, rules.DamageCause, len(rules.Exempt), rules.ForgetBroken)
		writeJSON(w, map[string]any{"ok": true, "rules": rulesToBody(rules)})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func rulesToBody(r Rules) rulesBody {
	grace := r.GracePeriod.Milliseconds()
	amount := r.DamageAmount
	cause := r.DamageCause
	forget := r.ForgetBroken
	exempt := make([]string, 0, len(r.Exempt))
	for b := range r.Exempt {
		exempt = append(exempt, string(b))
	}
	sort.Strings(exempt)
	return rulesBody{
		GracePeriodMs:      &grace,
		DamageAmount:       &amount,
		DamageCause:        &cause,
		ExemptBlocks:       exempt,
		ForgetBrokenBlocks: &forget,
	}
}

// HandlePlaced 查看被跟踪的区块或某区块内的放置坐标
// GET /admin/placed?server=default
// GET /admin/placed?server=default&world=minecraft:overworld&x=0&z=0
func (a *Admin) HandlePlaced(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	world := WorldID(q.Get("world"))
	if world == "" {
		writeJSON(w, map[string]any{"server": s.ID, "chunks": s.Index().Chunks()})
		return
	}
	x, errX := strconv.ParseInt(q.Get("x"), 10, 32)
	z, errZ := strconv.ParseInt(q.Get("z"), 10, 32)
	if errX != nil || errZ != nil {
		http.Error(w, "x and z must be int32", http.StatusBadRequest)
		return
	}
	chunk := ChunkPos{X: int32(x), Z: int32(z)}
	positions := s.Index().PlacedSet(world, chunk).Slice()
	sort.Slice(positions, func(i, j int) bool {
		pi, pj := positions[i], positions[j]
		if pi.Y != pj.Y {
			return pi.Y < pj.Y
		}
		if pi.X != pj.X {
			return pi.X < pj.X
		}
		return pi.Z < pj.Z
	})
	writeJSON(w, map[string]any{
		"server":    s.ID,
		"world":     world,
		"chunk":     chunk,
		"positions": positions,
	})
}

// HandleStats 输出指定会话的运行指标
// GET /admin/stats?server=default
func (a *Admin) HandleStats(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"server":          s.ID,
		"placed_blocks":   s.Index().Len(),
		"tracked_players": s.Respawns().Len(),
		"metrics":         s.Metrics().Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
