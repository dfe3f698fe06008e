package server

import (
	"fmt"
	"time"
)

// Rules 一局游戏的判定参数，可通过管理接口热更新
type Rules struct {
	GracePeriod  time.Duration
	DamageAmount float32
	DamageCause  string
	Exempt       Exemptions
	ForgetBroken bool // 方块被破坏时从索引移除（默认保持永久记录）
}

// DefaultRules 5 秒保护期、99999 点伤害、默认豁免方块
func DefaultRules() Rules {
	return Rules{
		GracePeriod:  DefaultGracePeriod,
		DamageAmount: DefaultDamageAmount,
		DamageCause:  DefaultDamageCause,
		Exempt:       DefaultExemptions(),
	}
}

// TickReport 单次 Tick 的统计
type TickReport struct {
	Evaluated int
	InGrace   int
	Notified  int
	Damaged   int
	Errors    int
}

// TickEvaluator 每个服务器 Tick 对所有在线玩家检查脚下方块
type TickEvaluator struct {
	index    *PlacementIndex
	respawns *RespawnTracker
}

func NewTickEvaluator(index *PlacementIndex, respawns *RespawnTracker) *TickEvaluator {
	return &TickEvaluator{index: index, respawns: respawns}
}

// Run 单线程推进一次：通知 → 保护期跳过 → 脚下方块判定
// 某个玩家出错只记录日志并跳过，不影响其他玩家
func (e *TickEvaluator) Run(nowMs int64, worlds []WorldView, rules Rules, fx Effects) TickReport {
	var rep TickReport
	for _, w := range worlds {
		if w == nil {
			continue
		}
		for _, p := range w.Players() {
			rep.Evaluated++
			if err := e.evaluate(nowMs, w, p, rules, fx, &rep); err != nil {
				rep.Errors++
				Log.Warnf("tick: skip player %s (%s) in %s: %v", p.Name, p.ID, w.ID(), err)
			}
		}
	}
	return rep
}

func (e *TickEvaluator) evaluate(nowMs int64, w WorldView, p PlayerView, rules Rules, fx Effects, rep *TickReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if e.respawns.ShouldNotify(p.ID, nowMs) {
		fx.SendMessage(p.ID, AfflictedMessage)
		rep.Notified++
	}
	if e.respawns.IsInGrace(p.ID, nowMs) {
		rep.InGrace++
		return nil
	}

	below := p.Pos.Below()
	block, err := w.BlockAt(below)
	if err != nil {
		return err
	}
	if !rules.Exempt.Lethal(block) {
		return nil
	}
	if e.index.Contains(w.ID(), below) {
		return nil
	}
	fx.ApplyDamage(p.ID, rules.DamageCause, rules.DamageAmount)
	rep.Damaged++
	Log.Debugf("tick: %s (%s) stepped on natural %s at %v in %s", p.Name, p.ID, block, below, w.ID())
	return nil
}
