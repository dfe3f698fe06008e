package server

// Color 聊天文本颜色
type Color string

const (
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
)

// Message 发给玩家的聊天消息
type Message struct {
	Text  string `json:"text"`
	Color Color  `json:"color,omitempty"`
	Bold  bool   `json:"bold,omitempty"`
}

var (
	// WarnMessage 加入/重生时立即提示
	WarnMessage = Message{Text: "5 秒后你将患上甲沟炎！", Color: ColorYellow, Bold: true}
	// AfflictedMessage 保护期结束时提示一次
	AfflictedMessage = Message{Text: "你现在患有甲沟炎了！", Color: ColorRed, Bold: true}
)

const (
	// DefaultDamageCause 自定义伤害类型
	DefaultDamageCause = "never-hit-the-ground:stepped_on_natural_block"
	// DefaultDamageAmount 足以致死
	DefaultDamageAmount float32 = 99999
)

// Effects 由宿主实现：核心只产生“发消息”“造成伤害”两种效果
type Effects interface {
	SendMessage(player PlayerID, msg Message)
	ApplyDamage(player PlayerID, cause string, amount float32)
}

// discardEffects 没有宿主连接时丢弃效果
type discardEffects struct{}

func (discardEffects) SendMessage(PlayerID, Message)         {}
func (discardEffects) ApplyDamage(PlayerID, string, float32) {}
