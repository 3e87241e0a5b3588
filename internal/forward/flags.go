package forward

// 行为开关位掩码
// 配对级和实例级按位或合并后生效：任何一级置位即抑制对应行为
const (
	// FlagDisableQ2TG 不转发 QQ → Telegram
	FlagDisableQ2TG int64 = 1 << iota
	// FlagDisableTG2Q 不转发 Telegram → QQ
	FlagDisableTG2Q
	// FlagDisableJoinNotice 不播报入群通知
	FlagDisableJoinNotice
	// FlagDisablePoke 不转发戳一戳
	FlagDisablePoke
	// FlagDisableSlashCommand 不处理斜杠动作指令
	FlagDisableSlashCommand
	// FlagNoForwardOtherBot 不转发其他 Bot 在 Telegram 发的消息
	FlagNoForwardOtherBot
	// FlagRichHeader 启用富头部（发送者名带资料链接）
	FlagRichHeader
)
