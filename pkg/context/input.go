package context

import "github.com/wheelswins/pam-context-go/pkg/core/message"

// RawContext 流水线的原始输入：各字段均可为 nil，
// 缺失的来源产生零个片段，不会报错。
type RawContext struct {
	// UserProfile 用户画像
	UserProfile *UserProfile `json:"user_profile,omitempty"`
	// RecentMemory 近期记忆
	RecentMemory *RecentMemory `json:"recent_memory,omitempty"`
	// EmotionalContext 情感上下文
	EmotionalContext *EmotionalContext `json:"emotional_context,omitempty"`
	// ProactiveItems 主动建议
	ProactiveItems *ProactiveItems `json:"proactive_items,omitempty"`
}

// UserProfile 用户画像字段
type UserProfile struct {
	// TravelPreferences 旅行偏好描述
	TravelPreferences string `json:"travel_preferences,omitempty"`
	// VehicleInfo 车辆信息描述
	VehicleInfo string `json:"vehicle_info,omitempty"`
	// BudgetPreferences 预算偏好描述
	BudgetPreferences string `json:"budget_preferences,omitempty"`
}

// RecentMemory 近期记忆字段
type RecentMemory struct {
	// ConversationHistory 对话历史，最新的在前
	ConversationHistory []message.Turn `json:"conversation_history,omitempty"`
	// UserPatterns 用户行为模式：模式名 -> 描述
	UserPatterns map[string]string `json:"user_patterns,omitempty"`
}

// EmotionalContext 情感上下文字段
type EmotionalContext struct {
	// CurrentEmotion 当前情绪
	CurrentEmotion string `json:"current_emotion,omitempty"`
	// RelationshipStage 关系阶段
	RelationshipStage string `json:"relationship_stage,omitempty"`
	// SupportIndicators 支持需求信号
	SupportIndicators []string `json:"support_indicators,omitempty"`
}

// ProactiveItems 主动建议字段
type ProactiveItems struct {
	// Opportunities 发现的机会
	Opportunities []string `json:"opportunities,omitempty"`
	// SuggestedActions 建议的行动
	SuggestedActions []string `json:"suggested_actions,omitempty"`
}

// IsEmpty 判断原始上下文是否完全为空
func (r RawContext) IsEmpty() bool {
	return r.UserProfile == nil &&
		r.RecentMemory == nil &&
		r.EmotionalContext == nil &&
		r.ProactiveItems == nil
}
