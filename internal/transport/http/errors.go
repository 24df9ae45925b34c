package httptransport

import (
	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 临时地址错误
	service.ErrAddressLimitReached: "临时地址数量已达上限",
	service.ErrGenerateAddress:     "生成临时地址失败，请重试",
	domain.ErrAddressNotFound:      "临时地址不存在",

	// 转发规则错误
	service.ErrInvalidAction: "不支持的规则动作",
	service.ErrEmptyKeywords: "关键词不能为空",
	domain.ErrRuleNotFound:   "转发规则不存在",

	// 用户错误
	domain.ErrUserNotFound: "用户不存在",
	domain.ErrEmailExists:  "该邮箱已被注册",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidExpiry  = "过期时间格式无效"
	MsgInvalidPayload = "Webhook 载荷格式错误"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "邮箱或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"

	// 临时地址相关
	MsgAddressCreateFailed = "创建临时地址失败"
	MsgAddressNotFound     = "临时地址不存在"
	MsgAddressListFailed   = "获取地址列表失败"
	MsgAddressDeactFailed  = "停用临时地址失败"

	// 转发规则相关
	MsgRuleCreateFailed = "创建转发规则失败"
	MsgRuleNotFound     = "转发规则不存在"
	MsgRuleListFailed   = "获取规则列表失败"
	MsgRuleUpdateFailed = "更新转发规则失败"
	MsgRuleDeleteFailed = "删除转发规则失败"

	// 仪表盘相关
	MsgStatsGetFailed = "获取统计数据失败"
	MsgLogsGetFailed  = "获取邮件日志失败"

	// 用户相关
	MsgUserNotFound  = "用户不存在"
	MsgUserGetFailed = "获取用户信息失败"

	// 限流相关
	MsgRateLimited = "请求过于频繁，请稍后重试"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
