package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailrouter/backend/internal/domain"
	"mailrouter/backend/internal/monitoring"
)

// verdictCacheTTL AI 判定缓存时长。同一发件人反复发送相同主题的邮件
// （营销邮件的典型行为）只需要调用一次 AI。
const verdictCacheTTL = time.Hour

// Classifier 对一封邮件做重要/垃圾分类。
//
// 实现必须总是返回可用的判定；error 非 nil 仅表示判定来自降级路径。
type Classifier interface {
	Classify(ctx context.Context, sender, subject, body, purpose string) (domain.Decision, error)
}

// Forwarder 将邮件外发到用户真实邮箱。返回 false 表示投递失败。
type Forwarder interface {
	ForwardEmail(ctx context.Context, originalSender, originalSubject, originalBody, tempAddress, userEmail string) bool
}

// EventPublisher 向在线客户端推送新产生的审计日志。
type EventPublisher interface {
	PublishEmailLog(userID string, log *domain.EmailLog)
}

// TriageCache 是管道使用的缓存视图：AI 判定的读写和统计缓存失效。
// 未命中返回非 nil 错误即可，管道把一切缓存错误当作未命中降级处理。
type TriageCache interface {
	GetCachedVerdict(ctx context.Context, userID, sender, subject string) (*domain.Decision, error)
	CacheVerdict(ctx context.Context, userID, sender, subject string, decision *domain.Decision, ttl time.Duration) error
	InvalidateDashboardStats(ctx context.Context, userID string) error
}

// TriagePipeline 入站邮件分流管道。
//
// 处理顺序：解析地址 → 懒过期停用 → 用户规则 → AI 分类 → 执行动作 →
// 写审计日志。单个事件的失败不影响批次中的其他事件。
type TriagePipeline struct {
	store      domain.Store
	classifier Classifier
	forwarder  Forwarder
	cache      TriageCache         // 可选：AI 判定与统计缓存
	metrics    *monitoring.Metrics // 可选
	events     EventPublisher      // 可选：WebSocket 推送
	clock      domain.Clock
	log        *zap.Logger
}

// NewTriagePipeline 创建分流管道。cache、metrics、events 均可为 nil。
func NewTriagePipeline(
	store domain.Store,
	classifier Classifier,
	forwarder Forwarder,
	cache TriageCache,
	metrics *monitoring.Metrics,
	events EventPublisher,
	log *zap.Logger,
) *TriagePipeline {
	return &TriagePipeline{
		store:      store,
		classifier: classifier,
		forwarder:  forwarder,
		cache:      cache,
		metrics:    metrics,
		events:     events,
		clock:      time.Now,
		log:        log,
	}
}

// SetClock 替换管道使用的时钟，仅供测试。
func (p *TriagePipeline) SetClock(clock domain.Clock) {
	p.clock = clock
}

// ProcessBatch 处理一批入站事件，返回完整处理的事件数。
//
// 非 inbound 事件被静默跳过；单个事件的处理错误只记日志，不中断批次。
func (p *TriagePipeline) ProcessBatch(ctx context.Context, events []domain.InboundEvent) int {
	processed := 0
	for i := range events {
		ok, err := p.ProcessEvent(ctx, &events[i])
		if err != nil {
			p.log.Error("failed to process inbound event",
				zap.String("from", events[i].From),
				zap.String("subject", events[i].Subject),
				zap.Error(err),
			)
			continue
		}
		if ok {
			processed++
		}
	}
	return processed
}

// ProcessEvent 处理单个入站事件。
//
// 返回 (true, nil) 表示事件走完整个管道并写入了审计日志；
// (false, nil) 表示事件被跳过（非 inbound、地址未知、已过期等）；
// (false, err) 表示处理中途出错，未写入日志。
func (p *TriagePipeline) ProcessEvent(ctx context.Context, event *domain.InboundEvent) (bool, error) {
	if event.Event != domain.InboundEventReceived {
		return false, nil
	}

	email, ok := event.Email()
	if !ok {
		p.skip("no_recipient")
		return false, nil
	}

	started := p.clock()

	// 解析目标地址；未知或已停用的地址静默丢弃
	addr, err := p.store.GetActiveAddress(email.To)
	if err != nil {
		p.skip("unknown_address")
		p.log.Debug("inbound mail for unknown address", zap.String("to", email.To))
		return false, nil
	}

	// 懒过期：过期地址在收到第一封过期后邮件时被停用，该邮件本身被丢弃
	if addr.Expired(p.clock().UTC()) {
		if err := p.store.DeactivateAddress(addr.ID); err != nil {
			return false, fmt.Errorf("deactivate expired address: %w", err)
		}
		p.skip("expired_address")
		p.log.Info("deactivated expired address",
			zap.String("address", addr.Address),
			zap.Timep("expires_at", addr.ExpiresAt),
		)
		return false, nil
	}

	user, err := p.store.GetUserByID(addr.UserID)
	if err != nil {
		p.skip("owner_missing")
		p.log.Warn("active address has no owner",
			zap.String("address", addr.Address),
			zap.String("user_id", addr.UserID),
		)
		return false, nil
	}

	decision, err := p.decide(ctx, user.ID, addr, &email)
	if err != nil {
		return false, err
	}

	// 执行动作。delete 和 quarantine 都不外发，区别只在审计记录的动作值。
	success := true
	if decision.Action == domain.ActionForward {
		success = p.forwarder.ForwardEmail(ctx, email.From, email.Subject, email.Body, addr.Address, user.Email)
		if !success && p.metrics != nil {
			p.metrics.RecordForwardFailure()
		}
	}

	actionTaken := string(decision.Action)
	if !success {
		actionTaken = domain.LogActionFailed
	}

	emailLog := &domain.EmailLog{
		ID:            uuid.NewString(),
		TempAddressID: addr.ID,
		SenderEmail:   email.From,
		Subject:       email.Subject,
		BodyPreview:   domain.Truncate(email.Body, 200),
		ActionTaken:   actionTaken,
		Confidence:    decision.Confidence,
		Reasoning:     decision.Reasoning,
		CreatedAt:     p.clock().UTC(),
	}

	if err := p.store.AppendEmailLog(emailLog); err != nil {
		return false, fmt.Errorf("append email log: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.InvalidateDashboardStats(ctx, user.ID); err != nil {
			p.log.Warn("failed to invalidate stats cache", zap.Error(err))
		}
	}
	if p.events != nil {
		p.events.PublishEmailLog(user.ID, emailLog)
	}
	if p.metrics != nil {
		p.metrics.RecordDecision(string(decision.Source), actionTaken)
		p.metrics.RecordEventProcessed(p.clock().Sub(started))
	}

	p.log.Info("inbound email triaged",
		zap.String("to", addr.Address),
		zap.String("from", email.From),
		zap.String("action", actionTaken),
		zap.Float64("confidence", decision.Confidence),
		zap.String("source", string(decision.Source)),
	)

	return true, nil
}

// decide 产出一封邮件的分流判定：规则优先，其次 AI。
func (p *TriagePipeline) decide(ctx context.Context, userID string, addr *domain.TempAddress, email *domain.InboundEmail) (domain.Decision, error) {
	rules, err := p.store.ListActiveRulesByUserID(userID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("list rules: %w", err)
	}

	// 规则命中直接定案，不再询问 AI
	if decision := MatchRules(email.From, email.Subject, email.Body, rules); decision != nil {
		return *decision, nil
	}

	if p.cache != nil {
		if cached, err := p.cache.GetCachedVerdict(ctx, userID, email.From, email.Subject); err == nil {
			return *cached, nil
		}
	}

	decision, classifyErr := p.classifier.Classify(ctx, email.From, email.Subject, email.Body, addr.Purpose)
	if classifyErr != nil {
		// 降级判定已经可用，只做计数
		if p.metrics != nil {
			p.metrics.RecordAIFallback()
		}
		return decision, nil
	}

	// 只缓存成功的判定；降级结果不该被复用
	if p.cache != nil {
		if err := p.cache.CacheVerdict(ctx, userID, email.From, email.Subject, &decision, verdictCacheTTL); err != nil {
			p.log.Warn("failed to cache verdict", zap.Error(err))
		}
	}

	return decision, nil
}

func (p *TriagePipeline) skip(reason string) {
	if p.metrics != nil {
		p.metrics.RecordEventSkipped(reason)
	}
}
