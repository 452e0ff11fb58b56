package storage

import (
	"context"
	"fmt"

	"prosterio-go/internal/config"
	"prosterio-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖。
// MySQL 必须可用；MinIO/RabbitMQ/Redis 未配置或初始化失败时为 nil，调用方按需降级。
type Storage struct {
	// 关系型数据库
	MySQL *MySQL

	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	l := logger.Named("storage")
	s := &Storage{}
	var err error

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(&cfg.MinIO)
		if err != nil {
			l.Warn().Err(err).Msg("初始化MinIO失败，原始简历将不会保存")
			s.MinIO = nil
		}
	} else {
		l.Info().Msg("MinIO未配置, 跳过初始化")
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			l.Warn().Err(err).Msg("初始化RabbitMQ失败，员工事件将保留在 outbox 中")
			s.RabbitMQ = nil
		}
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			l.Warn().Err(err).Msg("初始化Redis失败，统计结果不缓存")
			s.Redis = nil
		}
	} else {
		l.Info().Msg("Redis未配置, 跳过初始化")
	}

	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	l := logger.Named("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			l.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			l.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			l.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	// MinIO 客户端基于 HTTP，无需显式关闭
}
