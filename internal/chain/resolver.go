package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/coldbrew/cps/internal/config"
	"github.com/coldbrew/cps/internal/logger"
)

// Resolver 按链ID解析客户端。客户端在进程生命周期内缓存，
// 配置变更时通过 Reload/Invalidate 重建。
type Resolver struct {
	mu      sync.RWMutex
	configs map[int64]config.ChainConfig
	clients map[int64]*Client
}

// NewResolver 创建链客户端解析器
func NewResolver(cfgs []config.ChainConfig) *Resolver {
	r := &Resolver{
		configs: make(map[int64]config.ChainConfig),
		clients: make(map[int64]*Client),
	}
	for _, cfg := range cfgs {
		r.configs[cfg.ChainId] = cfg
	}
	return r
}

// Client 获取指定链的客户端，未配置的链返回错误
func (r *Resolver) Client(chainId int64) (*Client, error) {
	r.mu.RLock()
	client, ok := r.clients[chainId]
	r.mu.RUnlock()
	if ok {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[chainId]; ok {
		return client, nil
	}

	cfg, ok := r.configs[chainId]
	if !ok {
		return nil, fmt.Errorf("chain %d not configured", chainId)
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for chain %d: %w", chainId, err)
	}

	r.clients[chainId] = client
	logger.Info("Initialized chain client (chain: %d, endpoints: %d)", chainId, len(cfg.RpcUrls))
	return client, nil
}

// Invalidate 使指定链的缓存客户端失效
func (r *Resolver) Invalidate(chainId int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[chainId]; ok {
		client.Close()
		delete(r.clients, chainId)
	}
}

// Reload 用新配置替换全部链，已缓存的客户端全部重建
func (r *Resolver) Reload(cfgs []config.ChainConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for chainId, client := range r.clients {
		client.Close()
		delete(r.clients, chainId)
	}

	r.configs = make(map[int64]config.ChainConfig)
	for _, cfg := range cfgs {
		r.configs[cfg.ChainId] = cfg
	}
	logger.Info("Chain resolver reloaded with %d chains", len(r.configs))
}

// ChainIds 获取已配置的链ID列表
func (r *Resolver) ChainIds() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	return ids
}

// HealthStatus 获取各链连接健康状态
func (r *Resolver) HealthStatus(ctx context.Context) map[string]interface{} {
	status := make(map[string]interface{})
	for _, chainId := range r.ChainIds() {
		client, err := r.Client(chainId)
		if err != nil {
			status[fmt.Sprintf("%d", chainId)] = "not_initialized"
			continue
		}
		if client.Healthy(ctx) {
			status[fmt.Sprintf("%d", chainId)] = "connected"
		} else {
			status[fmt.Sprintf("%d", chainId)] = "disconnected"
		}
	}
	return status
}

// Close 关闭全部客户端
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chainId, client := range r.clients {
		client.Close()
		delete(r.clients, chainId)
	}
}
