package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Subscribe delivers every eventID log emitted by target to onLog until the
// returned function is called or ctx ends. A websocket backend is used when
// available; otherwise new blocks are polled.
func (c *Client) Subscribe(
	ctx context.Context,
	target common.Address,
	eventID string,
	onLog func(types.Log),
) (func(), error) {
	event, err := c.catalog.Event(target, eventID)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{target},
		Topics:    [][]common.Hash{{event.ID}},
	}

	subCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	started := false
	if c.wsBackend != nil {
		started = c.streamLogs(subCtx, &wg, query, eventID, onLog)
	}
	if !started {
		fromBlock, err := c.GetLatestBlockNumber(subCtx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", eventID, err)
		}
		if c.config.LookbackBlocks > 0 {
			if fromBlock > c.config.LookbackBlocks {
				fromBlock -= c.config.LookbackBlocks
			} else {
				fromBlock = 0
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.pollLogs(subCtx, query, fromBlock, eventID, onLog)
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

func (c *Client) streamLogs(
	ctx context.Context,
	wg *sync.WaitGroup,
	query ethereum.FilterQuery,
	eventID string,
	onLog func(types.Log),
) bool {
	logs := make(chan types.Log, 16)
	sub, err := c.wsBackend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		c.logger.Warn("Log subscription failed, falling back to polling",
			zap.String("event", eventID),
			zap.Error(err))
		return false
	}

	c.logger.Info("Streaming contract events", zap.String("event", eventID))
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					c.logger.Warn("Log subscription ended", zap.String("event", eventID), zap.Error(err))
				}
				return
			case l := <-logs:
				onLog(l)
			}
		}
	}()
	return true
}

// pollLogs polls for new logs from the block after fromBlock, mirroring a
// block poller over plain HTTP RPC.
func (c *Client) pollLogs(
	ctx context.Context,
	query ethereum.FilterQuery,
	fromBlock uint64,
	eventID string,
	onLog func(types.Log),
) {
	interval := c.config.PollingInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	c.logger.Info("Starting contract event poller",
		zap.String("event", eventID),
		zap.Uint64("from_block", fromBlock))

	currentBlock := fromBlock
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latestBlock, err := c.GetLatestBlockNumber(ctx)
			if err != nil {
				c.logger.Warn("Failed to get latest block", zap.Error(err))
				continue
			}
			if latestBlock <= currentBlock {
				continue
			}

			q := query
			q.FromBlock = new(big.Int).SetUint64(currentBlock + 1)
			q.ToBlock = new(big.Int).SetUint64(latestBlock)

			logs, err := c.backend.FilterLogs(ctx, q)
			if err != nil {
				c.logger.Warn("Failed to filter logs", zap.String("event", eventID), zap.Error(err))
				continue
			}
			for _, l := range logs {
				if ctx.Err() != nil {
					return
				}
				onLog(l)
			}
			currentBlock = latestBlock
		}
	}
}
