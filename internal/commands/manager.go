package commands

import (
	"context"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	kit "stockbot/internal/transport"
	"stockbot/pkg/logx"
)

// Config controls dispatch behavior.
type Config struct {
	Prefix         string        // default "!"
	DefaultTimeout time.Duration // per-command timeout when the command has none, default 45s
	Workers        int           // default NumCPU, min 2
	QueueSize      int           // default 128
}

type Manager struct {
	mu     sync.RWMutex
	byName map[string]*Command
	prefix string
	defTO  time.Duration

	log     logx.Logger
	adapter kit.Adapter

	workers   int
	queueSize int
}

func NewManager(cfg Config, adapter kit.Adapter, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "!"
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 45 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 2 {
		workers = 2
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 128
	}
	return &Manager{
		byName:    map[string]*Command{},
		prefix:    prefix,
		defTO:     cfg.DefaultTimeout,
		log:       log,
		adapter:   adapter,
		workers:   workers,
		queueSize: queue,
	}
}

// SetPrefix swaps the command prefix. Safe during hot-reload.
func (m *Manager) SetPrefix(p string) {
	p = strings.TrimSpace(p)
	if p == "" {
		return
	}
	m.mu.Lock()
	m.prefix = p
	m.mu.Unlock()
}

func (m *Manager) Prefix() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefix
}

// SetRegistry replaces the command set. Names and aliases are matched
// case-insensitively.
func (m *Manager) SetRegistry(cmds []Command) {
	byName := map[string]*Command{}
	for i := range cmds {
		c := &cmds[i]
		if c.Handle == nil || strings.TrimSpace(c.Name) == "" {
			continue
		}
		byName[strings.ToLower(c.Name)] = c
		for _, a := range c.Aliases {
			a = strings.ToLower(strings.TrimSpace(a))
			if a != "" {
				byName[a] = c
			}
		}
	}
	m.mu.Lock()
	m.byName = byName
	m.mu.Unlock()
}

// Registry returns the distinct commands, for help rendering.
func (m *Manager) Registry() []Command {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[*Command]bool{}
	out := make([]Command, 0, len(m.byName))
	for _, c := range m.byName {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, *c)
	}
	return out
}

// DispatchLoop consumes updates until ctx is cancelled or updates closes.
// Handlers run on a bounded worker pool so one slow backend call does not
// stall unrelated users. The queue is created per invocation, so the loop
// can be restarted after a failure.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	jobs := make(chan func(), m.queueSize)
	m.log.Info("command dispatcher started",
		logx.Int("workers", m.workers), logx.Int("queue_cap", cap(jobs)))

	var (
		wg        sync.WaitGroup
		closeOnce sync.Once
	)
	closeJobs := func() {
		closeOnce.Do(func() { close(jobs) })
	}

	wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("panic in command worker",
						logx.Int("worker", idx), logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())))
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					if job != nil {
						job()
					}
				}
			}
		}()
	}

	defer func() {
		closeJobs()
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				m.log.Info("updates channel closed")
				return nil
			}
			m.routeUpdate(ctx, up, jobs)
		}
	}
}

func (m *Manager) routeUpdate(root context.Context, up kit.Update, jobs chan<- func()) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message

	m.mu.RLock()
	prefix := m.prefix
	reg := m.byName
	m.mu.RUnlock()

	name, args, ok := ParseCommand(msg.Text, prefix)
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	cmd, ok := reg[name]
	if !ok {
		// Only answer unknown commands in private chats; groups see a lot
		// of other bots' slash commands.
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(root, chat, "Unknown command. Try "+prefix+"help", nil)
		}
		return
	}

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    chat,
		FromID:  msg.FromID,
		From:    msg.FromUsername,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Prefix:  prefix,
		Adapter: m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = m.defTO
	}
	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(timeout),
	)

	select {
	case jobs <- func() { _ = final(root, req) }:
	default:
		_, _ = m.adapter.SendText(root, req.Chat, "Busy, try again in a moment.", nil)
	}
}
