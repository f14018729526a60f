package config

import (
	"path/filepath"
	"strings"
	"sync"

	"cloneexec/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeListener 在配置文件变更并校验通过后被调用。
type ChangeListener func(*Config)

// Watcher 监听主配置文件，热更新时只下发通过校验的新配置。
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	current   *Config
	listeners []ChangeListener
}

// Watch 读取配置并开始监听 FS 事件。include 文件的改动不会触发重载。
func Watch(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(abs)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	w := &Watcher{path: abs, v: v, current: cfg}
	v.OnConfigChange(func(evt fsnotify.Event) {
		w.reload(evt.Name)
	})
	v.WatchConfig()
	return w, nil
}

// Current 返回最近一次成功加载的配置。
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

func (w *Watcher) reload(name string) {
	cfg, err := Load(w.path)
	if err != nil {
		logger.Errorf("config reload failed (%s): %v", name, err)
		return
	}
	w.mu.Lock()
	prev := w.current
	w.current = cfg
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()
	if prev != nil && strings.TrimSpace(prev.Clone.AutopilotOverride) != strings.TrimSpace(cfg.Clone.AutopilotOverride) {
		logger.Infof("config reloaded from %s: autopilot_override %q -> %q",
			filepath.Base(w.path), prev.Clone.AutopilotOverride, cfg.Clone.AutopilotOverride)
	}
	for _, fn := range listeners {
		func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("config listener panic: %v", r)
				}
			}()
			cb(cfg)
		}(fn)
	}
}
