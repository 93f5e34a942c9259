package input

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

// HotkeyManager registers a global hotkey and calls onPress for every
// keydown until stopped
type HotkeyManager struct {
	mu      sync.Mutex
	hk      *hotkey.Hotkey
	presses int
	onPress func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHotkeyManager creates a new HotkeyManager
func NewHotkeyManager(onPress func()) *HotkeyManager {
	return &HotkeyManager{
		onPress: onPress,
		done:    make(chan struct{}),
	}
}

// Start begins listening for hotkey events
func (h *HotkeyManager) Start(ctx context.Context, hotkeyStr string) error {
	mods, key, err := parseHotkey(hotkeyStr)
	if err != nil {
		return fmt.Errorf("invalid hotkey: %w", err)
	}

	h.hk = hotkey.New(mods, key)
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey: %w", err)
	}

	ctx, h.cancel = context.WithCancel(ctx)

	go func() {
		defer close(h.done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-h.hk.Keydown():
				if !ok {
					return
				}
				h.mu.Lock()
				h.presses++
				h.mu.Unlock()

				if h.onPress != nil {
					h.onPress()
				}
			}
		}
	}()

	return nil
}

// Stop stops listening for hotkey events
func (h *HotkeyManager) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.hk != nil {
		h.hk.Unregister()

		// Wait briefly for goroutine to exit
		select {
		case <-h.done:
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Presses returns how many times the hotkey was pressed
func (h *HotkeyManager) Presses() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.presses
}

// parseHotkey parses a hotkey string like "ctrl+shift+space" into modifiers and key
func parseHotkey(s string) ([]hotkey.Modifier, hotkey.Key, error) {
	if strings.TrimSpace(s) == "" {
		return nil, 0, fmt.Errorf("empty hotkey string")
	}

	var mods []hotkey.Modifier
	var key hotkey.Key
	var keyFound bool

	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		if mod, ok := modifiers[part]; ok {
			mods = append(mods, mod)
			continue
		}
		if keyFound {
			return nil, 0, fmt.Errorf("multiple keys in %q", s)
		}
		k, err := parseKey(part)
		if err != nil {
			return nil, 0, err
		}
		key = k
		keyFound = true
	}

	if !keyFound {
		return nil, 0, fmt.Errorf("no key in %q", s)
	}

	return mods, key, nil
}

var namedKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// parseKey parses a key name to hotkey.Key
func parseKey(s string) (hotkey.Key, error) {
	if k, ok := namedKeys[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown key: %s", s)
}
