//go:build linux

package input

import "golang.design/x/hotkey"

// X11 maps Alt to Mod1 and Super to Mod4
var modifiers = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
	"alt":     hotkey.Mod1,
	"super":   hotkey.Mod4,
	"win":     hotkey.Mod4,
}
