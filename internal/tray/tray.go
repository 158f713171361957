// Package tray provides the desktop system tray using getlantern/systray.
package tray

import (
	"encoding/binary"
	"sync"

	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Callback func()

	checkable bool
	checked   bool
	onToggle  func(checked bool)
	item      *systray.MenuItem
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	title   string
	tooltip string
	items   []*MenuItem
	quitCh  chan struct{}
}

// New creates a new system tray
func New(title, tooltip string) *Tray {
	return &Tray{
		title:   title,
		tooltip: tooltip,
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Callback: callback})
}

// AddCheckbox adds a checkable item. Each click flips the state and calls
// onToggle with the new value.
func (t *Tray) AddCheckbox(title string, checked bool, onToggle func(checked bool)) int {
	return t.add(&MenuItem{Title: title, checkable: true, checked: checked, onToggle: onToggle})
}

func (t *Tray) add(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.items) || t.items[id] == nil {
		return
	}
	mi := t.items[id]
	mi.checked = checked
	if mi.item != nil {
		if checked {
			mi.item.Check()
		} else {
			mi.item.Uncheck()
		}
	}
}

// toggle flips a checkbox and returns the new state
func (t *Tray) toggle(mi *MenuItem) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.checked = !mi.checked
	if mi.item != nil {
		if mi.checked {
			mi.item.Check()
		} else {
			mi.item.Uncheck()
		}
	}
	return mi.checked
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, func() { close(t.quitCh) })
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle(t.title)
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(getIcon())

	t.mu.Lock()
	items := append([]*MenuItem(nil), t.items...)
	t.mu.Unlock()

	for _, menuItem := range items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}

		item := systray.AddMenuItem(menuItem.Title, "")
		t.mu.Lock()
		menuItem.item = item
		if menuItem.checked {
			item.Check()
		}
		t.mu.Unlock()

		go func(mi *MenuItem) {
			for {
				select {
				case <-mi.item.ClickedCh:
					if mi.checkable {
						checked := t.toggle(mi)
						if mi.onToggle != nil {
							mi.onToggle(checked)
						}
					} else if mi.Callback != nil {
						mi.Callback()
					}
				case <-t.quitCh:
					return
				}
			}
		}(menuItem)
	}
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon renders a 16x16 32-bit ICO: a filled circle with a dot, drawn
// in white on transparent.
func getIcon() []byte {
	const (
		size       = 16
		pixelBytes = size * size * 4
		maskBytes  = size * 4 // 1bpp AND mask, rows padded to 32 bits
		dibHeader  = 40
		dataSize   = dibHeader + pixelBytes + maskBytes
		offset     = 6 + 16
	)

	icon := make([]byte, offset+dataSize)
	le := binary.LittleEndian

	// ICONDIR
	le.PutUint16(icon[2:], 1) // type: icon
	le.PutUint16(icon[4:], 1) // count

	// ICONDIRENTRY
	icon[6], icon[7] = size, size
	le.PutUint16(icon[10:], 1)  // planes
	le.PutUint16(icon[12:], 32) // bpp
	le.PutUint32(icon[14:], dataSize)
	le.PutUint32(icon[18:], offset)

	// BITMAPINFOHEADER; height is doubled for the mask
	dib := icon[offset:]
	le.PutUint32(dib[0:], dibHeader)
	le.PutUint32(dib[4:], size)
	le.PutUint32(dib[8:], size*2)
	le.PutUint16(dib[12:], 1)
	le.PutUint16(dib[14:], 32)
	le.PutUint32(dib[20:], pixelBytes)

	// BGRA rows, bottom-up
	px := dib[dibHeader:]
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := 2*x-15, 2*y-15
			d := dx*dx + dy*dy
			ring := d <= 15*15 && d >= 11*11
			dot := d <= 5*5
			if ring || dot {
				i := (y*size + x) * 4
				px[i], px[i+1], px[i+2], px[i+3] = 0xFF, 0xFF, 0xFF, 0xFF
			}
		}
	}
	return icon
}
